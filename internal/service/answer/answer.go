// Package answer generates interview answers with a large language model.
package answer

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("model returned no answer text")

// Generator turns a prompt into answer text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// BuildPrompt prefixes the question with the interviewer persona.
func BuildPrompt(persona, question string) string {
	persona = strings.TrimSpace(persona)
	question = strings.TrimSpace(question)
	if persona == "" {
		return question
	}
	return persona + " " + question
}
