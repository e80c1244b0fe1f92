package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"interview-assistant-service/internal/models"
)

// PollyAPI is the subset of the Polly client used here.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Polly synthesizes mp3 speech with Amazon Polly.
type Polly struct {
	api    PollyAPI
	voice  string
	engine string
}

// NewPolly creates a Polly synthesizer, e.g. voice "Joanna", engine "neural".
func NewPolly(api PollyAPI, voice, engine string) *Polly {
	return &Polly{api: api, voice: voice, engine: engine}
}

func (p *Polly) Name() string { return "polly" }

func (p *Polly) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	out, err := p.api.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(p.voice),
		Engine:       types.Engine(p.engine),
	})
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Message: "synthesize speech", Cause: err}
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read polly stream: %w", err)
	}
	return &Speech{
		Audio:       audio,
		ContentType: aws.ToString(out.ContentType),
		Format:      models.FormatMP3,
	}, nil
}
