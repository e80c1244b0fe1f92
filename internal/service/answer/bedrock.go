package answer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const anthropicVersion = "bedrock-2023-05-31"

// InvokeAPI is the subset of the Bedrock runtime client used here.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock generates answers with an Anthropic model on Amazon Bedrock.
type Bedrock struct {
	api         InvokeAPI
	model       string
	maxTokens   int
	temperature float64
}

// NewBedrock creates a Bedrock generator.
func NewBedrock(api InvokeAPI, model string, maxTokens int, temperature float64) *Bedrock {
	return &Bedrock{api: api, model: model, maxTokens: maxTokens, temperature: temperature}
}

func (b *Bedrock) Name() string { return "bedrock" }

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (b *Bedrock) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.maxTokens,
		Temperature:      b.temperature,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	out, err := b.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("invoke %s: %w", b.model, err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", ErrEmptyAnswer
	}
	return resp.Content[0].Text, nil
}
