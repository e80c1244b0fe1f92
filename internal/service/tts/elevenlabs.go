package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"interview-assistant-service/internal/models"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

	// ElevenLabsModelMultilingual is the multilingual v2 model.
	ElevenLabsModelMultilingual = "eleven_multilingual_v2"

	elevenLabsDefaultVoice   = "21m00Tcm4TlvDq8ikWAM" // Rachel
	elevenLabsFormatMP3      = "mp3_44100_128"
	defaultElevenLabsTimeout = 60 * time.Second
)

// ElevenLabs synthesizes mp3 speech with the ElevenLabs REST API.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	voice   string
	model   string
	client  *http.Client
}

// ElevenLabsOption configures the ElevenLabs synthesizer.
type ElevenLabsOption func(*ElevenLabs)

// WithElevenLabsBaseURL sets a custom base URL.
func WithElevenLabsBaseURL(url string) ElevenLabsOption {
	return func(s *ElevenLabs) {
		s.baseURL = url
	}
}

// WithElevenLabsClient sets a custom HTTP client.
func WithElevenLabsClient(client *http.Client) ElevenLabsOption {
	return func(s *ElevenLabs) {
		s.client = client
	}
}

// WithElevenLabsVoice sets the voice id.
func WithElevenLabsVoice(voice string) ElevenLabsOption {
	return func(s *ElevenLabs) {
		if voice != "" {
			s.voice = voice
		}
	}
}

// WithElevenLabsModel sets the TTS model.
func WithElevenLabsModel(model string) ElevenLabsOption {
	return func(s *ElevenLabs) {
		if model != "" {
			s.model = model
		}
	}
}

// NewElevenLabs creates an ElevenLabs synthesizer.
func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) *ElevenLabs {
	s := &ElevenLabs{
		apiKey:  apiKey,
		baseURL: elevenLabsBaseURL,
		voice:   elevenLabsDefaultVoice,
		model:   ElevenLabsModelMultilingual,
		client:  &http.Client{Timeout: defaultElevenLabsTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ElevenLabs) Name() string { return "elevenlabs" }

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsErrorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

func (s *ElevenLabs) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       s.model,
		VoiceSettings: elevenLabsVoiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", s.baseURL, s.voice, elevenLabsFormatMP3)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SynthesisError{Provider: s.Name(), Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read elevenlabs body: %w", err)
	}
	return &Speech{
		Audio:       audio,
		ContentType: resp.Header.Get("Content-Type"),
		Format:      models.FormatMP3,
	}, nil
}

func (s *ElevenLabs) handleError(resp *http.Response) error {
	var errResp elevenLabsErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&errResp)

	var cause error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	case http.StatusUnauthorized:
		cause = fmt.Errorf("invalid API key")
	case http.StatusNotFound:
		cause = fmt.Errorf("unknown voice %s", s.voice)
	}
	code := errResp.Detail.Status
	if code == "" {
		code = fmt.Sprintf("%d", resp.StatusCode)
	}
	return &SynthesisError{Provider: s.Name(), Code: code, Message: errResp.Detail.Message, Cause: cause}
}
