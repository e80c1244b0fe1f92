package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"interview-assistant-service/internal/audioconv"
	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/service/stt/mock"
	"interview-assistant-service/internal/service/tts"
	"interview-assistant-service/internal/storage"
)

const testBucket = "chatbotbucket-vkt"

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type fakeSynthesizer struct {
	contentType string
	size        int
	err         error
	calls       int
}

func (s *fakeSynthesizer) Name() string { return "fake" }

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string) (*tts.Speech, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ct := s.contentType
	if ct == "" {
		ct = "audio/mpeg"
	}
	size := s.size
	if size == 0 {
		size = 4096
	}
	return &tts.Speech{Audio: make([]byte, size), ContentType: ct, Format: models.FormatMP3}, nil
}

type fakeTranscoder struct {
	err     error
	targets []audioconv.Target
}

func (f *fakeTranscoder) Convert(ctx context.Context, src, dst string, target audioconv.Target) error {
	f.targets = append(f.targets, target)
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.InterviewEvent
}

func (r *recordingEvents) PublishInterview(ctx context.Context, event models.InterviewEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// countingStore records Get calls on top of a memory store.
type countingStore struct {
	*storage.Memory
	mu   sync.Mutex
	gets []string
}

func (c *countingStore) Get(ctx context.Context, key, localPath string) error {
	c.mu.Lock()
	c.gets = append(c.gets, key)
	c.mu.Unlock()
	return c.Memory.Get(ctx, key, localPath)
}

type harness struct {
	pipeline *Pipeline
	store    *countingStore
	jobs     *mock.Client
	gen      *fakeGenerator
	synth    *fakeSynthesizer
	conv     *fakeTranscoder
	events   *recordingEvents
	tempDir  string
}

func newHarness(t *testing.T, behavior mock.Behavior) *harness {
	t.Helper()
	h := &harness{
		store:   &countingStore{Memory: storage.NewMemory(testBucket)},
		gen:     &fakeGenerator{answer: "A container packages an application with its dependencies."},
		synth:   &fakeSynthesizer{},
		conv:    &fakeTranscoder{},
		events:  &recordingEvents{},
		tempDir: t.TempDir(),
	}
	h.jobs = mock.New(h.store.Memory, behavior)

	cfg := DefaultConfig()
	cfg.TempDir = h.tempDir
	cfg.Persona = "You are a DevOps technical interview bot."
	cfg.PollInterval = time.Millisecond
	cfg.MaxPollAttempts = 5
	cfg.SettleDelay = 0
	cfg.ResultRetries = 2
	cfg.ResultRetryDelay = time.Millisecond
	cfg.ProviderTimeout = time.Second

	h.pipeline = New(Deps{
		Store:       h.store,
		Jobs:        h.jobs,
		Generator:   h.gen,
		Synthesizer: h.synth,
		Transcoder:  h.conv,
		Events:      h.events,
	}, cfg)
	return h
}

func (h *harness) writeAudio(t *testing.T, ext string, size int) string {
	t.Helper()
	path := filepath.Join(h.tempDir, "upload"+ext)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func (h *harness) assertTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected temp dir to be empty, found %v", names)
	}
}

func (h *harness) keysWithPrefix(prefix string) []string {
	var out []string
	for _, k := range h.store.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func TestProcess_TextInput(t *testing.T) {
	h := newHarness(t, mock.Behavior{})

	resp, err := h.pipeline.Process(context.Background(), models.NewTextRequest("What is a container?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.gen.prompts) != 1 {
		t.Fatalf("expected generator to be called once, got %d", len(h.gen.prompts))
	}
	if !strings.Contains(h.gen.prompts[0], "What is a container?") {
		t.Errorf("expected prompt to contain the question, got %q", h.gen.prompts[0])
	}
	if !strings.HasPrefix(h.gen.prompts[0], "You are a DevOps technical interview bot.") {
		t.Errorf("expected prompt to start with the persona, got %q", h.gen.prompts[0])
	}
	if resp.AnswerText != h.gen.answer {
		t.Errorf("expected answer %q, got %q", h.gen.answer, resp.AnswerText)
	}
	if resp.AudioURL != "" {
		t.Errorf("expected no audio url for text input, got %s", resp.AudioURL)
	}
	if h.synth.calls != 0 || h.jobs.Submitted() != 0 {
		t.Error("expected text input to skip transcription and synthesis")
	}
	if len(h.store.Keys()) != 0 {
		t.Errorf("expected no stored objects, got %v", h.store.Keys())
	}
}

func TestProcess_AudioInput_Success(t *testing.T) {
	h := newHarness(t, mock.Behavior{PollsUntilDone: 2, Transcripts: []string{"What is a container?"}})
	path := h.writeAudio(t, ".wav", 4000)

	resp, err := h.pipeline.Process(context.Background(), models.NewAudioRequest(path, models.FormatWAV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(h.gen.prompts[0], "What is a container?") {
		t.Errorf("expected transcript in prompt, got %q", h.gen.prompts[0])
	}
	if resp.AnswerText != h.gen.answer {
		t.Errorf("unexpected answer %q", resp.AnswerText)
	}

	replies := h.keysWithPrefix(storage.PrefixOutput)
	if len(replies) != 1 {
		t.Fatalf("expected exactly one reply object, got %v", h.store.Keys())
	}
	if !strings.HasSuffix(replies[0], ".mp3") {
		t.Errorf("expected mp3 reply, got %s", replies[0])
	}
	if resp.AudioURL != h.store.PublicURL(replies[0]) {
		t.Errorf("expected audio url %s, got %s", h.store.PublicURL(replies[0]), resp.AudioURL)
	}
	if _, ct, _ := h.store.Object(replies[0]); ct != "audio/mpeg" {
		t.Errorf("expected audio/mpeg reply, got %s", ct)
	}

	// Only the reply survives.
	if keys := h.store.Keys(); len(keys) != 1 {
		t.Errorf("expected source and transcript to be deleted, got %v", keys)
	}
	h.assertTempDirEmpty(t)

	if len(h.events.events) != 1 || h.events.events[0].EventType != models.EventInterviewCompleted {
		t.Errorf("expected one completed event, got %+v", h.events.events)
	}
}

func TestProcess_AudioInput_OggReply(t *testing.T) {
	h := newHarness(t, mock.Behavior{})
	req := models.NewAudioRequest(h.writeAudio(t, ".wav", 4000), models.FormatWAV)
	req.ReplyFormat = models.FormatOGG

	resp, err := h.pipeline.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(resp.AudioURL, ".ogg") {
		t.Errorf("expected ogg reply url, got %s", resp.AudioURL)
	}
	if len(h.conv.targets) != 1 || h.conv.targets[0].Format != models.FormatOGG {
		t.Errorf("expected one ogg conversion, got %+v", h.conv.targets)
	}
	replies := h.keysWithPrefix(storage.PrefixOutput)
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %v", replies)
	}
	if _, ct, _ := h.store.Object(replies[0]); ct != "audio/ogg" {
		t.Errorf("expected audio/ogg content type, got %s", ct)
	}
	h.assertTempDirEmpty(t)
}

func TestProcess_HTTPSResultLocation(t *testing.T) {
	h := newHarness(t, mock.Behavior{HTTPSResult: true, Transcripts: []string{"What is Terraform?"}})

	_, err := h.pipeline.Process(context.Background(), models.NewAudioRequest(h.writeAudio(t, ".mp3", 2000), models.FormatMP3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(h.gen.prompts[0], "What is Terraform?") {
		t.Errorf("expected transcript in prompt, got %q", h.gen.prompts[0])
	}
}

func TestProcess_Validation(t *testing.T) {
	text := "hello"
	blank := "   "

	tests := []struct {
		name  string
		build func(h *harness) models.InterviewRequest
	}{
		{"no input", func(h *harness) models.InterviewRequest { return models.InterviewRequest{} }},
		{"both inputs", func(h *harness) models.InterviewRequest {
			return models.InterviewRequest{Text: &text, Audio: &models.AudioInput{Path: h.writeAudio(t, ".wav", 4000), Format: models.FormatWAV}}
		}},
		{"blank text", func(h *harness) models.InterviewRequest { return models.InterviewRequest{Text: &blank} }},
		{"too small", func(h *harness) models.InterviewRequest {
			return models.NewAudioRequest(h.writeAudio(t, ".wav", 50), models.FormatWAV)
		}},
		{"unsupported format", func(h *harness) models.InterviewRequest {
			return models.NewAudioRequest(h.writeAudio(t, ".ogg", 4000), models.FormatOGG)
		}},
		{"missing file", func(h *harness) models.InterviewRequest {
			return models.NewAudioRequest(filepath.Join(h.tempDir, "missing.wav"), models.FormatWAV)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, mock.Behavior{})
			_, err := h.pipeline.Process(context.Background(), tt.build(h))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
			var pe *ProcessingError
			if !errors.As(err, &pe) || pe.Stage != StageValidate {
				t.Errorf("expected validate stage, got %v", err)
			}
			if h.jobs.Submitted() != 0 || len(h.gen.prompts) != 0 || len(h.store.Keys()) != 0 {
				t.Error("expected no downstream calls on invalid input")
			}
			h.assertTempDirEmpty(t)
		})
	}
}

func TestProcess_TooSmallMessage(t *testing.T) {
	h := newHarness(t, mock.Behavior{})
	_, err := h.pipeline.Process(context.Background(), models.NewAudioRequest(h.writeAudio(t, ".wav", 50), models.FormatWAV))
	if err == nil || !strings.Contains(err.Error(), "too small") {
		t.Errorf("expected 'too small' validation error, got %v", err)
	}
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name      string
		behavior  mock.Behavior
		setup     func(h *harness)
		wantStage string
		wantErr   error
	}{
		{
			name:      "job failed",
			behavior:  mock.Behavior{FailureReason: "Unsupported media"},
			wantStage: StageTranscribe,
			wantErr:   ErrTranscriptionFailed,
		},
		{
			name:      "job never finishes",
			behavior:  mock.Behavior{Never: true},
			wantStage: StageTranscribe,
			wantErr:   ErrTranscriptionTimeout,
		},
		{
			name:      "bucket mismatch",
			behavior:  mock.Behavior{ResultBucket: "someone-elses-bucket"},
			wantStage: StageTranscript,
			wantErr:   ErrBucketMismatch,
		},
		{
			name:      "transcript missing",
			behavior:  mock.Behavior{SkipUpload: true},
			wantStage: StageTranscript,
			wantErr:   ErrTranscriptNotFound,
		},
		{
			name:      "empty transcripts",
			behavior:  mock.Behavior{Transcripts: []string{}},
			wantStage: StageTranscript,
			wantErr:   ErrNoTranscript,
		},
		{
			name:      "generator error",
			setup:     func(h *harness) { h.gen.err = errors.New("throttled") },
			wantStage: StageAnswer,
		},
		{
			name:      "synthesizer error",
			setup:     func(h *harness) { h.synth.err = tts.ErrRateLimited },
			wantStage: StageSynthesize,
			wantErr:   tts.ErrRateLimited,
		},
		{
			name:      "wrong content type",
			setup:     func(h *harness) { h.synth.contentType = "application/json" },
			wantStage: StageSynthesize,
			wantErr:   ErrIntegrity,
		},
		{
			name:      "speech too short",
			setup:     func(h *harness) { h.synth.size = 10 },
			wantStage: StageSynthesize,
			wantErr:   ErrIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.behavior)
			if tt.setup != nil {
				tt.setup(h)
			}

			_, err := h.pipeline.Process(context.Background(), models.NewAudioRequest(h.writeAudio(t, ".wav", 4000), models.FormatWAV))
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ProcessingError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProcessingError, got %T", err)
			}
			if pe.Stage != tt.wantStage {
				t.Errorf("expected stage %s, got %s (%v)", tt.wantStage, pe.Stage, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}

			h.assertTempDirEmpty(t)
			for _, k := range h.store.Keys() {
				if strings.HasPrefix(k, storage.PrefixInput) {
					t.Errorf("expected source upload to be deleted, found %s", k)
				}
			}

			last := h.events.events[len(h.events.events)-1]
			if last.EventType != models.EventInterviewFailed || last.Stage != tt.wantStage {
				t.Errorf("expected failed event at stage %s, got %+v", tt.wantStage, last)
			}
		})
	}
}

func TestProcess_BucketMismatch_NeverFetches(t *testing.T) {
	h := newHarness(t, mock.Behavior{ResultBucket: "attacker-bucket"})

	_, err := h.pipeline.Process(context.Background(), models.NewAudioRequest(h.writeAudio(t, ".wav", 4000), models.FormatWAV))
	if !errors.Is(err, ErrBucketMismatch) {
		t.Fatalf("expected bucket mismatch, got %v", err)
	}
	if len(h.store.gets) != 0 {
		t.Errorf("expected no downloads, got %v", h.store.gets)
	}
	if len(h.gen.prompts) != 0 {
		t.Error("expected generator not to be called")
	}
}

func TestProcess_Timeout_BoundedPolls(t *testing.T) {
	h := newHarness(t, mock.Behavior{Never: true})

	_, err := h.pipeline.Process(context.Background(), models.NewAudioRequest(h.writeAudio(t, ".wav", 4000), models.FormatWAV))
	if !errors.Is(err, ErrTranscriptionTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if got := h.jobs.StatusCalls(); got != 5 {
		t.Errorf("expected 5 status polls, got %d", got)
	}
}

func TestProcess_TranscodeFailure(t *testing.T) {
	h := newHarness(t, mock.Behavior{})
	h.conv.err = audioconv.ErrUnsupported
	req := models.NewAudioRequest(h.writeAudio(t, ".wav", 4000), models.FormatWAV)
	req.ReplyFormat = models.FormatOGG

	_, err := h.pipeline.Process(context.Background(), req)
	var pe *ProcessingError
	if !errors.As(err, &pe) || pe.Stage != StageTranscode {
		t.Fatalf("expected transcode failure, got %v", err)
	}
	h.assertTempDirEmpty(t)
}

func TestProcess_GeneratesRequestID(t *testing.T) {
	h := newHarness(t, mock.Behavior{})
	if _, err := h.pipeline.Process(context.Background(), models.NewTextRequest("What is DNS?")); err != nil {
		t.Fatal(err)
	}
	if h.events.events[0].RequestID == "" {
		t.Error("expected a generated request id on the event")
	}
}

func TestProcessingError_Unwrap(t *testing.T) {
	err := &ProcessingError{Stage: StageAnswer, Cause: ErrNoTranscript}
	if !errors.Is(err, ErrNoTranscript) {
		t.Error("expected errors.Is to see the cause")
	}
	if err.Error() != "answer: no transcript generated" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
