// Package pipeline answers one interview question, spoken or typed.
//
// Audio input goes through object storage and an asynchronous transcription
// job before the answer is generated and spoken back; text input skips both
// transcription and synthesis. Every local file and intermediate object the
// invocation creates is removed before Process returns. Only the spoken
// reply is kept.
package pipeline

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interview-assistant-service/internal/audioconv"
	"interview-assistant-service/internal/config"
	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/observability/logging"
	"interview-assistant-service/internal/observability/metrics"
	"interview-assistant-service/internal/service/answer"
	"interview-assistant-service/internal/service/stt"
	"interview-assistant-service/internal/service/tts"
	"interview-assistant-service/internal/storage"
)

// Stage names used in errors, logs and metrics.
const (
	StageValidate   = "validate"
	StageUpload     = "upload"
	StageTranscribe = "transcribe"
	StageTranscript = "transcript"
	StageAnswer     = "answer"
	StageSynthesize = "synthesize"
	StageTranscode  = "transcode"
	StageReply      = "reply_upload"
)

// Transcoder converts a local audio file; *audioconv.Chain satisfies it.
type Transcoder interface {
	Convert(ctx context.Context, src, dst string, target audioconv.Target) error
}

// EventPublisher receives one event per invocation; *events.Publisher
// satisfies it.
type EventPublisher interface {
	PublishInterview(ctx context.Context, event models.InterviewEvent) error
}

// Deps are the collaborators of a Pipeline. Events may be nil.
type Deps struct {
	Store       storage.ObjectStore
	Jobs        stt.JobClient
	Generator   answer.Generator
	Synthesizer tts.Synthesizer
	Transcoder  Transcoder
	Events      EventPublisher
}

// Config holds pipeline tunables.
type Config struct {
	TempDir      string
	LanguageCode string
	Persona      string

	PollInterval     time.Duration
	MaxPollAttempts  int
	SettleDelay      time.Duration
	ResultRetries    int
	ResultRetryDelay time.Duration

	MinAudioBytes  int64
	MinSpeechBytes int64

	// ProviderTimeout bounds each storage, transcription, generation and
	// synthesis call. Zero disables the bound.
	ProviderTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		TempDir:          os.TempDir(),
		LanguageCode:     "en-US",
		PollInterval:     3 * time.Second,
		MaxPollAttempts:  60,
		SettleDelay:      5 * time.Second,
		ResultRetries:    3,
		ResultRetryDelay: 2 * time.Second,
		MinAudioBytes:    1000,
		MinSpeechBytes:   1000,
		ProviderTimeout:  60 * time.Second,
	}
}

// FromConfig derives pipeline settings from service configuration.
func FromConfig(cfg *config.Config) Config {
	return Config{
		TempDir:          cfg.Service.TempDir,
		LanguageCode:     cfg.STT.LanguageCode,
		Persona:          cfg.Answer.Persona,
		PollInterval:     cfg.STT.PollInterval,
		MaxPollAttempts:  cfg.STT.MaxPollAttempts,
		SettleDelay:      cfg.STT.SettleDelay,
		ResultRetries:    cfg.STT.ResultRetries,
		ResultRetryDelay: cfg.STT.ResultRetryDelay,
		MinAudioBytes:    cfg.Limits.MinAudioBytes,
		MinSpeechBytes:   cfg.Limits.MinSpeechBytes,
		ProviderTimeout:  cfg.Timeouts.Provider,
	}
}

// Pipeline runs interview invocations. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	deps    Deps
	cfg     Config
	metrics *metrics.Metrics
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 1
	}
	if cfg.ResultRetries <= 0 {
		cfg.ResultRetries = 1
	}
	return &Pipeline{deps: deps, cfg: cfg, metrics: metrics.DefaultMetrics}
}

// Process answers req. It takes ownership of req.Audio.Path and removes it
// before returning. Errors are always *ProcessingError.
func (p *Pipeline) Process(ctx context.Context, req models.InterviewRequest) (*models.InterviewResponse, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	inputType := "text"
	if req.Audio != nil {
		inputType = "audio"
	}
	logger := logging.WithRequest(req.RequestID, inputType)

	p.metrics.RecordInterviewStart()

	a := &artifacts{}
	if req.Audio != nil && req.Audio.Path != "" {
		a.local = append(a.local, req.Audio.Path)
	}

	resp, err := p.run(ctx, req, a, &logger)
	p.cleanup(context.WithoutCancel(ctx), a, &logger)

	elapsed := time.Since(start)
	p.metrics.RecordInterviewEnd(inputType, err == nil, elapsed.Seconds())

	event := models.InterviewEvent{
		EventType:  models.EventInterviewCompleted,
		RequestID:  req.RequestID,
		InputType:  inputType,
		Timestamp:  time.Now().UnixMilli(),
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		event.EventType = models.EventInterviewFailed
		event.Error = err.Error()
		if pe, ok := err.(*ProcessingError); ok {
			event.Stage = pe.Stage
		}
		logger.Error().Err(err).Str("stage", event.Stage).Dur("elapsed", elapsed).Msg("Interview processing failed")
	} else {
		event.AnswerLen = len(resp.AnswerText)
		event.AudioURL = resp.AudioURL
		logger.Info().Dur("elapsed", elapsed).Bool("audioReply", resp.HasAudio()).Msg("Interview processed")
	}
	if p.deps.Events != nil {
		if perr := p.deps.Events.PublishInterview(context.WithoutCancel(ctx), event); perr != nil {
			logger.Warn().Err(perr).Msg("Failed to publish interview event")
		}
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *Pipeline) run(ctx context.Context, req models.InterviewRequest, a *artifacts, logger *zerolog.Logger) (*models.InterviewResponse, error) {
	if err := p.validate(req); err != nil {
		return nil, &ProcessingError{Stage: StageValidate, Cause: err}
	}

	var question string
	if req.Audio != nil {
		q, err := p.transcribe(ctx, req.RequestID, req.Audio, a, logger)
		if err != nil {
			return nil, err
		}
		question = q
	} else {
		question = strings.TrimSpace(*req.Text)
	}
	logger.Debug().Str("question", question).Msg("Question resolved")

	var text string
	err := p.stage(StageAnswer, func() error {
		cctx, cancel := p.bounded(ctx)
		defer cancel()
		out, err := p.deps.Generator.Generate(cctx, answer.BuildPrompt(p.cfg.Persona, question))
		text = out
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("answerLength", len(text)).Str("generator", p.deps.Generator.Name()).Msg("Answer generated")

	resp := &models.InterviewResponse{AnswerText: text}
	if req.Audio == nil {
		return resp, nil
	}

	url, err := p.speak(ctx, text, req.ReplyFormat, a, logger)
	if err != nil {
		return nil, err
	}
	resp.AudioURL = url
	return resp, nil
}

func (p *Pipeline) validate(req models.InterviewRequest) error {
	hasAudio := req.Audio != nil
	hasText := req.Text != nil
	switch {
	case hasAudio && hasText:
		return &ValidationError{Message: "provide either audio or text, not both"}
	case !hasAudio && !hasText:
		return &ValidationError{Message: "either audio or text input is required"}
	}

	if hasText {
		if strings.TrimSpace(*req.Text) == "" {
			return &ValidationError{Field: "text", Message: "text is blank"}
		}
		return nil
	}

	switch req.Audio.Format {
	case models.FormatWAV, models.FormatMP3:
	default:
		return &ValidationError{Field: "audio", Message: fmt.Sprintf("unsupported audio format %q, supported: wav, mp3", req.Audio.Format)}
	}
	info, err := os.Stat(req.Audio.Path)
	if err != nil {
		return &ValidationError{Field: "audio", Message: "audio file is not readable"}
	}
	if info.Size() < p.cfg.MinAudioBytes {
		return &ValidationError{Field: "audio", Message: "audio file is too small or invalid"}
	}
	switch req.ReplyFormat {
	case "", models.FormatMP3, models.FormatWAV, models.FormatOGG:
	default:
		return &ValidationError{Field: "replyFormat", Message: fmt.Sprintf("unsupported reply format %q", req.ReplyFormat)}
	}
	return nil
}

// transcribe uploads the audio, runs a transcription job to completion and
// returns the first transcript.
func (p *Pipeline) transcribe(ctx context.Context, requestID string, in *models.AudioInput, a *artifacts, logger *zerolog.Logger) (string, error) {
	key := storage.NewKey(storage.PrefixInput, in.Format.Ext())
	err := p.stage(StageUpload, func() error {
		cctx, cancel := p.bounded(ctx)
		defer cancel()
		if err := p.deps.Store.Put(cctx, key, in.Path, in.Format.ContentType()); err != nil {
			return err
		}
		a.objects = append(a.objects, key)
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Debug().Str("key", key).Msg("Audio uploaded")

	var job *models.TranscriptionJob
	err = p.stage(StageTranscribe, func() error {
		spec := stt.JobSpec{
			Name:         stt.NewJobName(),
			SourceURI:    p.deps.Store.URI(key),
			Format:       in.Format,
			LanguageCode: p.cfg.LanguageCode,
			OutputBucket: p.deps.Store.Bucket(),
		}
		cctx, cancel := p.bounded(ctx)
		submitted, err := p.deps.Jobs.Submit(cctx, spec)
		cancel()
		if err != nil {
			return fmt.Errorf("submit job: %w", err)
		}
		jobLog := logging.WithJob(requestID, submitted.JobID, p.deps.Jobs.Name())
		job, err = p.awaitJob(ctx, submitted, &jobLog)
		return err
	})
	if err != nil {
		return "", err
	}

	var question string
	err = p.stage(StageTranscript, func() error {
		q, err := p.readTranscript(ctx, job, a, logger)
		question = q
		return err
	})
	return question, err
}

// awaitJob polls until the job is terminal or the attempt budget runs out.
func (p *Pipeline) awaitJob(ctx context.Context, job *models.TranscriptionJob, logger *zerolog.Logger) (*models.TranscriptionJob, error) {
	provider := p.deps.Jobs.Name()
	current := job
	for attempt := 0; attempt < p.cfg.MaxPollAttempts; attempt++ {
		cctx, cancel := p.bounded(ctx)
		status, err := p.deps.Jobs.Status(cctx, job.JobID)
		cancel()
		p.metrics.RecordPoll()
		if err != nil {
			return nil, fmt.Errorf("job status: %w", err)
		}
		current = status
		logger.Debug().Int("attempt", attempt+1).Str("status", string(status.Status)).Msg("Transcription job status")
		if status.Status.IsTerminal() {
			break
		}
		if err := sleep(ctx, p.cfg.PollInterval); err != nil {
			return nil, err
		}
	}

	switch current.Status {
	case models.JobFailed:
		p.metrics.RecordTranscriptionJob(provider, "failed")
		reason := current.FailureReason
		if reason == "" {
			reason = "Unknown"
		}
		return nil, fmt.Errorf("%w: %s", ErrTranscriptionFailed, reason)
	case models.JobCompleted:
		p.metrics.RecordTranscriptionJob(provider, "completed")
	default:
		p.metrics.RecordTranscriptionJob(provider, "timeout")
		return nil, fmt.Errorf("%w after %d attempts", ErrTranscriptionTimeout, p.cfg.MaxPollAttempts)
	}

	// Result objects can lag behind the COMPLETED status.
	if err := sleep(ctx, p.cfg.SettleDelay); err != nil {
		return nil, err
	}
	if current.ResultURI == "" {
		return nil, fmt.Errorf("%w: job completed without a result location", ErrTranscriptNotFound)
	}
	return current, nil
}

// readTranscript resolves the job result inside the configured bucket,
// downloads it and returns the first transcript.
func (p *Pipeline) readTranscript(ctx context.Context, job *models.TranscriptionJob, a *artifacts, logger *zerolog.Logger) (string, error) {
	loc, err := storage.ParseLocator(job.ResultURI)
	if err != nil {
		return "", err
	}
	if loc.Bucket != p.deps.Store.Bucket() {
		return "", fmt.Errorf("%w: expected %s, got %s", ErrBucketMismatch, p.deps.Store.Bucket(), loc.Bucket)
	}
	a.objects = append(a.objects, loc.Key)
	logger.Debug().Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("Transcript located")

	for attempt := 1; ; attempt++ {
		cctx, cancel := p.bounded(ctx)
		ok, err := p.deps.Store.Exists(cctx, loc.Key)
		cancel()
		if err != nil {
			return "", fmt.Errorf("check transcript: %w", err)
		}
		if ok {
			break
		}
		if attempt >= p.cfg.ResultRetries {
			logger.Error().Int("attempts", attempt).Str("key", loc.Key).Msg("Transcript file not found")
			return "", fmt.Errorf("%w: %s", ErrTranscriptNotFound, loc.Key)
		}
		logger.Debug().Int("attempt", attempt).Msg("Transcript not found, retrying")
		if err := sleep(ctx, p.cfg.ResultRetryDelay); err != nil {
			return "", err
		}
	}

	path := a.tempFile(p.cfg.TempDir, ".json")
	cctx, cancel := p.bounded(ctx)
	err = p.deps.Store.Get(cctx, loc.Key, path)
	cancel()
	if err != nil {
		return "", fmt.Errorf("download transcript: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	transcripts, err := p.deps.Jobs.ParseTranscripts(data)
	if err != nil {
		return "", err
	}
	if len(transcripts) == 0 || strings.TrimSpace(transcripts[0]) == "" {
		return "", ErrNoTranscript
	}
	return strings.TrimSpace(transcripts[0]), nil
}

// speak synthesizes text, converts it to the requested container and
// uploads it as the reply. It returns the reply's public URL.
func (p *Pipeline) speak(ctx context.Context, text string, format models.AudioFormat, a *artifacts, logger *zerolog.Logger) (string, error) {
	if format == "" {
		format = models.FormatMP3
	}

	var mp3Path string
	err := p.stage(StageSynthesize, func() error {
		cctx, cancel := p.bounded(ctx)
		defer cancel()
		speech, err := p.deps.Synthesizer.Synthesize(cctx, text)
		if err != nil {
			return err
		}
		if mt, _, _ := mime.ParseMediaType(speech.ContentType); mt != models.FormatMP3.ContentType() {
			return fmt.Errorf("%w: synthesized content type %q", ErrIntegrity, speech.ContentType)
		}
		if int64(len(speech.Audio)) < p.cfg.MinSpeechBytes {
			return fmt.Errorf("%w: synthesized audio is only %d bytes", ErrIntegrity, len(speech.Audio))
		}
		mp3Path = a.tempFile(p.cfg.TempDir, models.FormatMP3.Ext())
		return os.WriteFile(mp3Path, speech.Audio, 0o600)
	})
	if err != nil {
		return "", err
	}
	logger.Debug().Str("synthesizer", p.deps.Synthesizer.Name()).Msg("Reply synthesized")

	replyPath := mp3Path
	if format != models.FormatMP3 {
		err := p.stage(StageTranscode, func() error {
			if p.deps.Transcoder == nil {
				return fmt.Errorf("no transcoder configured for %s replies", format)
			}
			out := a.tempFile(p.cfg.TempDir, format.Ext())
			if err := p.deps.Transcoder.Convert(ctx, mp3Path, out, audioconv.ReplyTarget(format)); err != nil {
				return err
			}
			replyPath = out
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	key := storage.NewKey(storage.PrefixOutput, format.Ext())
	err = p.stage(StageReply, func() error {
		cctx, cancel := p.bounded(ctx)
		defer cancel()
		return p.deps.Store.Put(cctx, key, replyPath, format.ContentType())
	})
	if err != nil {
		return "", err
	}
	url := p.deps.Store.PublicURL(key)
	logger.Debug().Str("key", key).Str("url", url).Msg("Reply uploaded")
	return url, nil
}

// stage times fn and wraps its error with the stage name.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.RecordStage(name, time.Since(start).Seconds())
	if err != nil {
		return &ProcessingError{Stage: name, Cause: err}
	}
	return nil
}

func (p *Pipeline) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.ProviderTimeout)
}

// cleanup removes every local file and intermediate object. Failures are
// logged and counted, never returned.
func (p *Pipeline) cleanup(ctx context.Context, a *artifacts, logger *zerolog.Logger) {
	for _, path := range a.local {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to remove local file")
			p.metrics.RecordCleanupFailure("local")
			continue
		}
		logger.Debug().Str("path", path).Msg("Removed local file")
	}
	for _, key := range a.objects {
		cctx, cancel := p.bounded(ctx)
		err := p.deps.Store.Delete(cctx, key)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to delete intermediate object")
			p.metrics.RecordCleanupFailure("object")
			continue
		}
		logger.Debug().Str("key", key).Msg("Deleted intermediate object")
	}
}

// artifacts tracks what an invocation created so cleanup can undo it.
type artifacts struct {
	local   []string
	objects []string
}

func (a *artifacts) tempFile(dir, ext string) string {
	path := filepath.Join(dir, uuid.NewString()+ext)
	a.local = append(a.local, path)
	return path
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
