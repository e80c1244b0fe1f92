package app

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"interview-assistant-service/internal/config"
	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/observability/logging"
)

const serviceName = "interview-assistant-service"

// Interviewer answers a direct or routed interview request.
type Interviewer interface {
	Process(ctx context.Context, req models.InterviewRequest) (*models.InterviewResponse, error)
}

// WebhookRouter handles one webhook body.
type WebhookRouter interface {
	Route(ctx context.Context, raw []byte)
}

// Notifier turns text into a stored audio notification.
type Notifier interface {
	Notify(ctx context.Context, text string) (string, error)
}

// EnvelopeValidator checks webhook bodies before routing.
type EnvelopeValidator interface {
	Validate(raw []byte) error
}

// Components are the wired services the transports call into.
type Components struct {
	Interviewer Interviewer
	Router      WebhookRouter
	Notifier    Notifier
	Validator   EnvelopeValidator
	// Closers are closed in order on Shutdown.
	Closers []io.Closer
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Interviewer Interviewer
	Router      WebhookRouter
	Notifier    Notifier
	Validator   EnvelopeValidator

	closers  []io.Closer
	inflight sync.WaitGroup
	ready    bool
	mu       sync.RWMutex
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config, c Components) *Application {
	a := &Application{
		Cfg:         cfg,
		Interviewer: c.Interviewer,
		Router:      c.Router,
		Notifier:    c.Notifier,
		Validator:   c.Validator,
		closers:     c.Closers,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Interview assistant application created")
	return a
}

// setupLogger configures zerolog for the service. ZEROLOG_LOG_LEVEL wins
// over the configured level and ENV=dev switches to console output.
func (a *Application) setupLogger() {
	level := a.Cfg.Observability.LogLevel
	if envLevel := os.Getenv("ZEROLOG_LOG_LEVEL"); envLevel != "" {
		level = strings.ToLower(envLevel)
	}
	format := a.Cfg.Observability.LogFormat
	if os.Getenv("ENV") == "dev" {
		format = "console"
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = format
	logging.Init(logCfg)

	a.Logger = log.With().
		Str("service", serviceName).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("storage", a.Cfg.Storage.Backend).
		Str("stt", a.Cfg.STT.Provider).
		Str("answer", a.Cfg.Answer.Provider).
		Str("tts", a.Cfg.TTS.Provider).
		Str("dedup", a.Cfg.Dedup.Backend).
		Msg("Interview assistant starting")

	return nil
}

// Ready reports whether Start has run and Shutdown has not.
func (a *Application) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Go runs fn detached from the caller and tracks it until Shutdown.
func (a *Application) Go(fn func()) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		fn()
	}()
}

// Wait blocks until every function started with Go has returned.
func (a *Application) Wait() {
	a.inflight.Wait()
}

// Shutdown waits for in-flight work up to ctx's deadline, then closes
// the wired resources.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.mu.Lock()
	a.ready = false
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		shutdownLogger.Warn().Msg("Shutdown deadline reached with messages still in flight")
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Error closing resource")
		}
	}

	shutdownLogger.Info().Msg("Interview assistant shutting down")
}
