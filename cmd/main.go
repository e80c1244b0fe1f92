package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	grpcapi "interview-assistant-service/internal/api/grpc"
	"interview-assistant-service/internal/app"
	"interview-assistant-service/internal/audioconv"
	"interview-assistant-service/internal/channels"
	"interview-assistant-service/internal/channels/messenger"
	"interview-assistant-service/internal/channels/whatsapp"
	"interview-assistant-service/internal/config"
	"interview-assistant-service/internal/events"
	httpapi "interview-assistant-service/internal/http"
	"interview-assistant-service/internal/notify"
	"interview-assistant-service/internal/observability"
	"interview-assistant-service/internal/schema"
	"interview-assistant-service/internal/service/answer"
	"interview-assistant-service/internal/service/dedup"
	"interview-assistant-service/internal/service/pipeline"
	"interview-assistant-service/internal/service/router"
	"interview-assistant-service/internal/service/stt"
	sttaws "interview-assistant-service/internal/service/stt/aws"
	sttgoogle "interview-assistant-service/internal/service/stt/google"
	sttmock "interview-assistant-service/internal/service/stt/mock"
	"interview-assistant-service/internal/service/tts"
	"interview-assistant-service/internal/storage"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	ffmpegBin := pflag.String("ffmpeg", "ffmpeg", "ffmpeg binary used as the transcoding fallback")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg := config.Load()
	if err := os.MkdirAll(cfg.Service.TempDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	components, store, seen, err := wire(ctx, cfg, *ffmpegBin, &closers)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	components.Closers = closers

	application := app.New(cfg, components)

	sweeper := storage.NewSweeper(store, cfg.Retention.ReplyAudioTTL)
	if err := sweeper.Start(cfg.Retention.SweepSchedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to start retention sweeper")
	}
	defer sweeper.Stop()

	janitor, err := dedup.StartJanitor(seen, cfg.Dedup.PruneSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start dedup janitor")
	}
	defer janitor.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 10 * time.Second,
	}
	obsServer := observability.NewServer(cfg.Service.MetricsAddr)
	grpcServer := grpcapi.New()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen for gRPC")
	}

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	obsServer.SetReady(true)
	grpcServer.SetServing(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Interview assistant HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(obsServer.ListenAndServe)
	g.Go(func() error { return grpcServer.Serve(lis) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		obsServer.SetReady(false)
		grpcServer.SetServing(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown")
		}
		application.Shutdown(shutdownCtx)
		grpcServer.Stop()
		return obsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

// wire builds every provider from configuration. Anything holding a
// connection is appended to closers.
func wire(ctx context.Context, cfg *config.Config, ffmpegBin string, closers *[]io.Closer) (app.Components, storage.ObjectStore, dedup.Store, error) {
	var awsCfg aws.Config
	needsAWS := cfg.Storage.Backend == "s3" || cfg.STT.Provider == "aws" ||
		cfg.Answer.Provider == "bedrock" || cfg.TTS.Provider == "polly"
	if needsAWS {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
		if err != nil {
			return app.Components{}, nil, nil, fmt.Errorf("load aws config: %w", err)
		}
	}

	store, err := newStore(ctx, cfg, awsCfg, closers)
	if err != nil {
		return app.Components{}, nil, nil, err
	}
	jobs, err := newJobClient(ctx, cfg, awsCfg, store, closers)
	if err != nil {
		return app.Components{}, nil, nil, err
	}
	generator, err := newGenerator(cfg, awsCfg)
	if err != nil {
		return app.Components{}, nil, nil, err
	}
	synth, err := newSynthesizer(cfg, awsCfg)
	if err != nil {
		return app.Components{}, nil, nil, err
	}
	seen, err := newDedup(ctx, cfg)
	if err != nil {
		return app.Components{}, nil, nil, err
	}
	*closers = append(*closers, seen)

	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicInterviews: cfg.Kafka.TopicInterviews,
		TopicDeliveries: cfg.Kafka.TopicDeliveries,
		Principal:       cfg.Kafka.Principal,
	})
	*closers = append(*closers, publisher)

	transcoder := audioconv.Default(audioconv.NewFFmpeg(ffmpegBin, cfg.Timeouts.Transcode))

	interviews := pipeline.New(pipeline.Deps{
		Store:       store,
		Jobs:        jobs,
		Generator:   generator,
		Synthesizer: synth,
		Transcoder:  transcoder,
		Events:      publisher,
	}, pipeline.FromConfig(cfg))

	httpClient := channels.NewHTTPClient(cfg.Timeouts.HTTPClient)
	wh := cfg.Webhook
	inbound := router.New(router.Deps{
		Pipeline: interviews,
		Dedup:    seen,
		WhatsApp: whatsapp.New(wh.GraphBaseURL, wh.GraphVersion, wh.WhatsAppToken, httpClient,
			whatsapp.WithAudioCheck(wh.AudioCheckRetries, wh.AudioCheckDelay)),
		Messenger:  messenger.New(wh.GraphBaseURL, wh.GraphVersion, wh.PageAccessToken, httpClient),
		Transcoder: transcoder,
		Events:     publisher,
	}, router.Config{
		TempDir:              cfg.Service.TempDir,
		MinInboundMediaBytes: cfg.Limits.MinInboundMediaBytes,
	})

	validator, err := schema.New()
	if err != nil {
		return app.Components{}, nil, nil, fmt.Errorf("compile envelope schema: %w", err)
	}

	return app.Components{
		Interviewer: interviews,
		Router:      inbound,
		Notifier:    notify.New(store, synth, cfg.Service.TempDir, cfg.Timeouts.Provider),
		Validator:   validator,
	}, store, seen, nil
}

func newStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, closers *[]io.Closer) (storage.ObjectStore, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case "s3":
		return storage.NewS3Store(s3.NewFromConfig(awsCfg), sc.Bucket, sc.Region, sc.PublicBaseURL), nil
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		*closers = append(*closers, client)
		return storage.NewGCSStore(client, sc.Bucket, sc.PublicBaseURL), nil
	case "memory":
		var opts []storage.MemoryOption
		if sc.PublicBaseURL != "" {
			opts = append(opts, storage.WithMemoryBaseURL(sc.PublicBaseURL))
		}
		return storage.NewMemory(sc.Bucket, opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

func newJobClient(ctx context.Context, cfg *config.Config, awsCfg aws.Config, store storage.ObjectStore, closers *[]io.Closer) (stt.JobClient, error) {
	switch cfg.STT.Provider {
	case "aws":
		return sttaws.New(transcribe.NewFromConfig(awsCfg)), nil
	case "google":
		gc := sttgoogle.DefaultConfig()
		gc.LanguageCode = cfg.STT.LanguageCode
		gc.SampleRateHz = cfg.STT.SampleRateHz
		gc.AudioEncoding = cfg.STT.AudioEncoding
		client, err := sttgoogle.New(ctx, gc)
		if err != nil {
			return nil, fmt.Errorf("create google stt client: %w", err)
		}
		*closers = append(*closers, client)
		return client, nil
	case "mock":
		return sttmock.New(store, sttmock.Behavior{PollsUntilDone: 1}), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.STT.Provider)
	}
}

func newGenerator(cfg *config.Config, awsCfg aws.Config) (answer.Generator, error) {
	ac := cfg.Answer
	switch ac.Provider {
	case "bedrock":
		return answer.NewBedrock(bedrockruntime.NewFromConfig(awsCfg), ac.Model, ac.MaxTokens, ac.Temperature), nil
	case "openai":
		if ac.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai answer provider")
		}
		return answer.NewOpenAI(ac.OpenAIAPIKey, ac.Model, ac.MaxTokens, ac.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown answer provider %q", ac.Provider)
	}
}

func newSynthesizer(cfg *config.Config, awsCfg aws.Config) (tts.Synthesizer, error) {
	tc := cfg.TTS
	switch tc.Provider {
	case "polly":
		return tts.NewPolly(polly.NewFromConfig(awsCfg), tc.Voice, tc.Engine), nil
	case "elevenlabs":
		if tc.ElevenLabsAPIKey == "" {
			return nil, errors.New("ELEVENLABS_API_KEY is required for the elevenlabs tts provider")
		}
		return tts.NewElevenLabs(tc.ElevenLabsAPIKey,
			tts.WithElevenLabsModel(tc.ElevenLabsModel),
			tts.WithElevenLabsClient(channels.NewHTTPClient(cfg.Timeouts.Provider)),
		), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", tc.Provider)
	}
}

func newDedup(ctx context.Context, cfg *config.Config) (dedup.Store, error) {
	dc := cfg.Dedup
	switch dc.Backend {
	case "memory":
		return dedup.NewMemoryStore(dc.TTL), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: dc.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", dc.RedisAddr, err)
		}
		return dedup.NewRedisStore(client, dedup.WithTTL(dc.TTL), dedup.WithPrefix(dc.RedisPrefix)), nil
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return dedup.NewPostgresStore(connectCtx, dc.PostgresDSN, dc.TTL)
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", dc.Backend)
	}
}
