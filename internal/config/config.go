// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the interview assistant service.
type Config struct {
	Service       ServiceConfig
	Storage       StorageConfig
	STT           STTConfig
	Answer        AnswerConfig
	TTS           TTSConfig
	Webhook       WebhookConfig
	Dedup         DedupConfig
	Kafka         KafkaConfig
	Retention     RetentionConfig
	Limits        LimitsConfig
	Timeouts      TimeoutsConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsAddr string
	TempDir     string
	CORSOrigin  string
}

type StorageConfig struct {
	Backend string // s3, gcs, memory
	Bucket  string
	Region  string
	// PublicBaseURL overrides the derived public URL prefix (CDN, emulator).
	PublicBaseURL string
}

type STTConfig struct {
	Provider         string // aws, google, mock
	LanguageCode     string
	AudioEncoding    string
	SampleRateHz     int
	PollInterval     time.Duration
	MaxPollAttempts  int
	SettleDelay      time.Duration
	ResultRetries    int
	ResultRetryDelay time.Duration
}

type AnswerConfig struct {
	Provider     string // bedrock, openai
	Model        string
	MaxTokens    int
	Temperature  float64
	Persona      string
	OpenAIAPIKey string
}

type TTSConfig struct {
	Provider         string // polly, elevenlabs
	Voice            string
	Engine           string
	ElevenLabsAPIKey string
	ElevenLabsModel  string
}

type WebhookConfig struct {
	VerifyToken       string
	GraphBaseURL      string
	GraphVersion      string
	PageAccessToken   string
	WhatsAppToken     string
	AudioCheckRetries int
	AudioCheckDelay   time.Duration
}

type DedupConfig struct {
	Backend       string // memory, redis, postgres
	TTL           time.Duration
	PruneSchedule string
	RedisAddr     string
	RedisPrefix   string
	PostgresDSN   string
}

type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicInterviews string
	TopicDeliveries string
	Principal       string
}

type RetentionConfig struct {
	// ReplyAudioTTL is how long synthesized replies stay in storage.
	// Zero keeps them forever.
	ReplyAudioTTL time.Duration
	SweepSchedule string
}

type LimitsConfig struct {
	MaxUploadBytes       int64
	MinAudioBytes        int64
	MinInboundMediaBytes int64
	MinSpeechBytes       int64
}

type TimeoutsConfig struct {
	HTTPClient time.Duration
	Transcode  time.Duration
	Provider   time.Duration
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

const defaultPersona = "You are a DevOps technical interview bot. You are also a DevOps expert with DevOps Interview Knowledge."

// Load reads configuration from environment variables, falling back to
// defaults for anything unset or unparsable.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-interview-assistant")

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			TempDir:     envOrDefault("TEMP_DIR", os.TempDir()),
			CORSOrigin:  envOrDefault("CORS_ALLOWED_ORIGIN", ""),
		},
		Storage: StorageConfig{
			Backend:       envOrDefault("STORAGE_BACKEND", "s3"),
			Bucket:        envOrDefault("STORAGE_BUCKET", "chatbotbucket-vkt"),
			Region:        envOrDefault("AWS_REGION", "ap-southeast-2"),
			PublicBaseURL: envOrDefault("STORAGE_PUBLIC_BASE_URL", ""),
		},
		STT: STTConfig{
			Provider:         envOrDefault("STT_PROVIDER", "aws"),
			LanguageCode:     envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			AudioEncoding:    envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			SampleRateHz:     envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			PollInterval:     envOrDefaultDuration("STT_POLL_INTERVAL", 3*time.Second),
			MaxPollAttempts:  envOrDefaultInt("STT_MAX_POLL_ATTEMPTS", 60),
			SettleDelay:      envOrDefaultDuration("STT_SETTLE_DELAY", 5*time.Second),
			ResultRetries:    envOrDefaultInt("STT_RESULT_RETRIES", 3),
			ResultRetryDelay: envOrDefaultDuration("STT_RESULT_RETRY_DELAY", 2*time.Second),
		},
		Answer: AnswerConfig{
			Provider:     envOrDefault("ANSWER_PROVIDER", "bedrock"),
			Model:        envOrDefault("ANSWER_MODEL", "anthropic.claude-3-sonnet-20240229-v1:0"),
			MaxTokens:    envOrDefaultInt("ANSWER_MAX_TOKENS", 256),
			Temperature:  envOrDefaultFloat("ANSWER_TEMPERATURE", 0.7),
			Persona:      envOrDefault("ANSWER_PERSONA", defaultPersona),
			OpenAIAPIKey: envOrDefault("OPENAI_API_KEY", ""),
		},
		TTS: TTSConfig{
			Provider:         envOrDefault("TTS_PROVIDER", "polly"),
			Voice:            envOrDefault("TTS_VOICE", "Joanna"),
			Engine:           envOrDefault("TTS_ENGINE", "neural"),
			ElevenLabsAPIKey: envOrDefault("ELEVENLABS_API_KEY", ""),
			ElevenLabsModel:  envOrDefault("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		},
		Webhook: WebhookConfig{
			VerifyToken:       envOrDefault("WEBHOOK_VERIFY_TOKEN", ""),
			GraphBaseURL:      envOrDefault("GRAPH_BASE_URL", "https://graph.facebook.com"),
			GraphVersion:      envOrDefault("GRAPH_API_VERSION", "v19.0"),
			PageAccessToken:   envOrDefault("PAGE_ACCESS_TOKEN", ""),
			WhatsAppToken:     envOrDefault("WHATSAPP_TOKEN", ""),
			AudioCheckRetries: envOrDefaultInt("AUDIO_CHECK_RETRIES", 3),
			AudioCheckDelay:   envOrDefaultDuration("AUDIO_CHECK_DELAY", 2*time.Second),
		},
		Dedup: DedupConfig{
			Backend:       envOrDefault("DEDUP_BACKEND", "memory"),
			TTL:           envOrDefaultDuration("DEDUP_TTL", 24*time.Hour),
			PruneSchedule: envOrDefault("DEDUP_PRUNE_SCHEDULE", "@hourly"),
			RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPrefix:   envOrDefault("REDIS_PREFIX", "interview-assistant"),
			PostgresDSN:   envOrDefault("POSTGRES_DSN", ""),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultList("KAFKA_BROKERS", nil),
			TopicInterviews: envOrDefault("KAFKA_TOPIC_INTERVIEWS", "interview.events"),
			TopicDeliveries: envOrDefault("KAFKA_TOPIC_DELIVERIES", "interview.deliveries"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Retention: RetentionConfig{
			ReplyAudioTTL: envOrDefaultDuration("RETENTION_REPLY_AUDIO", 0),
			SweepSchedule: envOrDefault("RETENTION_SWEEP_SCHEDULE", "@hourly"),
		},
		Limits: LimitsConfig{
			MaxUploadBytes:       envOrDefaultInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
			MinAudioBytes:        envOrDefaultInt64("MIN_AUDIO_BYTES", 1000),
			MinInboundMediaBytes: envOrDefaultInt64("MIN_INBOUND_MEDIA_BYTES", 1000),
			MinSpeechBytes:       envOrDefaultInt64("MIN_SPEECH_BYTES", 1000),
		},
		Timeouts: TimeoutsConfig{
			HTTPClient: envOrDefaultDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second),
			Transcode:  envOrDefaultDuration("TRANSCODE_TIMEOUT", 30*time.Second),
			Provider:   envOrDefaultDuration("PROVIDER_TIMEOUT", 60*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
