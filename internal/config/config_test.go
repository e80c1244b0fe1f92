package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	envVars := []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "LOG_LEVEL",
		"STORAGE_BACKEND", "STORAGE_BUCKET",
		"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_POLL_INTERVAL", "STT_MAX_POLL_ATTEMPTS",
		"STT_SETTLE_DELAY", "STT_RESULT_RETRIES",
		"DEDUP_BACKEND", "DEDUP_PRUNE_SCHEDULE", "MAX_UPLOAD_BYTES", "MIN_AUDIO_BYTES",
		"RETENTION_REPLY_AUDIO", "KAFKA_PRINCIPAL", "KAFKA_BROKERS",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Service.Principal != "svc-interview-assistant" {
		t.Errorf("expected default principal 'svc-interview-assistant', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default http port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default grpc port '50051', got %s", cfg.Service.GRPCPort)
	}

	if cfg.Storage.Backend != "s3" {
		t.Errorf("expected default storage backend 's3', got %s", cfg.Storage.Backend)
	}
	if cfg.STT.Provider != "aws" {
		t.Errorf("expected default STT provider 'aws', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.PollInterval != 3*time.Second {
		t.Errorf("expected default poll interval 3s, got %v", cfg.STT.PollInterval)
	}
	if cfg.STT.MaxPollAttempts != 60 {
		t.Errorf("expected default max poll attempts 60, got %d", cfg.STT.MaxPollAttempts)
	}
	if cfg.STT.SettleDelay != 5*time.Second {
		t.Errorf("expected default settle delay 5s, got %v", cfg.STT.SettleDelay)
	}
	if cfg.STT.ResultRetries != 3 {
		t.Errorf("expected default result retries 3, got %d", cfg.STT.ResultRetries)
	}

	if cfg.Dedup.Backend != "memory" {
		t.Errorf("expected default dedup backend 'memory', got %s", cfg.Dedup.Backend)
	}
	if cfg.Dedup.PruneSchedule != "@hourly" {
		t.Errorf("expected default dedup prune schedule '@hourly', got %s", cfg.Dedup.PruneSchedule)
	}
	if cfg.Limits.MaxUploadBytes != 10*1024*1024 {
		t.Errorf("expected default max upload 10MiB, got %d", cfg.Limits.MaxUploadBytes)
	}
	if cfg.Limits.MinAudioBytes != 1000 {
		t.Errorf("expected default min audio bytes 1000, got %d", cfg.Limits.MinAudioBytes)
	}
	if cfg.Retention.ReplyAudioTTL != 0 {
		t.Errorf("expected reply audio to be retained by default, got ttl %v", cfg.Retention.ReplyAudioTTL)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no default brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_BACKEND", "gcs")
	t.Setenv("STORAGE_BUCKET", "my-bucket")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("STT_POLL_INTERVAL", "500ms")
	t.Setenv("STT_MAX_POLL_ATTEMPTS", "10")
	t.Setenv("DEDUP_BACKEND", "redis")
	t.Setenv("DEDUP_TTL", "1h")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("RETENTION_REPLY_AUDIO", "72h")
	t.Setenv("ANSWER_TEMPERATURE", "0.2")

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Storage.Backend != "gcs" || cfg.Storage.Bucket != "my-bucket" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.PollInterval != 500*time.Millisecond {
		t.Errorf("expected poll interval 500ms, got %v", cfg.STT.PollInterval)
	}
	if cfg.STT.MaxPollAttempts != 10 {
		t.Errorf("expected 10 poll attempts, got %d", cfg.STT.MaxPollAttempts)
	}
	if cfg.Dedup.Backend != "redis" || cfg.Dedup.TTL != time.Hour {
		t.Errorf("unexpected dedup config %+v", cfg.Dedup)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Retention.ReplyAudioTTL != 72*time.Hour {
		t.Errorf("expected retention 72h, got %v", cfg.Retention.ReplyAudioTTL)
	}
	if cfg.Answer.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.Answer.Temperature)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	t.Setenv("STT_POLL_INTERVAL", "not-a-duration")
	t.Setenv("STT_MAX_POLL_ATTEMPTS", "many")
	t.Setenv("KAFKA_ENABLED", "invalid")
	t.Setenv("MAX_UPLOAD_BYTES", "invalid")
	t.Setenv("ANSWER_TEMPERATURE", "warm")

	cfg := Load()

	if cfg.STT.PollInterval != 3*time.Second {
		t.Errorf("expected default poll interval on invalid input, got %v", cfg.STT.PollInterval)
	}
	if cfg.STT.MaxPollAttempts != 60 {
		t.Errorf("expected default attempts on invalid input, got %d", cfg.STT.MaxPollAttempts)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled on invalid input")
	}
	if cfg.Limits.MaxUploadBytes != 10*1024*1024 {
		t.Errorf("expected default max upload on invalid input, got %d", cfg.Limits.MaxUploadBytes)
	}
	if cfg.Answer.Temperature != 0.7 {
		t.Errorf("expected default temperature on invalid input, got %v", cfg.Answer.Temperature)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected int
	}{
		{"single", "a:1", 1},
		{"several", "a:1,b:2,c:3", 3},
		{"blank entries", " , a:1 ,, ", 1},
		{"only separators", ",,", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_LIST_VAR", tt.envValue)
			got := envOrDefaultList("TEST_LIST_VAR", nil)
			if len(got) != tt.expected {
				t.Errorf("envOrDefaultList(%q) = %v, want %d entries", tt.envValue, got, tt.expected)
			}
		})
	}
}
