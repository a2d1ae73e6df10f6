package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the TTS gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Kipps synthesis endpoint. The service exposes POST <KIPPS_API_URL><KIPPS_SPEAK_PATH>
	// taking {"text": "..."} and answering with raw 16-bit little-endian mono PCM.
	KippsAPIURL    string `envconfig:"KIPPS_API_URL" required:"true"`
	KippsSpeakPath string `envconfig:"KIPPS_SPEAK_PATH" default:"/speak"`
	KippsModel     string `envconfig:"KIPPS_MODEL" default:"tts_models/en/ljspeech/glow-tts"` // informational only
	KippsLanguage  string `envconfig:"KIPPS_LANGUAGE" default:"en"`                           // en, hi
	KippsContainer string `envconfig:"KIPPS_CONTAINER" default:"wav"`
	KippsEncoding  string `envconfig:"KIPPS_ENCODING" default:"linear16"`

	// Audio framing configuration
	SampleRate      int `envconfig:"TTS_SAMPLE_RATE" default:"24000"`     // Hz, as produced by the endpoint
	FrameDurationMs int `envconfig:"TTS_FRAME_DURATION_MS" default:"20"`  // Frame length when FrameSamples is 0
	FrameSamples    int `envconfig:"TTS_FRAME_SAMPLES" default:"0"`       // Fixed samples per frame, overrides duration
	ReadChunkSize   int `envconfig:"TTS_READ_CHUNK_SIZE" default:"1024"`  // Bytes per network read
	QueueSize       int `envconfig:"TTS_QUEUE_SIZE" default:"64"`         // Frames buffered between reader and consumer
	MaxChunkLength  int `envconfig:"TTS_MAX_CHUNK_LENGTH" default:"250"`  // Characters per text chunk
	Concurrency     int `envconfig:"TTS_CONCURRENCY" default:"1"`         // Parallel chunk requests, 1 keeps strict order

	RequestTimeout time.Duration `envconfig:"TTS_REQUEST_TIMEOUT" default:"30s"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"1"`             // 1 disables retries
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every numeric knob the audio and text pipeline depend on.
func (c *Config) Validate() error {
	if c.KippsAPIURL == "" {
		return &InvalidError{Field: "KIPPS_API_URL", Value: c.KippsAPIURL, Reason: "is required"}
	}

	positive := []struct {
		field string
		value int
	}{
		{"TTS_SAMPLE_RATE", c.SampleRate},
		{"TTS_READ_CHUNK_SIZE", c.ReadChunkSize},
		{"TTS_QUEUE_SIZE", c.QueueSize},
		{"TTS_MAX_CHUNK_LENGTH", c.MaxChunkLength},
		{"TTS_CONCURRENCY", c.Concurrency},
		{"RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return &InvalidError{Field: p.field, Value: p.value, Reason: "must be positive"}
		}
	}

	if c.FrameSamples < 0 {
		return &InvalidError{Field: "TTS_FRAME_SAMPLES", Value: c.FrameSamples, Reason: "must not be negative"}
	}
	if c.FrameSamples == 0 && c.FrameDurationMs <= 0 {
		return &InvalidError{Field: "TTS_FRAME_DURATION_MS", Value: c.FrameDurationMs, Reason: "must be positive when TTS_FRAME_SAMPLES is unset"}
	}

	switch c.KippsLanguage {
	case "en", "hi":
	default:
		return &InvalidError{Field: "KIPPS_LANGUAGE", Value: c.KippsLanguage, Reason: "must be en or hi"}
	}
	if c.KippsContainer != "wav" {
		return &InvalidError{Field: "KIPPS_CONTAINER", Value: c.KippsContainer, Reason: "only wav is supported"}
	}
	if c.KippsEncoding != "linear16" {
		return &InvalidError{Field: "KIPPS_ENCODING", Value: c.KippsEncoding, Reason: "only linear16 is supported"}
	}

	return nil
}

// FrameDuration returns the configured frame length as a duration.
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameDurationMs) * time.Millisecond
}
