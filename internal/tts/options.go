package tts

import (
	"net/url"
	"time"

	"github.com/kippsai/tts-gateway/internal/config"
	"github.com/kippsai/tts-gateway/internal/resilience"
	"github.com/kippsai/tts-gateway/internal/textchunk"
)

const (
	// DefaultModel is reported for informational purposes; the endpoint picks its own.
	DefaultModel = "tts_models/en/ljspeech/glow-tts"

	// DefaultSampleRate is the rate of the PCM returned by the endpoint.
	DefaultSampleRate = 24000

	// NumChannels is fixed: the endpoint produces mono audio.
	NumChannels = 1

	// DefaultReadChunkSize matches the size of each network read fed to the accumulator.
	DefaultReadChunkSize = 1024
)

// Languages supported by the endpoint.
var Languages = []string{"en", "hi"}

// Options configures a Client. Build it once, Validate it, and do not mutate it afterwards.
type Options struct {
	BaseURL   string
	SpeakPath string
	Model     string
	Language  string
	Encoding  string
	Container string

	SampleRate    int
	NumChannels   int
	FrameSamples  int           // Samples per frame; takes precedence over FrameDuration
	FrameDuration time.Duration // Used when FrameSamples is 0

	ReadChunkSize  int
	QueueSize      int
	MaxChunkLength int
	Concurrency    int
	Timeout        time.Duration

	Retry               resilience.RetryConfig
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

// DefaultOptions returns options for a local endpoint with the service defaults.
func DefaultOptions() Options {
	return Options{
		BaseURL:             "http://localhost:8000",
		SpeakPath:           "/speak",
		Model:               DefaultModel,
		Language:            "en",
		Encoding:            "linear16",
		Container:           "wav",
		SampleRate:          DefaultSampleRate,
		NumChannels:         NumChannels,
		FrameDuration:       20 * time.Millisecond,
		ReadChunkSize:       DefaultReadChunkSize,
		QueueSize:           64,
		MaxChunkLength:      textchunk.DefaultMaxChunkLength,
		Concurrency:         1,
		Timeout:             30 * time.Second,
		Retry:               *resilience.DefaultRetryConfig(),
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 30 * time.Second,
	}
}

// OptionsFromConfig maps the service configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.BaseURL = cfg.KippsAPIURL
	opts.SpeakPath = cfg.KippsSpeakPath
	opts.Model = cfg.KippsModel
	opts.Language = cfg.KippsLanguage
	opts.Encoding = cfg.KippsEncoding
	opts.Container = cfg.KippsContainer
	opts.SampleRate = cfg.SampleRate
	opts.FrameSamples = cfg.FrameSamples
	opts.FrameDuration = cfg.FrameDuration()
	opts.ReadChunkSize = cfg.ReadChunkSize
	opts.QueueSize = cfg.QueueSize
	opts.MaxChunkLength = cfg.MaxChunkLength
	opts.Concurrency = cfg.Concurrency
	opts.Timeout = cfg.RequestTimeout
	opts.Retry = resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
	opts.BreakerMaxFailures = cfg.CircuitBreakerMaxFailures
	opts.BreakerResetTimeout = time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second
	return opts
}

// SamplesPerFrame returns the number of samples per channel in each emitted frame.
func (o Options) SamplesPerFrame() int {
	if o.FrameSamples > 0 {
		return o.FrameSamples
	}
	return int(int64(o.SampleRate) * int64(o.FrameDuration) / int64(time.Second))
}

// Validate rejects options that would make the accumulator or chunker unusable.
func (o Options) Validate() error {
	u, err := url.Parse(o.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return config.Invalid("base_url", o.BaseURL, "must be an absolute URL")
	}
	if o.SampleRate <= 0 {
		return config.Invalid("sample_rate", o.SampleRate, "must be positive")
	}
	if o.NumChannels <= 0 {
		return config.Invalid("num_channels", o.NumChannels, "must be positive")
	}
	if o.FrameSamples < 0 {
		return config.Invalid("frame_samples", o.FrameSamples, "must not be negative")
	}
	if o.SamplesPerFrame() <= 0 {
		return config.Invalid("frame_duration", o.FrameDuration, "must cover at least one sample")
	}
	if o.ReadChunkSize <= 0 {
		return config.Invalid("read_chunk_size", o.ReadChunkSize, "must be positive")
	}
	if o.QueueSize <= 0 {
		return config.Invalid("queue_size", o.QueueSize, "must be positive")
	}
	if o.MaxChunkLength <= 0 {
		return config.Invalid("max_chunk_length", o.MaxChunkLength, "must be positive")
	}
	if o.Concurrency <= 0 {
		return config.Invalid("concurrency", o.Concurrency, "must be positive")
	}
	return nil
}
