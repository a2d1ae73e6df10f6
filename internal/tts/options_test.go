package tts

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kippsai/tts-gateway/internal/config"
)

func TestOptions_SamplesPerFrame(t *testing.T) {
	opts := DefaultOptions()
	if got := opts.SamplesPerFrame(); got != 480 {
		t.Errorf("Expected 480 samples for 20ms at 24kHz, got %d", got)
	}

	opts.FrameSamples = 160
	if got := opts.SamplesPerFrame(); got != 160 {
		t.Errorf("Expected explicit frame size to win, got %d", got)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"relative base url", func(o *Options) { o.BaseURL = "/speak" }},
		{"zero sample rate", func(o *Options) { o.SampleRate = 0 }},
		{"zero channels", func(o *Options) { o.NumChannels = 0 }},
		{"negative frame samples", func(o *Options) { o.FrameSamples = -1 }},
		{"frame shorter than a sample", func(o *Options) { o.FrameDuration = time.Microsecond }},
		{"zero read size", func(o *Options) { o.ReadChunkSize = 0 }},
		{"zero queue", func(o *Options) { o.QueueSize = 0 }},
		{"zero chunk length", func(o *Options) { o.MaxChunkLength = 0 }},
		{"zero concurrency", func(o *Options) { o.Concurrency = 0 }},
	}

	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("Default options should be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			if err := opts.Validate(); !errors.Is(err, config.ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		KippsAPIURL:                "http://tts.internal:9000",
		KippsSpeakPath:             "/v2/speak",
		KippsLanguage:              "hi",
		SampleRate:                 16000,
		FrameDurationMs:            10,
		ReadChunkSize:              2048,
		QueueSize:                  8,
		MaxChunkLength:             120,
		Concurrency:                3,
		RequestTimeout:             time.Minute,
		CircuitBreakerMaxFailures:  2,
		CircuitBreakerResetTimeout: 15,
		RetryMaxAttempts:           4,
		RetryInitialBackoff:        50,
	}

	opts := OptionsFromConfig(cfg)
	if err := opts.Validate(); err != nil {
		t.Fatalf("Expected valid options, got %v", err)
	}
	if opts.BaseURL != cfg.KippsAPIURL || opts.SpeakPath != "/v2/speak" {
		t.Errorf("Unexpected endpoint %s%s", opts.BaseURL, opts.SpeakPath)
	}
	if opts.SamplesPerFrame() != 160 {
		t.Errorf("Expected 160 samples per frame, got %d", opts.SamplesPerFrame())
	}
	if opts.Retry.MaxAttempts != 4 || opts.Retry.InitialBackoff != 50*time.Millisecond {
		t.Errorf("Unexpected retry config %+v", opts.Retry)
	}
	if opts.BreakerResetTimeout != 15*time.Second {
		t.Errorf("Expected 15s reset timeout, got %v", opts.BreakerResetTimeout)
	}
}

func TestTransmissionError(t *testing.T) {
	err := &TransmissionError{StatusCode: http.StatusNotFound, Body: "no such voice"}
	if err.Error() != "API error: 404 - no such voice" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if err.Retryable() {
		t.Error("404 should not be retryable")
	}

	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		if !(&TransmissionError{StatusCode: code}).Retryable() {
			t.Errorf("%d should be retryable", code)
		}
	}

	wrapped := errors.Join(errors.New("segment 2"), err)
	if !IsTransmissionError(wrapped) {
		t.Error("Expected wrapped TransmissionError to be detected")
	}
}
