// Command say synthesizes a sentence through the Kipps endpoint and saves it as a WAVE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kippsai/tts-gateway/internal/config"
	"github.com/kippsai/tts-gateway/internal/observability"
	"github.com/kippsai/tts-gateway/internal/tts"
	"github.com/kippsai/tts-gateway/internal/wav"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	text := flag.String("text", "Hello, this is a test of the TTS system.", "Text to synthesize")
	out := flag.String("out", "output.wav", "Output WAVE file")
	chunked := flag.Bool("chunked", false, "Split text at sentence boundaries and send one request per chunk")
	url := flag.String("url", "", "Kipps base URL (overrides KIPPS_API_URL)")
	flag.Parse()

	if *url != "" {
		if err := os.Setenv("KIPPS_API_URL", *url); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to set KIPPS_API_URL: %v\n", err)
			return 1
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	observability.InitLogger(cfg.LogLevel, true)
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := run(ctx, cfg, *text, *out, *chunked)
	if err != nil {
		logger.Error().Err(err).Msg("Synthesis failed")
		return 1
	}
	logger.Info().Str("out", *out).Int("bytes", n).Msg("Audio saved")
	return 0
}

// run writes the synthesized audio to path and returns the number of PCM bytes written.
func run(ctx context.Context, cfg *config.Config, text, path string, chunked bool) (int, error) {
	client, err := tts.NewClient(tts.OptionsFromConfig(cfg))
	if err != nil {
		return 0, err
	}
	defer client.Close()

	var stream *tts.Stream
	if chunked {
		stream, err = client.SynthesizeChunked(ctx, text)
	} else {
		stream, err = client.Synthesize(ctx, text)
	}
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	caps := client.Capabilities()
	w, err := wav.NewWriter(f, caps.SampleRate, caps.NumChannels, 16)
	if err != nil {
		return 0, err
	}

	for a := range stream.Frames() {
		if err := w.WriteFrame(a.Frame); err != nil {
			return 0, err
		}
	}
	if err := stream.Err(); err != nil {
		return 0, err
	}

	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.DataSize(), f.Close()
}
