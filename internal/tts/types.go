package tts

import (
	"context"

	"github.com/kippsai/tts-gateway/internal/audio"
)

// SynthesizedAudio is one frame of a synthesis response, tagged with where it came from.
// SegmentIndex orders the text chunks of a chunked request.
type SynthesizedAudio struct {
	RequestID    string
	SegmentID    string
	SegmentIndex int
	Frame        *audio.Frame
}

// Capabilities describes what the remote synthesizer produces.
type Capabilities struct {
	Streaming   bool
	SampleRate  int
	NumChannels int
	Languages   []string
}

// Synthesizer defines the interface for a Text-to-Speech client
type Synthesizer interface {
	// Synthesize sends text in a single request and streams the resulting frames
	Synthesize(ctx context.Context, text string) (*Stream, error)

	// Capabilities reports the audio format of produced frames
	Capabilities() Capabilities

	// Close releases idle connections
	Close() error
}
