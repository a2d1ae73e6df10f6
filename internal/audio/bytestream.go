package audio

import (
	"time"

	"github.com/kippsai/tts-gateway/internal/config"
)

// ByteStream re-frames an arbitrarily chunked PCM byte stream into fixed-size frames.
//
// Network reads rarely line up with sample or frame boundaries, so ByteStream keeps
// the incomplete tail between writes. It is owned by a single synthesis request and is
// not safe for concurrent use.
//
// Flush must be called exactly once after the last Write, otherwise up to
// FrameBytes()-1 bytes of audio are lost. A cancelled stream should call Discard instead.
type ByteStream struct {
	sampleRate        int
	numChannels       int
	samplesPerChannel int
	frameBytes        int

	buf []byte
}

// NewByteStream creates a ByteStream that emits frames of samplesPerChannel samples.
func NewByteStream(sampleRate, numChannels, samplesPerChannel int) (*ByteStream, error) {
	if sampleRate <= 0 {
		return nil, config.Invalid("sample_rate", sampleRate, "must be positive")
	}
	if numChannels <= 0 {
		return nil, config.Invalid("num_channels", numChannels, "must be positive")
	}
	if samplesPerChannel <= 0 {
		return nil, config.Invalid("samples_per_channel", samplesPerChannel, "must be positive")
	}

	frameBytes := samplesPerChannel * numChannels * BytesPerSample
	return &ByteStream{
		sampleRate:        sampleRate,
		numChannels:       numChannels,
		samplesPerChannel: samplesPerChannel,
		frameBytes:        frameBytes,
		buf:               make([]byte, 0, frameBytes),
	}, nil
}

// NewByteStreamForDuration creates a ByteStream whose frames each cover d of audio.
func NewByteStreamForDuration(sampleRate, numChannels int, d time.Duration) (*ByteStream, error) {
	if sampleRate <= 0 {
		return nil, config.Invalid("sample_rate", sampleRate, "must be positive")
	}
	samples := int(int64(sampleRate) * int64(d) / int64(time.Second))
	if samples <= 0 {
		return nil, config.Invalid("frame_duration", d, "must cover at least one sample")
	}
	return NewByteStream(sampleRate, numChannels, samples)
}

// Write appends p and returns every complete frame now available, oldest first.
// p is copied and may be reused by the caller.
func (s *ByteStream) Write(p []byte) []*Frame {
	s.buf = append(s.buf, p...)

	var frames []*Frame
	for len(s.buf) >= s.frameBytes {
		data := make([]byte, s.frameBytes)
		copy(data, s.buf[:s.frameBytes])
		frames = append(frames, &Frame{
			Data:              data,
			SampleRate:        s.sampleRate,
			NumChannels:       s.numChannels,
			SamplesPerChannel: s.samplesPerChannel,
		})
		s.buf = s.buf[s.frameBytes:]
	}

	// Compact so the leftover does not pin the previous backing array.
	if len(frames) > 0 {
		rest := make([]byte, len(s.buf), s.frameBytes)
		copy(rest, s.buf)
		s.buf = rest
	}

	return frames
}

// Flush emits the buffered tail as one final, possibly short, frame and resets the stream.
func (s *ByteStream) Flush() []*Frame {
	if len(s.buf) == 0 {
		return nil
	}

	data := make([]byte, len(s.buf))
	copy(data, s.buf)
	s.buf = s.buf[:0]

	return []*Frame{{
		Data:              data,
		SampleRate:        s.sampleRate,
		NumChannels:       s.numChannels,
		SamplesPerChannel: len(data) / (s.numChannels * BytesPerSample),
	}}
}

// Discard drops the buffered tail without emitting it.
func (s *ByteStream) Discard() {
	s.buf = s.buf[:0]
}

// Buffered returns the number of bytes waiting for a complete frame.
func (s *ByteStream) Buffered() int {
	return len(s.buf)
}

// FrameBytes returns the size in bytes of every frame returned by Write.
func (s *ByteStream) FrameBytes() int {
	return s.frameBytes
}
