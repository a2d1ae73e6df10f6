package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// BytesPerSample is the width of one 16-bit linear PCM sample.
const BytesPerSample = 2

// Frame is a block of 16-bit little-endian PCM.
// len(Data) == SamplesPerChannel * NumChannels * BytesPerSample, except for a short
// trailing frame produced by ByteStream.Flush when the stream ended mid-sample.
type Frame struct {
	Data              []byte
	SampleRate        int
	NumChannels       int
	SamplesPerChannel int
}

// NewFrame wraps data in a Frame. The data length must hold whole samples for every channel.
func NewFrame(data []byte, sampleRate, numChannels int) (*Frame, error) {
	if sampleRate <= 0 || numChannels <= 0 {
		return nil, fmt.Errorf("audio frame: sample rate %d and channel count %d must be positive", sampleRate, numChannels)
	}
	stride := numChannels * BytesPerSample
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("audio frame: data length %d is not a multiple of %d", len(data), stride)
	}
	return &Frame{
		Data:              data,
		SampleRate:        sampleRate,
		NumChannels:       numChannels,
		SamplesPerChannel: len(data) / stride,
	}, nil
}

// Duration returns the playback time covered by the frame.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.SamplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}

// Samples decodes the frame into interleaved int16 samples. A dangling odd byte is ignored.
func (f *Frame) Samples() []int16 {
	samples := make([]int16, len(f.Data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(f.Data[i*2:]))
	}
	return samples
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	c := *f
	c.Data = data
	return &c
}
