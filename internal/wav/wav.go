// Package wav writes and inspects canonical 44-byte-header PCM WAVE files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kippsai/tts-gateway/internal/audio"
)

// WAV format constants.
const (
	// HeaderSize is the size of a standard WAV file header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// ErrInvalidHeader is returned by DecodeHeader for anything that is not a PCM WAVE header.
var ErrInvalidHeader = errors.New("wav: invalid header")

// Header describes the fmt and data chunks of a WAVE file.
type Header struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

func newHeader(sampleRate, channels, bitsPerSample int, dataSize uint32) Header {
	blockAlign := channels * bitsPerSample / 8
	return Header{
		AudioFormat:   FormatPCM,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: uint16(bitsPerSample),
		DataSize:      dataSize,
	}
}

// Bytes renders the 44-byte header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	le := binary.LittleEndian

	// RIFF header
	copy(b[0:4], "RIFF")
	le.PutUint32(b[4:8], 36+h.DataSize)
	copy(b[8:12], "WAVE")

	// fmt subchunk
	copy(b[12:16], "fmt ")
	le.PutUint32(b[16:20], 16)
	le.PutUint16(b[20:22], h.AudioFormat)
	le.PutUint16(b[22:24], h.NumChannels)
	le.PutUint32(b[24:28], h.SampleRate)
	le.PutUint32(b[28:32], h.ByteRate)
	le.PutUint16(b[32:34], h.BlockAlign)
	le.PutUint16(b[34:36], h.BitsPerSample)

	// data subchunk
	copy(b[36:40], "data")
	le.PutUint32(b[40:44], h.DataSize)

	return b
}

// Encode wraps raw PCM in a WAVE header.
func Encode(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	out := newHeader(sampleRate, channels, bitsPerSample, uint32(len(pcm))).Bytes()
	return append(out, pcm...)
}

// DecodeHeader reads and validates a canonical 44-byte PCM header.
func DecodeHeader(r io.Reader) (Header, error) {
	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: missing RIFF/WAVE tags", ErrInvalidHeader)
	}
	if string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: unexpected chunk layout", ErrInvalidHeader)
	}

	le := binary.LittleEndian
	h := Header{
		AudioFormat:   le.Uint16(b[20:22]),
		NumChannels:   le.Uint16(b[22:24]),
		SampleRate:    le.Uint32(b[24:28]),
		ByteRate:      le.Uint32(b[28:32]),
		BlockAlign:    le.Uint16(b[32:34]),
		BitsPerSample: le.Uint16(b[34:36]),
		DataSize:      le.Uint32(b[40:44]),
	}
	if h.AudioFormat != FormatPCM {
		return Header{}, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidHeader, h.AudioFormat)
	}
	if le.Uint32(b[4:8]) != 36+h.DataSize {
		return Header{}, fmt.Errorf("%w: RIFF size does not match data size", ErrInvalidHeader)
	}
	return h, nil
}

// Writer streams PCM into a WAVE file whose length is not known up front.
// The header is written with zero sizes and patched on Close.
type Writer struct {
	w             io.WriteSeeker
	sampleRate    int
	channels      int
	bitsPerSample int
	dataSize      uint32
	closed        bool
}

// NewWriter writes a placeholder header to w.
func NewWriter(w io.WriteSeeker, sampleRate, channels, bitsPerSample int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 || bitsPerSample <= 0 || bitsPerSample%8 != 0 {
		return nil, fmt.Errorf("wav: unsupported format %d Hz, %d channels, %d bits", sampleRate, channels, bitsPerSample)
	}

	ww := &Writer{w: w, sampleRate: sampleRate, channels: channels, bitsPerSample: bitsPerSample}
	if _, err := w.Write(newHeader(sampleRate, channels, bitsPerSample, 0).Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return ww, nil
}

// Write appends raw PCM.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("wav: write after close")
	}
	n, err := w.w.Write(p)
	w.dataSize += uint32(n)
	return n, err
}

// WriteFrame appends a frame, rejecting frames in a different format.
func (w *Writer) WriteFrame(f *audio.Frame) error {
	if f.SampleRate != w.sampleRate || f.NumChannels != w.channels {
		return fmt.Errorf("wav: frame is %d Hz x %d, writer is %d Hz x %d", f.SampleRate, f.NumChannels, w.sampleRate, w.channels)
	}
	_, err := w.Write(f.Data)
	return err
}

// DataSize returns the number of PCM bytes written so far.
func (w *Writer) DataSize() int {
	return int(w.dataSize)
}

// Close rewrites the header with the final sizes. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to WAV header: %w", err)
	}
	if _, err := w.w.Write(newHeader(w.sampleRate, w.channels, w.bitsPerSample, w.dataSize).Bytes()); err != nil {
		return fmt.Errorf("failed to patch WAV header: %w", err)
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of WAV data: %w", err)
	}
	return nil
}
