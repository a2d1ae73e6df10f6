package audio

import (
	"encoding/binary"
	"fmt"
)

// PCMURate is the sample rate telephony consumers expect for G.711 μ-law.
const PCMURate = 8000

// EncodePCMU converts 16-bit little-endian PCM to G.711 PCMU (μ-law), one byte per sample.
func EncodePCMU(pcm []byte) ([]byte, error) {
	if len(pcm)%BytesPerSample != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples), got %d", len(pcm))
	}

	out := make([]byte, len(pcm)/BytesPerSample)
	for i := range out {
		out[i] = linearToMulaw(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return out, nil
}

// DecodePCMU converts G.711 PCMU back to 16-bit little-endian PCM.
func DecodePCMU(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*BytesPerSample)
	for i, b := range ulaw {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(mulawToLinear(b)))
	}
	return out
}

// PCMUEncoder resamples a mono frame sequence to outputRate by linear interpolation
// and encodes it as μ-law. Its position carries across frames, so the output length
// tracks the total input length rather than each frame's.
type PCMUEncoder struct {
	inputRate  int
	outputRate int
	consumed   int64
	emitted    int64
	last       int16
}

// NewPCMUEncoder returns an encoder for frames sampled at inputRate.
func NewPCMUEncoder(inputRate, outputRate int) (*PCMUEncoder, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got %d and %d", inputRate, outputRate)
	}
	return &PCMUEncoder{inputRate: inputRate, outputRate: outputRate}, nil
}

// Encode returns the μ-law bytes for every output sample the frame completes.
// It may return an empty slice when the frame is shorter than one output period.
func (e *PCMUEncoder) Encode(f *Frame) ([]byte, error) {
	if f.NumChannels != 1 {
		return nil, fmt.Errorf("PCMU encoding needs mono audio, got %d channels", f.NumChannels)
	}
	if f.SampleRate != e.inputRate {
		return nil, fmt.Errorf("frame sample rate %d does not match encoder rate %d", f.SampleRate, e.inputRate)
	}

	samples := f.Samples()
	if len(samples) == 0 {
		return nil, nil
	}
	end := e.consumed + int64(len(samples)) - 1
	at := func(i int64) int64 {
		if i < e.consumed {
			return int64(e.last)
		}
		return int64(samples[i-e.consumed])
	}

	in, outRate := int64(e.inputRate), int64(e.outputRate)
	out := make([]byte, 0, len(samples)*e.outputRate/e.inputRate+1)
	for {
		pos := e.emitted * in
		idx, rem := pos/outRate, pos%outRate

		var v int64
		if rem == 0 {
			if idx > end {
				break
			}
			v = at(idx)
		} else {
			if idx+1 > end {
				break
			}
			a, b := at(idx), at(idx+1)
			v = a + (b-a)*rem/outRate
		}
		out = append(out, linearToMulaw(int16(v)))
		e.emitted++
	}

	e.last = samples[len(samples)-1]
	e.consumed = end + 1
	return out, nil
}

// linearToMulaw converts a 16-bit linear PCM sample to 8-bit μ-law (ITU-T G.711).
func linearToMulaw(sample int16) byte {
	const (
		bias = 0x21
		clip = 0x1FFF - bias
	)

	var sign byte
	magnitude := int32(sample)
	if sample < 0 {
		sign = 0x80
		magnitude = -magnitude
	}

	// G.711 operates on 14-bit magnitudes.
	magnitude >>= 2
	if magnitude > clip {
		magnitude = clip
	}
	magnitude += bias

	var segment byte
	for seg := byte(7); seg > 0; seg-- {
		if magnitude >= int32(0x20)<<seg {
			segment = seg
			break
		}
	}

	mantissa := byte((magnitude >> (segment + 1)) & 0x0F)
	return ^(sign | (segment << 4) | mantissa)
}

// mulawToLinear converts an 8-bit μ-law sample to 16-bit linear PCM.
func mulawToLinear(mulawByte byte) int16 {
	mulawByte = ^mulawByte

	sign := mulawByte & 0x80
	segment := int32((mulawByte >> 4) & 0x07)
	mantissa := int32(mulawByte & 0x0F)

	magnitude := ((mantissa << (segment + 1)) + (int32(33) << segment)) - 33
	magnitude <<= 2

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
