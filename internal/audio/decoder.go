// Package audio decodes WAV payloads into the mono float32 form the
// recognition backend consumes.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

// ErrInvalidWAV reports WAV payloads that cannot be decoded.
var ErrInvalidWAV = errors.New("invalid wav data")

// Format codes from the RIFF fmt chunk.
const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

// Buffer holds decoded mono samples plus source stream metadata.
// SampleRate and Channels describe the input; Samples is always mono.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Decode parses a RIFF/WAVE payload into normalized mono float32 samples.
// 16-bit PCM is rescaled by 1/32768; 32-bit float passes through unchanged.
// Multi-channel audio is downmixed by averaging each interleaved frame.
// The source sample rate is carried as metadata; no resampling happens here.
func Decode(data []byte) (Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	channels := int(dec.NumChans)
	if channels == 0 {
		return Buffer{}, fmt.Errorf("%w: zero channels", ErrInvalidWAV)
	}

	if err := dec.FwdToPCM(); err != nil {
		return Buffer{}, fmt.Errorf("%w: locate data chunk: %v", ErrInvalidWAV, err)
	}

	raw, err := readPCMData(dec, len(data))
	if err != nil {
		return Buffer{}, err
	}

	samples, err := convertSamples(raw, int(dec.WavAudioFormat), int(dec.BitDepth))
	if err != nil {
		return Buffer{}, err
	}

	return Buffer{
		Samples:    downmix(samples, channels),
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
	}, nil
}

// readPCMData reads the data chunk bytes, tolerating a truncated tail.
// The declared chunk size is clamped to the payload size so a lying
// header cannot force a huge allocation.
func readPCMData(dec *wav.Decoder, payloadSize int) ([]byte, error) {
	size := dec.PCMSize
	if size < 0 || size > payloadSize {
		size = payloadSize
	}

	raw := make([]byte, size)
	n, err := io.ReadFull(dec.PCMChunk, raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read data chunk: %v", ErrInvalidWAV, err)
	}
	return raw[:n], nil
}

// convertSamples turns raw little-endian frames into float32 values.
// A trailing partial sample is dropped.
func convertSamples(raw []byte, format, bitDepth int) ([]float32, error) {
	switch {
	case format == formatIEEEFloat && bitDepth == 32:
		out := make([]float32, len(raw)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case format == formatPCM && bitDepth == 16:
		out := make([]float32, len(raw)/2)
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding (format %d, %d-bit)", ErrInvalidWAV, format, bitDepth)
	}
}

// downmix averages interleaved frames into one mono channel.
func downmix(samples []float32, channels int) []float32 {
	if channels == 1 {
		return samples
	}

	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
