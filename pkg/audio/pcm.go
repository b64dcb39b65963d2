// Package audio provides the PCM sample codec shared by the capture and
// playback pipelines.
//
// All audio flowing through pesu is mono 16-bit little-endian PCM on the wire
// and float32 in memory. Microphone input runs at 16 kHz; model output runs at
// 24 kHz. The codec converts between the two representations and handles the
// base64 framing used by the transport.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// Standard sample rates for the voice pipeline. The remote model consumes
// 16 kHz input and produces 24 kHz output; both streams are mono.
const (
	CaptureRate  = 16000
	PlaybackRate = 24000
)

// ErrOddPCMLength reports s16le input whose byte count is not a multiple of
// the 2-byte sample size. Decoders return it wrapped; callers drop the frame
// and continue.
var ErrOddPCMLength = errors.New("audio: odd byte count in s16le data")

// Buffer is a decoded block of mono audio samples.
type Buffer struct {
	// Samples holds normalised amplitudes in [-1, 1].
	Samples []float32

	// SampleRate in Hz (e.g. 24000 for model output).
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// EncodePCM16 converts normalised float32 samples to mono 16-bit little-endian
// PCM. Samples outside [-1, 1] are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts mono 16-bit little-endian PCM bytes to normalised
// float32 samples. Returns a wrapped [ErrOddPCMLength] when the byte count is
// not sample-aligned; the caller should drop the frame and continue.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("audio: decode %d bytes: %w", len(data), ErrOddPCMLength)
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out, nil
}

// EncodeBase64 encodes raw PCM bytes for JSON transport.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeBase64 decodes a base64 payload back to raw PCM bytes.
func DecodeBase64(data string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w", err)
	}
	return out, nil
}
