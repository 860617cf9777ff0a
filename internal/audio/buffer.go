package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for input that is not a PCM WAV file.
var ErrInvalidWAV = errors.New("invalid WAV file")

// Buffer is decoded PCM audio: interleaved frames scaled to [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   int
	Data       []float32
}

// Frames returns the number of frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the playing time of the buffer at its own rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// frame returns the left and right values of frame i; mono is duplicated.
func (b *Buffer) frame(i int) (float32, float32) {
	if b.Channels == 1 {
		v := b.Data[i]
		return v, v
	}
	j := i * b.Channels
	return b.Data[j], b.Data[j+1]
}

// Info describes a WAV file without decoding its samples.
type Info struct {
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bitDepth"`
	Duration   time.Duration `json:"duration"`
}

// ProbeWAV reads the header of a WAV file.
func ProbeWAV(r io.ReadSeeker) (Info, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Info{}, ErrInvalidWAV
	}
	dur, err := d.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("probe wav: %w", err)
	}
	return Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   dur,
	}, nil
}

// DecodeWAV decodes a whole PCM WAV file.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	depth := int(d.SampleBitDepth())
	if depth == 0 {
		return nil, fmt.Errorf("decode wav: %w: unknown bit depth", ErrInvalidWAV)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("decode wav: %w: no channels", ErrInvalidWAV)
	}
	scale := math.Pow(2, float64(depth-1))
	out := &Buffer{
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
		Data:       make([]float32, len(pcm.Data)),
	}
	for i, v := range pcm.Data {
		out.Data[i] = float32(float64(v) / scale)
	}
	return out, nil
}

// EncodeWAV writes b as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, b *Buffer) error {
	enc := wav.NewEncoder(w, b.SampleRate, 16, b.Channels, 1)
	pcm := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: b.Channels,
			SampleRate:  b.SampleRate,
		},
		Data:           make([]int, len(b.Data)),
		SourceBitDepth: 16,
	}
	for i, v := range b.Data {
		pcm.Data[i] = int(toInt16(v))
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

func toInt16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * math.MaxInt16)
}
