package audio

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// Recorder is an offline Sink. Its clock only moves when Render is called,
// and everything rendered is kept as a stereo tape.
type Recorder struct {
	mu     sync.Mutex
	rate   int
	mixer  *mixer
	frames int64
	tape   []float32
	voices []Voice
	closed bool
}

// NewRecorder returns a recorder at the given rate (DefaultSampleRate if 0).
func NewRecorder(sampleRate int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Recorder{rate: sampleRate, mixer: newMixer(sampleRate)}
}

// SampleRate returns the render rate.
func (r *Recorder) SampleRate() int { return r.rate }

// Now returns the end of the rendered tape.
func (r *Recorder) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.frames) * time.Second / time.Duration(r.rate)
}

// Play records v and schedules it for rendering.
func (r *Recorder) Play(v Voice) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.voices = append(r.voices, v)
	r.mu.Unlock()
	r.mixer.add(v)
}

// Render appends d worth of mixed audio to the tape.
func (r *Recorder) Render(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frames := int64(math.Round(d.Seconds() * float64(r.rate)))
	if frames <= 0 {
		return
	}
	chunk := make([]float32, frames*2)
	r.mixer.mix(chunk, r.frames)
	r.tape = append(r.tape, chunk...)
	r.frames += frames
}

// Voices returns every voice played so far, in play order.
func (r *Recorder) Voices() []Voice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Voice(nil), r.voices...)
}

// Pending returns the number of voices not yet fully rendered.
func (r *Recorder) Pending() int {
	return r.mixer.active()
}

// Tape returns a copy of the rendered audio.
func (r *Recorder) Tape() *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Buffer{SampleRate: r.rate, Channels: 2, Data: append([]float32(nil), r.tape...)}
}

// WriteWAV writes the rendered tape as 16-bit stereo WAV.
func (r *Recorder) WriteWAV(w io.WriteSeeker) error {
	if err := EncodeWAV(w, r.Tape()); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

// Close stops accepting voices.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
