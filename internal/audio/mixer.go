package audio

import (
	"math"
	"sync"
	"time"
)

// Voice is one triggered sample.
type Voice struct {
	Buffer *Buffer
	// At is the sink clock time at which the first frame sounds.
	At time.Duration
	// Gain is linear; 1 is unity.
	Gain float64
	// Pan runs from -1 (left) to 1 (right).
	Pan float64
	// Rate is the playback speed; 0 means 1. Rates above 1 raise pitch.
	Rate float64
}

// PanGains returns equal-power left and right gains for pan in [-1, 1].
func PanGains(pan float64) (left, right float64) {
	pan = max(-1, min(1, pan))
	theta := (pan + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}

type playing struct {
	v      Voice
	start  int64   // output frame of the first sample
	step   float64 // source frames per output frame
	gl, gr float32
}

// mixer sums scheduled voices into interleaved stereo frames at a fixed
// output rate.
type mixer struct {
	mu     sync.Mutex
	rate   int
	voices []*playing
}

func newMixer(rate int) *mixer {
	return &mixer{rate: rate}
}

// add schedules v. Voices without samples are ignored.
func (m *mixer) add(v Voice) {
	if v.Buffer.Frames() == 0 || v.Buffer.SampleRate <= 0 {
		return
	}
	rate := v.Rate
	if rate <= 0 {
		rate = 1
	}
	l, r := PanGains(v.Pan)
	p := &playing{
		v:     v,
		start: int64(math.Round(v.At.Seconds() * float64(m.rate))),
		step:  rate * float64(v.Buffer.SampleRate) / float64(m.rate),
		gl:    float32(v.Gain * l),
		gr:    float32(v.Gain * r),
	}
	m.mu.Lock()
	m.voices = append(m.voices, p)
	m.mu.Unlock()
}

// mix adds len(out)/2 frames starting at output frame `from` into out and
// drops voices that have finished.
func (m *mixer) mix(out []float32, from int64) {
	frames := int64(len(out) / 2)
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.voices[:0]
	for _, p := range m.voices {
		n := p.v.Buffer.Frames()
		done := false
		for i := int64(0); i < frames; i++ {
			abs := from + i
			if abs < p.start {
				continue
			}
			pos := float64(abs-p.start) * p.step
			j := int(pos)
			if j >= n {
				done = true
				break
			}
			l, r := p.v.Buffer.frame(j)
			if frac := float32(pos - float64(j)); frac > 0 && j+1 < n {
				l2, r2 := p.v.Buffer.frame(j + 1)
				l += (l2 - l) * frac
				r += (r2 - r) * frac
			}
			out[2*i] += l * p.gl
			out[2*i+1] += r * p.gr
		}
		if !done {
			live = append(live, p)
		}
	}
	clear(m.voices[len(live):])
	m.voices = live
}

// active returns the number of voices still scheduled or sounding.
func (m *mixer) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}
