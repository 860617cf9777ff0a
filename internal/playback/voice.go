package playback

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/roach88/beatlab/internal/music"
)

// VoiceDecay is how long a trigger stays in the active-voice set.
const VoiceDecay = 120 * time.Millisecond

// VelocityGain maps MIDI velocity to linear gain: (v/127)^2, clamped to
// 1..127. It is strictly increasing over that range.
func VelocityGain(velocity int) float64 {
	v := float64(music.ClampInt(velocity, music.MinVelocity, music.MaxVelocity))
	return math.Pow(v/music.MaxVelocity, 2)
}

// Trigger describes one hit.
type Trigger struct {
	Velocity int
	// At is the sink time of the hit; zero means now.
	At time.Duration
	// Offset is added to At.
	Offset time.Duration
	// Pan overrides the channel pan when set.
	Pan *float64
}

// Channel is the channel strip a trigger plays through.
type Channel struct {
	Gain float64
	Pan  float64
}

// Unity is a centred channel at full gain.
var Unity = Channel{Gain: 1}

// ChannelFor returns the channel strip of a track mixer.
func ChannelFor(m music.Mixer) Channel {
	return Channel{Gain: m.Volume, Pan: m.Pan}
}

// activeSet tracks recent triggers by key until they decay.
type activeSet struct {
	mu    sync.Mutex
	until map[string]time.Duration
}

func newActiveSet() *activeSet {
	return &activeSet{until: make(map[string]time.Duration)}
}

func (s *activeSet) mark(key string, at time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := at + VoiceDecay
	if end > s.until[key] {
		s.until[key] = end
	}
}

// keys returns the keys still active at now, sorted, and forgets the rest.
func (s *activeSet) keys(now time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.until))
	for k, end := range s.until {
		if now >= end {
			delete(s.until, k)
			continue
		}
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (s *activeSet) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.until)
}
