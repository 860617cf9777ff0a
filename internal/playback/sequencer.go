package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/transport"
)

// PatternAt returns the arrangement pattern playing at tick. The chain
// advances once per pass over the project's bars.
func PatternAt(p music.Project, tick int64) music.PatternID {
	chain := p.Arrangement.Chain
	if len(chain) == 0 {
		return music.PatternA
	}
	span := int64(p.StepCount()) * music.TicksPerStep
	if span <= 0 {
		return chain[0]
	}
	return chain[int((tick/span)%int64(len(chain)))]
}

// Sequencer plays a project on a transport. It schedules a single event
// repeating every sixteenth and reads the current project on each step, so
// edits take effect on the next step without rescheduling.
//
// Thread-safety: all methods are safe for concurrent use.
type Sequencer struct {
	tr      *transport.Transport
	drums   *DrumMachine
	keys    *Instrument
	sink    audio.Sink
	logger  *slog.Logger
	mu      sync.Mutex
	project music.Project
	clips   map[string]*audio.Buffer
	event   transport.EventID
	bound   bool
	onStep  func(step int, at time.Duration)
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithStepListener calls fn for every step the sequencer plays, with the
// step index within the pattern and its sink time.
func WithStepListener(fn func(step int, at time.Duration)) SequencerOption {
	return func(s *Sequencer) {
		s.onStep = fn
	}
}

// WithClips supplies decoded audio for audio tracks, keyed by asset id.
func WithClips(clips map[string]*audio.Buffer) SequencerOption {
	return func(s *Sequencer) {
		s.clips = clips
	}
}

// NewSequencer returns an unbound sequencer.
func NewSequencer(tr *transport.Transport, sink audio.Sink, drums *DrumMachine, keys *Instrument, logger *slog.Logger, opts ...SequencerOption) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequencer{
		tr:     tr,
		drums:  drums,
		keys:   keys,
		sink:   sink,
		logger: logger,
		clips:  map[string]*audio.Buffer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetProject replaces the project being played.
func (s *Sequencer) SetProject(p music.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p.Clone()
}

// Bind schedules the step event on the transport. Binding twice is a no-op.
func (s *Sequencer) Bind() {
	s.BindFor(0)
}

// BindFor schedules steps for the first duration ticks only (0 = forever).
func (s *Sequencer) BindFor(duration int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return
	}
	s.event = s.tr.ScheduleRepeat(music.TicksPerStep, 0, duration, s.step)
	s.bound = true
}

// Unbind removes the step event.
func (s *Sequencer) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bound {
		return
	}
	s.tr.Clear(s.event)
	s.bound = false
}

func (s *Sequencer) step(at time.Duration, tick int64) {
	s.mu.Lock()
	p := s.project
	onStep := s.onStep
	s.mu.Unlock()

	steps := p.StepCount()
	if steps <= 0 {
		return
	}
	step := int((tick / music.TicksPerStep) % int64(steps))
	pid := PatternAt(p, tick)
	audible := music.Audible(p.Tracks)

	for i, t := range p.Tracks {
		if !audible[i] {
			continue
		}
		ch := ChannelFor(t.Mixer)
		switch {
		case t.Drum != nil:
			s.playDrums(t.Drum, pid, step, at, ch)
		case t.Keys != nil:
			for _, n := range t.Keys.Notes {
				if n.Step == step {
					s.keys.Trigger(uint8(n.Pitch), Trigger{Velocity: n.Velocity, At: at}, ch)
				}
			}
		case t.Audio != nil:
			if t.Audio.StartStep != step {
				continue
			}
			clip, ok := s.clips[t.Audio.AssetID]
			if !ok {
				s.logger.Warn("no audio loaded for clip", "track", t.ID, "asset", t.Audio.AssetID)
				continue
			}
			s.sink.Play(audio.Voice{
				Buffer: clip,
				At:     at,
				Gain:   t.Audio.Gain * ch.Gain,
				Pan:    ch.Pan,
			})
		}
	}
	if onStep != nil {
		onStep(step, at)
	}
}

func (s *Sequencer) playDrums(d *music.DrumTrack, pid music.PatternID, step int, at time.Duration, ch Channel) {
	pat, ok := d.Patterns[pid]
	if !ok {
		pat, ok = d.Patterns[music.PatternA]
	}
	if !ok {
		return
	}
	for _, lane := range pat.Lanes {
		if step < len(lane.Steps) && lane.Steps[step] > 0 {
			s.drums.Trigger(lane.Pad, Trigger{Velocity: lane.Steps[step], At: at}, ch)
		}
	}
}
