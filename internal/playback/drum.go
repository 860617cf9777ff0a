package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/music"
)

// DrumMachine triggers one sample per pad.
//
// Thread-safety: all methods are safe for concurrent use.
type DrumMachine struct {
	sink   audio.Sink
	mu     sync.RWMutex
	pads   map[music.Pad]*audio.Buffer
	active *activeSet
	logger *slog.Logger
}

// NewDrumMachine returns a drum machine playing through sink with the
// kit's drum samples.
func NewDrumMachine(sink audio.Sink, kit *Kit, logger *slog.Logger) *DrumMachine {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DrumMachine{
		sink:   sink,
		pads:   make(map[music.Pad]*audio.Buffer),
		active: newActiveSet(),
		logger: logger,
	}
	if kit != nil {
		for pad, buf := range kit.Drums {
			d.pads[pad] = buf
		}
	}
	return d
}

// SetSample loads or replaces the sample of a pad. A nil buffer unloads it.
func (d *DrumMachine) SetSample(pad music.Pad, buf *audio.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if buf == nil {
		delete(d.pads, pad)
		return
	}
	d.pads[pad] = buf
}

// Loaded reports whether pad has a sample.
func (d *DrumMachine) Loaded(pad music.Pad) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.pads[pad]
	return ok
}

// Trigger plays pad through ch. It returns false, after logging a warning,
// when the pad has no sample.
func (d *DrumMachine) Trigger(pad music.Pad, tr Trigger, ch Channel) bool {
	d.mu.RLock()
	buf, ok := d.pads[pad]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("no sample loaded for pad", "pad", pad)
		return false
	}
	at := d.when(tr)
	d.sink.Play(voiceFor(buf, tr, ch, at, 1))
	d.active.mark(string(pad), at)
	return true
}

func (d *DrumMachine) when(tr Trigger) time.Duration {
	at := tr.At
	if at == 0 {
		at = d.sink.Now()
	}
	return at + tr.Offset
}

// Active returns the pads triggered within the last VoiceDecay.
func (d *DrumMachine) Active() []music.Pad {
	keys := d.active.keys(d.sink.Now())
	out := make([]music.Pad, len(keys))
	for i, k := range keys {
		out[i] = music.Pad(k)
	}
	return out
}

// Reset forgets every active voice.
func (d *DrumMachine) Reset() {
	d.active.reset()
}

func voiceFor(buf *audio.Buffer, tr Trigger, ch Channel, at time.Duration, rate float64) audio.Voice {
	pan := ch.Pan
	if tr.Pan != nil {
		pan = *tr.Pan
	}
	return audio.Voice{
		Buffer: buf,
		At:     at,
		Gain:   VelocityGain(tr.Velocity) * ch.Gain,
		Pan:    music.Clamp(pan, -1, 1),
		Rate:   rate,
	}
}
