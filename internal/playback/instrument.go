package playback

import (
	"log/slog"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/roach88/beatlab/internal/audio"
)

// Instrument plays pitched notes from a set of sampled root notes. A note
// uses the nearest root at or below it when one exists, otherwise the
// nearest above, resampled by 2^(semitones/12).
//
// Thread-safety: all methods are safe for concurrent use.
type Instrument struct {
	sink   audio.Sink
	mu     sync.RWMutex
	roots  map[uint8]*audio.Buffer
	active *activeSet
	logger *slog.Logger
}

// NewInstrument returns an instrument playing through sink with the kit's
// keys samples.
func NewInstrument(sink audio.Sink, kit *Kit, logger *slog.Logger) *Instrument {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Instrument{
		sink:   sink,
		roots:  make(map[uint8]*audio.Buffer),
		active: newActiveSet(),
		logger: logger,
	}
	if kit != nil {
		for note, buf := range kit.Keys {
			in.roots[note] = buf
		}
	}
	return in
}

// SetSample loads or replaces the sample for a root note.
func (in *Instrument) SetSample(root uint8, buf *audio.Buffer) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if buf == nil {
		delete(in.roots, root)
		return
	}
	in.roots[root] = buf
}

// nearest picks the root for pitch. Caller holds in.mu.
func (in *Instrument) nearest(pitch uint8) (uint8, *audio.Buffer, bool) {
	best, found := 0, false
	for root := range in.roots {
		d := int(pitch) - int(root)
		if !found || better(d, int(pitch)-best) {
			best, found = int(root), true
		}
	}
	if !found {
		return 0, nil, false
	}
	return uint8(best), in.roots[uint8(best)], true
}

// better prefers roots below the pitch (d >= 0), then the smallest distance.
func better(d, cur int) bool {
	if (d >= 0) != (cur >= 0) {
		return d >= 0
	}
	if d < 0 {
		d = -d
	}
	if cur < 0 {
		cur = -cur
	}
	return d < cur
}

// Trigger plays pitch through ch. It returns false, after logging a
// warning, when no sample is loaded.
func (in *Instrument) Trigger(pitch uint8, tr Trigger, ch Channel) bool {
	in.mu.RLock()
	root, buf, ok := in.nearest(pitch)
	in.mu.RUnlock()
	if !ok {
		in.logger.Warn("no sample loaded for note", "pitch", pitch)
		return false
	}
	at := tr.At
	if at == 0 {
		at = in.sink.Now()
	}
	at += tr.Offset
	rate := math.Exp2(float64(int(pitch)-int(root)) / 12)
	in.sink.Play(voiceFor(buf, tr, ch, at, rate))
	in.active.mark(strconv.Itoa(int(pitch)), at)
	return true
}

// Active returns the MIDI pitches triggered within the last VoiceDecay.
func (in *Instrument) Active() []uint8 {
	keys := in.active.keys(in.sink.Now())
	out := make([]uint8, 0, len(keys))
	for _, k := range keys {
		n, _ := strconv.Atoi(k)
		out = append(out, uint8(n))
	}
	slices.Sort(out)
	return out
}
