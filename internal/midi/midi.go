// Package midi exports projects as standard MIDI files.
//
// The file has a conductor track with tempo and meter followed by one track
// per audible drum or keys track, covering one pass of the arrangement
// chain. Drum tracks play on General MIDI channel 10 using each pad's GM
// note; keys tracks take the remaining channels in order. Audio tracks have
// no MIDI representation and are skipped.
package midi

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/roach88/beatlab/internal/music"
)

// DrumChannel is GM channel 10, zero-based.
const DrumChannel = 9

// drumGate is how long a drum note is held.
const drumGate = music.TicksPerStep / 2

type event struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// Export builds the SMF for p.
func Export(p music.Project) (*smf.SMF, error) {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(music.PPQ)

	var conductor smf.Track
	conductor.Add(0, smf.MetaTrackSequenceName(p.Title))
	conductor.Add(0, smf.MetaMeter(uint8(p.TimeSignature.Numerator), uint8(p.TimeSignature.Denominator)))
	conductor.Add(0, smf.MetaTempo(p.Tempo))
	conductor.Close(0)
	if err := sm.Add(conductor); err != nil {
		return nil, fmt.Errorf("add conductor track: %w", err)
	}

	chain := p.Arrangement.Chain
	if len(chain) == 0 {
		chain = []music.PatternID{music.PatternA}
	}
	span := int64(p.StepCount()) * music.TicksPerStep
	end := uint32(span * int64(len(chain)))

	audible := music.Audible(p.Tracks)
	keysChannel := uint8(0)
	for i, t := range p.Tracks {
		if !audible[i] {
			continue
		}
		var events []event
		switch t.Kind {
		case music.KindDrum:
			if t.Drum == nil {
				continue
			}
			events = drumEvents(*t.Drum, chain, span, p.Swing)
		case music.KindKeys:
			if t.Keys == nil {
				continue
			}
			events = keysEvents(*t.Keys, keysChannel, len(chain), span, p.Swing)
			keysChannel = nextChannel(keysChannel)
		default:
			continue
		}

		track := buildTrack(t.Name, events, end)
		if err := sm.Add(track); err != nil {
			return nil, fmt.Errorf("add track %s: %w", t.ID, err)
		}
	}
	return sm, nil
}

// Write encodes p as an SMF to w.
func Write(w io.Writer, p music.Project) error {
	sm, err := Export(p)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

// WriteFile encodes p as an SMF at path.
func WriteFile(path string, p music.Project) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func nextChannel(ch uint8) uint8 {
	ch = (ch + 1) % 16
	if ch == DrumChannel {
		ch++
	}
	return ch
}

// swung returns the tick of a grid step after swing.
func swung(tick int64, swing float64) uint32 {
	return uint32(tick + int64(math.Round(music.SwingTicks(tick, swing))))
}

func drumEvents(d music.DrumTrack, chain []music.PatternID, span int64, swing float64) []event {
	var events []event
	for pass, id := range chain {
		pattern, ok := d.Patterns[id]
		if !ok {
			continue
		}
		base := int64(pass) * span
		for _, lane := range pattern.Lanes {
			if !lane.Pad.Valid() {
				continue
			}
			note := lane.Pad.GMNote()
			for step, vel := range lane.Steps {
				if vel <= 0 {
					continue
				}
				on := swung(base+int64(step)*music.TicksPerStep, swing)
				v := uint8(music.ClampInt(vel, music.MinVelocity, music.MaxVelocity))
				events = append(events,
					event{tick: on, msg: midi.NoteOn(DrumChannel, note, v)},
					event{tick: on + drumGate, off: true, msg: midi.NoteOff(DrumChannel, note)},
				)
			}
		}
	}
	return events
}

func keysEvents(k music.KeysTrack, ch uint8, passes int, span int64, swing float64) []event {
	var events []event
	for pass := 0; pass < passes; pass++ {
		base := int64(pass) * span
		for _, n := range k.Notes {
			start := base + int64(n.Step)*music.TicksPerStep
			on := swung(start, swing)
			off := uint32(start + int64(max(n.Length, 1))*music.TicksPerStep - 1)
			key := uint8(music.ClampInt(n.Pitch, 0, 127))
			v := uint8(music.ClampInt(n.Velocity, music.MinVelocity, music.MaxVelocity))
			events = append(events,
				event{tick: on, msg: midi.NoteOn(ch, key, v)},
				event{tick: max(off, on+1), off: true, msg: midi.NoteOff(ch, key)},
			)
		}
	}
	return events
}

// buildTrack orders events by tick, note-offs first, and encodes deltas.
func buildTrack(name string, events []event, end uint32) smf.Track {
	slices.SortStableFunc(events, func(a, b event) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		switch {
		case a.off && !b.off:
			return -1
		case !a.off && b.off:
			return 1
		}
		return 0
	})

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(name))
	var last uint32
	for _, e := range events {
		track.Add(e.tick-last, e.msg)
		last = e.tick
	}
	if last < end {
		track.Close(end - last)
	} else {
		track.Close(0)
	}
	return track
}
