package generate

import (
	"fmt"

	"github.com/roach88/beatlab/internal/music"
)

// DrumOutput is the JSON shape models are asked to return for drum patterns.
type DrumOutput struct {
	Pads []PadHits `json:"pads"`
}

// PadHits lists the hits of one pad.
type PadHits struct {
	Pad  string `json:"pad"`
	Hits []Hit  `json:"hits"`
}

// Hit is one drum hit on the step grid.
type Hit struct {
	Step int `json:"step"`
	Vel  int `json:"vel"`
}

// MelodyOutput is the JSON shape models are asked to return for melodies.
type MelodyOutput struct {
	Notes []NoteOut `json:"notes"`
}

// NoteOut is one model-proposed note. A zero Vel or Length is filled with a
// default rather than reported.
type NoteOut struct {
	Step   int `json:"step"`
	Pitch  int `json:"pitch"`
	Vel    int `json:"vel"`
	Length int `json:"length"`
}

// Defaults for fields the model left out.
const (
	DefaultVelocity = 100
	DefaultLength   = 1
)

// RepairDrum turns model output into a pattern with one lane per pad over
// steps grid steps. Unknown pads map to the nearest valid pad (KICK when
// nothing is close), steps clamp to [0, steps-1] and velocities to [1, 127].
// A zero velocity becomes DefaultVelocity. Colliding hits keep the louder
// velocity. Every change is reported.
func RepairDrum(out DrumOutput, steps int) (music.DrumPattern, []string) {
	var repairs []string
	warn := func(format string, args ...any) {
		repairs = append(repairs, fmt.Sprintf(format, args...))
	}

	lanes := make(map[music.Pad][]int, len(music.Pads))
	for _, pad := range music.Pads {
		lanes[pad] = make([]int, steps)
	}

	for _, ph := range out.Pads {
		pad, ok := music.ParsePad(ph.Pad)
		if !ok {
			pad = music.NearestPad(ph.Pad)
			warn("pad %q replaced with %s", ph.Pad, pad)
		}
		for _, h := range ph.Hits {
			step := music.ClampInt(h.Step, 0, steps-1)
			if step != h.Step {
				warn("%s step %d clamped to %d", pad, h.Step, step)
			}
			vel := h.Vel
			if vel == 0 {
				vel = DefaultVelocity
				warn("%s velocity 0 set to %d", pad, vel)
			}
			if c := music.ClampInt(vel, music.MinVelocity, music.MaxVelocity); c != vel {
				warn("%s velocity %d clamped to %d", pad, vel, c)
				vel = c
			}
			if vel > lanes[pad][step] {
				lanes[pad][step] = vel
			}
		}
	}

	pattern := music.DrumPattern{Lanes: make([]music.Lane, 0, len(music.Pads))}
	for _, pad := range music.Pads {
		pattern.Lanes = append(pattern.Lanes, music.Lane{Pad: pad, Steps: lanes[pad]})
	}
	return pattern, repairs
}

// RepairMelody clamps model notes onto the grid and into MIDI range. Notes
// are kept in the order given; lengths are cut at the end of the grid.
// Every change is reported, defaults included.
func RepairMelody(out MelodyOutput, steps int) ([]music.Note, []string) {
	var repairs []string
	warn := func(format string, args ...any) {
		repairs = append(repairs, fmt.Sprintf(format, args...))
	}

	notes := make([]music.Note, 0, len(out.Notes))
	for i, n := range out.Notes {
		step := music.ClampInt(n.Step, 0, steps-1)
		if step != n.Step {
			warn("note %d step %d clamped to %d", i, n.Step, step)
		}
		pitch := music.ClampInt(n.Pitch, 0, 127)
		if pitch != n.Pitch {
			warn("note %d pitch %d clamped to %d", i, n.Pitch, pitch)
		}
		vel := n.Vel
		if vel == 0 {
			vel = DefaultVelocity
			warn("note %d velocity 0 set to %d", i, vel)
		}
		if c := music.ClampInt(vel, music.MinVelocity, music.MaxVelocity); c != vel {
			warn("note %d velocity %d clamped to %d", i, vel, c)
			vel = c
		}
		length := n.Length
		if length == 0 {
			length = DefaultLength
			warn("note %d length 0 set to %d", i, length)
		}
		if c := music.ClampInt(length, 1, steps-step); c != length {
			warn("note %d length %d clamped to %d", i, length, c)
			length = c
		}
		notes = append(notes, music.Note{Step: step, Pitch: pitch, Velocity: vel, Length: length})
	}
	return notes, repairs
}
