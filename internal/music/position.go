package music

import (
	"fmt"
	"strconv"
	"strings"
)

// PPQ is the tick resolution: pulses per quarter note.
const PPQ = 192

// TicksPerStep is the length of one grid step (a sixteenth note) in ticks.
const TicksPerStep = PPQ / 4

// SwingTicks is the delay applied to an event at tick: events on the second
// and fourth sixteenth of a beat move late by swing% of a third of a step.
// Events off the step grid are not swung.
func SwingTicks(tick int64, swing float64) float64 {
	if swing <= 0 || tick%TicksPerStep != 0 || (tick/TicksPerStep)%2 == 0 {
		return 0
	}
	return min(swing, MaxSwing) / 100 * TicksPerStep / 3
}

// Position is a musical position. All fields are 1-based, so the origin is
// 1.1.1 and tick 0.
type Position struct {
	Bar       int `json:"bar"`
	Beat      int `json:"beat"`
	Sixteenth int `json:"sixteenth"`
}

// Origin is the first sixteenth of the first bar.
var Origin = Position{Bar: 1, Beat: 1, Sixteenth: 1}

// TicksPerBeat returns the beat length in ticks for the signature.
func (ts TimeSignature) TicksPerBeat() int64 {
	den := ts.Denominator
	if den <= 0 {
		den = 4
	}
	return int64(PPQ * 4 / den)
}

// TicksPerBar returns the bar length in ticks for the signature.
func (ts TimeSignature) TicksPerBar() int64 {
	num := ts.Numerator
	if num <= 0 {
		num = 4
	}
	return int64(num) * ts.TicksPerBeat()
}

// SixteenthsPerBeat is how many grid steps fit in one beat.
func (ts TimeSignature) SixteenthsPerBeat() int {
	n := int(ts.TicksPerBeat() / TicksPerStep)
	if n < 1 {
		return 1
	}
	return n
}

// PositionAt converts ticks to a position, truncating to the enclosing
// sixteenth. Negative ticks clamp to the origin.
func PositionAt(ticks int64, ts TimeSignature) Position {
	if ticks < 0 {
		ticks = 0
	}
	perBar := ts.TicksPerBar()
	perBeat := ts.TicksPerBeat()
	bar := ticks / perBar
	rem := ticks % perBar
	beat := rem / perBeat
	rem %= perBeat
	return Position{
		Bar:       int(bar) + 1,
		Beat:      int(beat) + 1,
		Sixteenth: int(rem/TicksPerStep) + 1,
	}
}

// Ticks converts the position back to ticks.
func (p Position) Ticks(ts TimeSignature) int64 {
	bar, beat, six := p.Bar, p.Beat, p.Sixteenth
	if bar < 1 {
		bar = 1
	}
	if beat < 1 {
		beat = 1
	}
	if six < 1 {
		six = 1
	}
	return int64(bar-1)*ts.TicksPerBar() + int64(beat-1)*ts.TicksPerBeat() + int64(six-1)*TicksPerStep
}

// Step returns the zero-based grid step of the position.
func (p Position) Step(ts TimeSignature) int {
	return int(p.Ticks(ts) / TicksPerStep)
}

// StepTicks returns the tick of a zero-based grid step.
func StepTicks(step int) int64 {
	return int64(step) * TicksPerStep
}

// String renders the position as bar.beat.sixteenth.
func (p Position) String() string {
	return fmt.Sprintf("%d.%d.%d", p.Bar, p.Beat, p.Sixteenth)
}

// ParsePosition accepts "bar.beat.sixteenth" or "bar:beat:sixteenth"; missing
// trailing fields default to 1.
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Position{}, fmt.Errorf("parse position: empty string")
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ':' })
	if len(parts) > 3 {
		return Position{}, fmt.Errorf("parse position %q: too many fields", s)
	}
	vals := []int{1, 1, 1}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Position{}, fmt.Errorf("parse position %q: %w", s, err)
		}
		if n < 1 {
			return Position{}, fmt.Errorf("parse position %q: fields are 1-based", s)
		}
		vals[i] = n
	}
	return Position{Bar: vals[0], Beat: vals[1], Sixteenth: vals[2]}, nil
}
