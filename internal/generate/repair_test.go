package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beatlab/internal/music"
)

func lane(t *testing.T, p music.DrumPattern, pad music.Pad) []int {
	t.Helper()
	for _, l := range p.Lanes {
		if l.Pad == pad {
			return l.Steps
		}
	}
	t.Fatalf("no lane for %s", pad)
	return nil
}

func TestRepairDrum_InvalidEverything(t *testing.T) {
	out := DrumOutput{Pads: []PadHits{{Pad: "INVALID", Hits: []Hit{{Step: -5, Vel: 999}}}}}

	p, repairs := RepairDrum(out, 16)

	require.Len(t, p.Lanes, len(music.Pads))
	kick := lane(t, p, music.PadKick)
	require.Len(t, kick, 16)
	assert.Equal(t, 127, kick[0])
	assert.Equal(t, []string{
		`pad "INVALID" replaced with KICK`,
		"KICK step -5 clamped to 0",
		"KICK velocity 999 clamped to 127",
	}, repairs)
}

func TestRepairDrum_ValidInputUntouched(t *testing.T) {
	out := DrumOutput{Pads: []PadHits{
		{Pad: "SNARE", Hits: []Hit{{Step: 4, Vel: 90}, {Step: 12, Vel: 90}}},
		{Pad: "hh", Hits: []Hit{{Step: 2, Vel: 60}}},
	}}

	p, repairs := RepairDrum(out, 16)

	assert.Empty(t, repairs, "aliases resolve without a repair")
	snare := lane(t, p, music.PadSnare)
	assert.Equal(t, 90, snare[4])
	assert.Equal(t, 90, snare[12])
	assert.Equal(t, 60, lane(t, p, music.PadHatClosed)[2])
}

func TestRepairDrum_CollisionsKeepLouder(t *testing.T) {
	out := DrumOutput{Pads: []PadHits{
		{Pad: "KICK", Hits: []Hit{{Step: 0, Vel: 40}, {Step: 0, Vel: 100}, {Step: 40, Vel: 80}}},
	}}

	p, repairs := RepairDrum(out, 32)

	kick := lane(t, p, music.PadKick)
	assert.Equal(t, 100, kick[0])
	assert.Equal(t, 80, kick[31])
	assert.Equal(t, []string{"KICK step 40 clamped to 31"}, repairs)
}

func TestRepairDrum_MissingVelocityDefaults(t *testing.T) {
	p, repairs := RepairDrum(DrumOutput{Pads: []PadHits{{Pad: "CLAP", Hits: []Hit{{Step: 8}}}}}, 16)
	assert.Equal(t, []string{"CLAP velocity 0 set to 100"}, repairs)
	assert.Equal(t, DefaultVelocity, lane(t, p, music.PadClap)[8])
}

func TestRepairDrum_ResultValidates(t *testing.T) {
	p, _ := RepairDrum(DrumOutput{Pads: []PadHits{{Pad: "zzz", Hits: []Hit{{Step: 99, Vel: -3}}}}}, 16)

	proj := music.NewProject("p", "Gen")
	proj.Tracks[0].Drum.Patterns[music.PatternA] = p
	assert.Empty(t, music.Validate(proj))
}

func TestRepairMelody(t *testing.T) {
	out := MelodyOutput{Notes: []NoteOut{
		{Step: 0, Pitch: 60, Vel: 100, Length: 2},
		{Step: 20, Pitch: 200, Vel: 0, Length: 8},
		{Step: -1, Pitch: -4, Vel: 500},
	}}

	notes, repairs := RepairMelody(out, 16)

	assert.Equal(t, []music.Note{
		{Step: 0, Pitch: 60, Velocity: 100, Length: 2},
		{Step: 15, Pitch: 127, Velocity: DefaultVelocity, Length: 1},
		{Step: 0, Pitch: 0, Velocity: 127, Length: DefaultLength},
	}, notes)
	assert.Equal(t, []string{
		"note 1 step 20 clamped to 15",
		"note 1 pitch 200 clamped to 127",
		"note 1 velocity 0 set to 100",
		"note 1 length 8 clamped to 1",
		"note 2 step -1 clamped to 0",
		"note 2 pitch -4 clamped to 0",
		"note 2 velocity 500 clamped to 127",
		"note 2 length 0 set to 1",
	}, repairs)
}
