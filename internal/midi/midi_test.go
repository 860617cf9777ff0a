package midi

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/roach88/beatlab/internal/music"
)

type hit struct {
	tick uint32
	ch   uint8
	key  uint8
	vel  uint8
}

func noteOns(tr smf.Track) []hit {
	var out []hit
	var tick uint32
	for _, ev := range tr {
		tick += ev.Delta
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) {
			out = append(out, hit{tick, ch, key, vel})
		}
	}
	return out
}

func trackLength(tr smf.Track) uint32 {
	var tick uint32
	for _, ev := range tr {
		tick += ev.Delta
	}
	return tick
}

func roundTrip(t *testing.T, p music.Project) *smf.SMF {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))
	rd, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return rd
}

func demo() music.Project {
	p := music.NewProject("p1", "Demo")
	kick := p.Tracks[0].Drum.Patterns[music.PatternA].Lanes[0]
	kick.Steps[0] = 100
	kick.Steps[8] = 90
	keys := music.NewKeysTrack("keys", "Keys", "piano")
	keys.Keys.Notes = []music.Note{{Step: 4, Pitch: 60, Velocity: 80, Length: 2}}
	p.Tracks = append(p.Tracks, keys)
	return p
}

func TestExport_TracksTempoAndNotes(t *testing.T) {
	rd := roundTrip(t, demo())

	require.Len(t, rd.Tracks, 3, "conductor, drums, keys")
	tempos := rd.TempoChanges()
	require.NotEmpty(t, tempos)
	assert.InDelta(t, 120.0, tempos[0].BPM, 1e-6)

	assert.Equal(t, []hit{
		{0, DrumChannel, 36, 100},
		{8 * music.TicksPerStep, DrumChannel, 36, 90},
	}, noteOns(rd.Tracks[1]))
	assert.Equal(t, []hit{{4 * music.TicksPerStep, 0, 60, 80}}, noteOns(rd.Tracks[2]))

	assert.Equal(t, uint32(16*music.TicksPerStep), trackLength(rd.Tracks[1]))
}

func TestExport_ChainPlaysEachPattern(t *testing.T) {
	p := demo()
	b := p.Tracks[0].Drum.Patterns[music.PatternA]
	b.Lanes = append([]music.Lane(nil), b.Lanes...)
	b.Lanes[1] = music.Lane{Pad: music.PadSnare, Steps: make([]int, 16)}
	b.Lanes[1].Steps[4] = 70
	b.Lanes[0] = music.Lane{Pad: music.PadKick, Steps: make([]int, 16)}
	p.Tracks[0].Drum.Patterns[music.PatternB] = b
	p.Arrangement.Chain = []music.PatternID{music.PatternA, music.PatternB}

	rd := roundTrip(t, p)

	span := uint32(16 * music.TicksPerStep)
	assert.Equal(t, []hit{
		{0, DrumChannel, 36, 100},
		{8 * music.TicksPerStep, DrumChannel, 36, 90},
		{span + 4*music.TicksPerStep, DrumChannel, 38, 70},
	}, noteOns(rd.Tracks[1]))
	// Keys repeat on every pass.
	assert.Equal(t, []hit{
		{4 * music.TicksPerStep, 0, 60, 80},
		{span + 4*music.TicksPerStep, 0, 60, 80},
	}, noteOns(rd.Tracks[2]))
}

func TestExport_SwingDelaysOffbeatSixteenths(t *testing.T) {
	p := demo()
	p.Swing = 50
	kick := p.Tracks[0].Drum.Patterns[music.PatternA].Lanes[0]
	kick.Steps[1] = 60

	rd := roundTrip(t, p)

	assert.Equal(t, []hit{
		{0, DrumChannel, 36, 100},
		{music.TicksPerStep + 8, DrumChannel, 36, 60},
		{8 * music.TicksPerStep, DrumChannel, 36, 90},
	}, noteOns(rd.Tracks[1]))
}

func TestExport_MuteAndSolo(t *testing.T) {
	p := demo()
	p.Tracks[1].Mixer.Solo = true
	rd := roundTrip(t, p)
	require.Len(t, rd.Tracks, 2)
	assert.Equal(t, uint8(0), noteOns(rd.Tracks[1])[0].ch)

	p = demo()
	p.Tracks[0].Mixer.Mute = true
	p.Tracks[1].Mixer.Mute = true
	rd = roundTrip(t, p)
	assert.Len(t, rd.Tracks, 1, "only the conductor track remains")
}

func TestExport_KeysChannelsSkipDrumChannel(t *testing.T) {
	ch := uint8(0)
	var got []uint8
	for i := 0; i < 11; i++ {
		got = append(got, ch)
		ch = nextChannel(ch)
	}
	assert.Equal(t, []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 11}, got)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.mid")
	require.NoError(t, WriteFile(path, demo()))

	rd, err := smf.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, rd.Tracks, 3)
}
