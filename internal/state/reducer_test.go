package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beatlab/internal/music"
)

// unknownAction is a project action no reducer case handles.
type unknownAction struct{ projectAction }

func (unknownAction) Type() string { return "test/unknown" }

func newState() AppState {
	p := music.NewProject("p1", "Demo")
	p.Tracks = append(p.Tracks, music.NewKeysTrack("keys", "Keys", "piano"))
	return Initial(p)
}

func drumSteps(t *testing.T, s AppState, pad music.Pad) []int {
	t.Helper()
	lane, ok := s.Project.Tracks[0].Drum.Patterns[music.PatternA].Lane(pad)
	require.True(t, ok, "lane %s", pad)
	return lane.Steps
}

func TestInitial(t *testing.T) {
	s := newState()

	assert.Equal(t, 120.0, s.Transport.BPM)
	assert.Equal(t, music.Origin, s.Transport.Position)
	assert.Equal(t, music.Position{Bar: 2, Beat: 1, Sixteenth: 1}, s.Transport.Loop.End)
	assert.False(t, s.Transport.Loop.Enabled)
	assert.Equal(t, -1, s.Selection.Step)
	assert.Equal(t, 1.0, s.UI.Zoom)
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())
	assert.False(t, s.IsDirty)
}

func TestReduce_NilAndUnknownReturnInput(t *testing.T) {
	s := newState()
	assert.Equal(t, s, Reduce(s, nil))
	assert.Equal(t, s, Reduce(s, unknownAction{}))
}

func TestReduce_Deterministic(t *testing.T) {
	actions := []Action{
		ToggleStep{TrackID: "p1-drums", Pad: music.PadKick, Step: 0, Velocity: 110},
		SetBars{Bars: 2},
		AddTrack{Track: music.NewDrumTrack("d2", "Perc", 1)},
		SetBPM{BPM: 95},
		SelectStep{TrackID: "d2", Pad: music.PadClap, Step: 3},
		Undo{},
		SetZoom{Zoom: 9},
		Redo{},
		SetTrackMixer{TrackID: "keys", Mixer: music.Mixer{Volume: 2, Pan: -3}},
	}

	run := func() AppState {
		s := newState()
		for _, a := range actions {
			s = Reduce(s, a)
		}
		return s
	}
	assert.Equal(t, run(), run())
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := newState()
	before := s.Project.Clone()

	next := Reduce(s, ToggleStep{TrackID: "p1-drums", Pad: music.PadSnare, Step: 4})
	next = Reduce(next, SetBars{Bars: 4})
	next = Reduce(next, SetTrackMixer{TrackID: "keys", Mixer: music.Mixer{Volume: 0.1}})

	assert.Equal(t, before, s.Project)
	assert.NotEqual(t, s.Project, next.Project)
}

func TestReduce_SlicesAreDisjoint(t *testing.T) {
	s := newState()

	tests := []struct {
		name   string
		action Action
		slice  Slice
	}{
		{"bpm", SetBPM{BPM: 90}, SliceTransport},
		{"playing", SetPlaying{Playing: true}, SliceTransport},
		{"select", SelectTrack{TrackID: "keys"}, SliceSelection},
		{"zoom", SetZoom{Zoom: 2}, SliceUI},
		{"audio", AudioInitialized{SampleRate: 48000}, SliceAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.slice, tt.action.Slice())
			next := Reduce(s, tt.action)

			assert.Equal(t, s.Project, next.Project)
			assert.Equal(t, s.Undo, next.Undo)
			assert.Equal(t, s.IsDirty, next.IsDirty)
			if tt.slice != SliceTransport {
				assert.Equal(t, s.Transport, next.Transport)
			}
			if tt.slice != SliceSelection {
				assert.Equal(t, s.Selection, next.Selection)
			}
			if tt.slice != SliceUI {
				assert.Equal(t, s.UI, next.UI)
			}
			if tt.slice != SliceAudio {
				assert.Equal(t, s.Audio, next.Audio)
			}
		})
	}
}

func TestReduce_SetProjectMarksDirtyAndClearsRedo(t *testing.T) {
	s := Reduce(newState(), SetTitle{Title: "Changed"})
	s = Reduce(s, Undo{})
	require.True(t, s.CanRedo())

	s = Reduce(s, MarkSaved{})
	require.False(t, s.IsDirty)

	s = Reduce(s, SetProject{Project: music.NewProject("p2", "Other")})
	assert.True(t, s.IsDirty)
	assert.False(t, s.CanRedo())
	assert.Equal(t, "p2", s.Project.ID)
}

func TestReduce_SetPatternMarksDirtyAndClearsRedo(t *testing.T) {
	s := Reduce(newState(), SetTitle{Title: "Changed"})
	s = Reduce(s, Undo{})
	s = Reduce(s, MarkSaved{})
	require.True(t, s.CanRedo())

	s = Reduce(s, SetPattern{
		TrackID: "p1-drums",
		Pattern: music.PatternB,
		Content: music.DrumPattern{Lanes: []music.Lane{{Pad: music.PadKick, Steps: []int{100}}}},
	})
	assert.True(t, s.IsDirty)
	assert.False(t, s.CanRedo())

	lane, ok := s.Project.Tracks[0].Drum.Patterns[music.PatternB].Lane(music.PadKick)
	require.True(t, ok)
	assert.Len(t, lane.Steps, music.StepsPerBar)
	assert.Equal(t, 100, lane.Steps[0])
}

func TestReduce_StepCountFollowsBars(t *testing.T) {
	s := newState()
	actions := []Action{
		SetBars{Bars: 3},
		AddTrack{Track: music.NewDrumTrack("short", "Short", 1)},
		UpdateTrack{Track: music.NewDrumTrack("short", "Short", 7)},
		SetPattern{TrackID: "p1-drums", Pattern: music.PatternA, Content: music.DrumPattern{
			Lanes: []music.Lane{{Pad: music.PadHatClosed, Steps: make([]int, 5)}},
		}},
		SetBars{Bars: 2},
		SetBars{Bars: 99},
		Undo{},
		SetProject{Project: music.NewProject("p3", "Fresh")},
	}
	for _, a := range actions {
		s = Reduce(s, a)
		assert.True(t, music.StepCountsConsistent(s.Project), "after %s", a.Type())
	}
}

func TestReduce_SetBarsClamps(t *testing.T) {
	s := Reduce(newState(), SetBars{Bars: 99})
	assert.Equal(t, music.MaxBars, s.Project.Bars)
	assert.Len(t, drumSteps(t, s, music.PadKick), music.MaxBars*music.StepsPerBar)

	s = Reduce(s, SetBars{Bars: 0})
	assert.Equal(t, music.MinBars, s.Project.Bars)
}

func TestReduce_SetProjectClampsBars(t *testing.T) {
	p := music.NewProject("p2", "Empty")
	p.Bars = 0
	s := Reduce(newState(), SetProject{Project: p})
	assert.Equal(t, music.MinBars, s.Project.Bars)
	assert.Len(t, drumSteps(t, s, music.PadKick), music.StepsPerBar)
	assert.Empty(t, music.Validate(s.Project))
}

func TestReduce_ToggleStep(t *testing.T) {
	s := newState()
	toggle := ToggleStep{TrackID: "p1-drums", Pad: music.PadKick, Step: 4}

	s = Reduce(s, toggle)
	assert.Equal(t, DefaultVelocity, drumSteps(t, s, music.PadKick)[4])

	s = Reduce(s, toggle)
	assert.Equal(t, 0, drumSteps(t, s, music.PadKick)[4])

	s = Reduce(s, ToggleStep{TrackID: "p1-drums", Pad: music.PadKick, Step: 2, Velocity: 500})
	assert.Equal(t, music.MaxVelocity, drumSteps(t, s, music.PadKick)[2])
}

func TestReduce_ToggleStepIgnoresInvalidTargets(t *testing.T) {
	s := newState()
	for _, a := range []ToggleStep{
		{TrackID: "missing", Pad: music.PadKick, Step: 0},
		{TrackID: "keys", Pad: music.PadKick, Step: 0},
		{TrackID: "p1-drums", Pad: "COWBELL", Step: 0},
		{TrackID: "p1-drums", Pad: music.PadKick, Step: -1},
		{TrackID: "p1-drums", Pad: music.PadKick, Step: music.StepsPerBar},
	} {
		assert.Equal(t, s, Reduce(s, a), "%+v", a)
	}
}

func TestReduce_TrackLimits(t *testing.T) {
	s := newState()

	dup := Reduce(s, AddTrack{Track: music.NewKeysTrack("keys", "Again", "piano")})
	assert.Equal(t, s, dup, "duplicate id is ignored")

	for i := len(s.Project.Tracks); i < music.MaxTracks+3; i++ {
		s = Reduce(s, AddTrack{Track: music.NewKeysTrack(string(rune('a'+i)), "k", "piano")})
	}
	assert.Len(t, s.Project.Tracks, music.MaxTracks)

	one := Initial(music.NewProject("solo", "Solo"))
	assert.Equal(t, one, Reduce(one, RemoveTrack{TrackID: "solo-drums"}), "last track stays")
}

func TestReduce_RemoveAndUpdateTrack(t *testing.T) {
	s := newState()

	s = Reduce(s, RemoveTrack{TrackID: "keys"})
	require.Len(t, s.Project.Tracks, 1)

	tr := s.Project.Tracks[0].Clone()
	tr.Name = "Beats"
	tr.Mixer.Mute = true
	s = Reduce(s, UpdateTrack{Track: tr})
	assert.Equal(t, "Beats", s.Project.Tracks[0].Name)
	assert.True(t, s.Project.Tracks[0].Mixer.Mute)
}

func TestReduce_SetTrackMixerClamps(t *testing.T) {
	s := Reduce(newState(), SetTrackMixer{TrackID: "keys", Mixer: music.Mixer{Volume: 3, Pan: -2, SendA: -1, SendB: 0.5, Solo: true}})
	assert.Equal(t, music.Mixer{Volume: 1, Pan: -1, SendA: 0, SendB: 0.5, Solo: true}, s.Project.Tracks[1].Mixer)
}

func TestReduce_ProjectScalars(t *testing.T) {
	s := newState()

	s = Reduce(s, SetTempo{BPM: 500})
	assert.Equal(t, music.MaxTempo, s.Project.Tempo)

	s = Reduce(s, SetTitle{Title: "  Night Drive "})
	assert.Equal(t, "Night Drive", s.Project.Title)

	blank := Reduce(s, SetTitle{Title: "   "})
	assert.Equal(t, s, blank)

	s = Reduce(s, SetArrangement{Arrangement: music.Arrangement{
		Chain:   []music.PatternID{music.PatternA, music.PatternB},
		Current: music.PatternB,
	}})
	assert.Equal(t, music.PatternB, s.Project.Arrangement.Current)

	bad := Reduce(s, SetArrangement{Arrangement: music.Arrangement{Chain: []music.PatternID{"C"}, Current: music.PatternA}})
	assert.Equal(t, s, bad)
}

func TestReduce_Transport(t *testing.T) {
	s := newState()

	s = Reduce(s, SetBPM{BPM: 10})
	assert.Equal(t, music.MinTempo, s.Transport.BPM)

	s = Reduce(s, SetSwing{Swing: 150})
	assert.Equal(t, music.MaxSwing, s.Transport.Swing)

	s = Reduce(s, SetPosition{Position: music.Position{Bar: 2, Beat: 5, Sixteenth: 1}})
	assert.Equal(t, music.Position{Bar: 3, Beat: 1, Sixteenth: 1}, s.Transport.Position)

	s = Reduce(s, SetLoop{Loop: LoopWindow{Enabled: true, Start: music.Position{Bar: 2, Beat: 1, Sixteenth: 1}, End: music.Origin}})
	assert.False(t, s.Transport.Loop.Enabled, "inverted window is stored disabled")

	s = Reduce(s, SetLoop{Loop: LoopWindow{Enabled: true, Start: music.Origin, End: music.Position{Bar: 3, Beat: 1, Sixteenth: 1}}})
	assert.True(t, s.Transport.Loop.Enabled)

	s = Reduce(s, SetPlaying{Playing: true})
	s = Reduce(s, SetRecording{Recording: true})
	assert.True(t, s.Transport.Playing)
	assert.True(t, s.Transport.Recording)
}

func TestReduce_SelectionUIAudio(t *testing.T) {
	s := newState()

	s = Reduce(s, SelectStep{TrackID: "p1-drums", Pad: music.PadSnare, Step: 3})
	assert.Equal(t, Selection{TrackID: "p1-drums", Pad: music.PadSnare, Step: 3}, s.Selection)
	s = Reduce(s, SelectTrack{TrackID: "keys"})
	assert.Equal(t, Selection{TrackID: "keys", Step: -1}, s.Selection)
	s = Reduce(s, ClearSelection{})
	assert.Equal(t, Selection{Step: -1}, s.Selection)

	s = Reduce(s, SetZoom{Zoom: 0})
	assert.Equal(t, MinZoom, s.UI.Zoom)
	s = Reduce(s, ToggleMixer{})
	assert.True(t, s.UI.MixerOpen)
	s = Reduce(s, SetError{Message: "save failed"})
	assert.Equal(t, "save failed", s.UI.Error)
	s = Reduce(s, ClearError{})
	assert.Empty(t, s.UI.Error)

	s = Reduce(s, AudioInitFailed{Message: "no device"})
	assert.Equal(t, AudioState{Error: "no device"}, s.Audio)
	s = Reduce(s, AudioInitialized{SampleRate: 44100})
	assert.Equal(t, AudioState{Ready: true, SampleRate: 44100}, s.Audio)
}
