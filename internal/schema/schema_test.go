package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beatlab/internal/music"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := Default()
	require.NoError(t, err)
	return v
}

func demo() music.Project {
	p := music.NewProject("p1", "Demo")
	keys := music.NewKeysTrack("keys", "Keys", "piano")
	keys.Keys.Notes = []music.Note{{Step: 0, Pitch: 60, Velocity: 100, Length: 4}}
	p.Tracks = append(p.Tracks, keys)
	return p
}

func fields(vs []music.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Field)
	}
	return out
}

func TestValidate_AcceptsNewProject(t *testing.T) {
	v := newValidator(t)
	assert.Empty(t, v.ValidateProject(demo()))
}

func TestValidate_AcceptsTwoBarChain(t *testing.T) {
	v := newValidator(t)
	p := demo()
	p.Bars = 2
	p = music.Normalize(p)
	assert.Empty(t, v.ValidateProject(p))
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*music.Project)
		field  string
	}{
		{"tempo too fast", func(p *music.Project) { p.Tempo = 250 }, "tempo"},
		{"tempo too slow", func(p *music.Project) { p.Tempo = 30 }, "tempo"},
		{"waltz", func(p *music.Project) { p.TimeSignature.Numerator = 3 }, "timeSignature.numerator"},
		{"too many bars", func(p *music.Project) { p.Bars = 17 }, "bars"},
		{"empty title", func(p *music.Project) { p.Title = "" }, "title"},
		{"swing", func(p *music.Project) { p.Swing = 120 }, "swing"},
		{"no tracks", func(p *music.Project) { p.Tracks = []music.Track{} }, "tracks"},
		{"unknown pad", func(p *music.Project) {
			p.Tracks[0].Drum.Patterns[music.PatternA].Lanes[0].Pad = "BONGO"
		}, "tracks.0.drum.patterns.A.lanes.0.pad"},
		{"lane length", func(p *music.Project) {
			pat := p.Tracks[0].Drum.Patterns[music.PatternA]
			pat.Lanes[0].Steps = pat.Lanes[0].Steps[:8]
		}, "tracks.0.drum.patterns.A.lanes.0.steps"},
		{"step velocity", func(p *music.Project) {
			p.Tracks[0].Drum.Patterns[music.PatternA].Lanes[0].Steps[0] = 200
		}, "tracks.0.drum.patterns.A.lanes.0.steps.0"},
		{"note past grid", func(p *music.Project) { p.Tracks[1].Keys.Notes[0].Step = 16 }, "tracks.1.keys.notes.0.step"},
		{"note pitch", func(p *music.Project) { p.Tracks[1].Keys.Notes[0].Pitch = 128 }, "tracks.1.keys.notes.0.pitch"},
		{"silent note", func(p *music.Project) { p.Tracks[1].Keys.Notes[0].Velocity = 0 }, "tracks.1.keys.notes.0.velocity"},
		{"pan", func(p *music.Project) { p.Tracks[0].Mixer.Pan = 2 }, "tracks.0.mixer.pan"},
		{"empty track id", func(p *music.Project) { p.Tracks[1].ID = "" }, "tracks.1.id"},
		{"bad pattern", func(p *music.Project) { p.Arrangement.Current = "C" }, "arrangement.current"},
	}
	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := demo().Clone()
			tt.mutate(&p)
			got := v.ValidateProject(p)
			require.NotEmpty(t, got)
			assert.Contains(t, fields(got), tt.field)
			for _, vi := range got {
				assert.Equal(t, CodeSchema, vi.Code)
			}
		})
	}
}

func TestValidate_RejectsUnknownField(t *testing.T) {
	v := newValidator(t)
	data, err := json.Marshal(demo())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	doc["colour"] = "red"
	data, err = json.Marshal(doc)
	require.NoError(t, err)

	got := v.Validate(data)
	require.NotEmpty(t, got)
	assert.Contains(t, fields(got), "colour")
	for _, f := range fields(got) {
		assert.NotContains(t, f, "#Project", "fields name document paths")
	}
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "colour", fieldPath([]string{"#Project", "colour"}))
	assert.Equal(t, "tracks.0.mixer.pan", fieldPath([]string{"tracks", "0", "mixer", "pan"}))
	assert.Equal(t, "", fieldPath([]string{"#Project"}))
	assert.Equal(t, "", fieldPath(nil))
}

func TestValidate_MissingPayloadForKind(t *testing.T) {
	v := newValidator(t)
	p := demo()
	p.Tracks[1].Keys = nil
	assert.NotEmpty(t, v.ValidateProject(p))
}

func TestValidate_MalformedJSON(t *testing.T) {
	v := newValidator(t)
	got := v.Validate([]byte(`{"title": `))
	require.Len(t, got, 1)
	assert.Equal(t, CodeSyntax, got[0].Code)
	assert.NotEmpty(t, got[0].Message)
}

func TestValidate_ConcurrentUse(t *testing.T) {
	v := newValidator(t)
	data, err := json.Marshal(demo())
	require.NoError(t, err)

	done := make(chan []music.Violation, 8)
	for i := 0; i < cap(done); i++ {
		go func() { done <- v.Validate(data) }()
	}
	for i := 0; i < cap(done); i++ {
		assert.Empty(t, <-done)
	}
}
