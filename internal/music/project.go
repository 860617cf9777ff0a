package music

import (
	"slices"
	"time"
)

// Grid and range constants for the document schema.
const (
	// SchemaVersion is the current project document version.
	SchemaVersion = 1

	// StepsPerBar is fixed: one step is one sixteenth note in 4/4.
	StepsPerBar = 16

	MinTempo     = 60.0
	MaxTempo     = 200.0
	DefaultTempo = 120.0

	MinBars = 1
	MaxBars = 16

	MinTracks = 1
	MaxTracks = 16

	MinVelocity = 1
	MaxVelocity = 127

	MaxSwing = 100.0
)

// TrackKind is the discriminator of the Track union.
type TrackKind string

const (
	KindDrum  TrackKind = "drum"
	KindKeys  TrackKind = "keys"
	KindAudio TrackKind = "audio"
)

// PatternID names one of the two patterns of the A/B arrangement.
type PatternID string

const (
	PatternA PatternID = "A"
	PatternB PatternID = "B"
)

// Valid reports whether id is A or B.
func (id PatternID) Valid() bool {
	return id == PatternA || id == PatternB
}

// TimeSignature is numerator/denominator. Only 4/4 passes validation.
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// CommonTime is 4/4.
var CommonTime = TimeSignature{Numerator: 4, Denominator: 4}

// Project is the versioned musical document.
type Project struct {
	ID            string        `json:"id"`
	Version       int           `json:"version"`
	Title         string        `json:"title"`
	Tempo         float64       `json:"tempo"`
	TimeSignature TimeSignature `json:"timeSignature"`
	Bars          int           `json:"bars"`
	Swing         float64       `json:"swing"`
	Tracks        []Track       `json:"tracks"`
	Arrangement   Arrangement   `json:"arrangement"`
	Owner         string        `json:"owner,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Arrangement chains the A and B patterns; Current is the pattern being
// edited and auditioned.
type Arrangement struct {
	Chain   []PatternID `json:"chain"`
	Current PatternID   `json:"current"`
}

// Mixer is the per-track channel strip.
type Mixer struct {
	Volume float64 `json:"volume"` // 0..1 linear
	Pan    float64 `json:"pan"`    // -1 (left) .. 1 (right)
	SendA  float64 `json:"sendA"`
	SendB  float64 `json:"sendB"`
	Mute   bool    `json:"mute"`
	Solo   bool    `json:"solo"`
}

// DefaultMixer is unity-ish gain, centred, no sends.
var DefaultMixer = Mixer{Volume: 0.8}

// Track is a tagged union: exactly one of Drum, Keys or Audio is set and it
// matches Kind.
type Track struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Kind  TrackKind   `json:"type"`
	Mixer Mixer       `json:"mixer"`
	Drum  *DrumTrack  `json:"drum,omitempty"`
	Keys  *KeysTrack  `json:"keys,omitempty"`
	Audio *AudioTrack `json:"audio,omitempty"`
}

// DrumTrack holds one pattern per arrangement slot.
type DrumTrack struct {
	Kit      string                    `json:"kit,omitempty"`
	Patterns map[PatternID]DrumPattern `json:"patterns"`
}

// DrumPattern is a set of pad lanes on the step grid.
type DrumPattern struct {
	Lanes []Lane `json:"lanes"`
}

// Lane holds one velocity per step for a pad; 0 is a rest.
type Lane struct {
	Pad   Pad   `json:"pad"`
	Steps []int `json:"steps"`
}

// KeysTrack is a list of note events on the step grid.
type KeysTrack struct {
	Instrument string `json:"instrument"`
	Notes      []Note `json:"notes"`
}

// Note is a keys event. Length is in steps.
type Note struct {
	Step     int `json:"step"`
	Pitch    int `json:"pitch"`
	Velocity int `json:"velocity"`
	Length   int `json:"length"`
}

// AudioTrack references an uploaded asset placed on the grid.
type AudioTrack struct {
	AssetID   string  `json:"assetId"`
	StartStep int     `json:"startStep"`
	Gain      float64 `json:"gain"`
}

// StepCount is the number of grid steps in the project.
func (p Project) StepCount() int {
	return p.Bars * StepsPerBar
}

// TrackIndex returns the index of the track with the given id, or -1.
func (p Project) TrackIndex(id string) int {
	for i := range p.Tracks {
		if p.Tracks[i].ID == id {
			return i
		}
	}
	return -1
}

// NewProject returns an empty one-bar project with a single drum track.
func NewProject(id, title string) Project {
	p := Project{
		ID:            id,
		Version:       SchemaVersion,
		Title:         title,
		Tempo:         DefaultTempo,
		TimeSignature: CommonTime,
		Bars:          1,
		Arrangement:   Arrangement{Chain: []PatternID{PatternA}, Current: PatternA},
	}
	p.Tracks = []Track{NewDrumTrack(id+"-drums", "Drums", p.Bars)}
	return p
}

// NewDrumTrack returns a drum track with an empty lane for every kit pad in
// pattern A, sized for bars.
func NewDrumTrack(id, name string, bars int) Track {
	lanes := make([]Lane, len(Pads))
	for i, pad := range Pads {
		lanes[i] = Lane{Pad: pad, Steps: make([]int, bars*StepsPerBar)}
	}
	return Track{
		ID:    id,
		Name:  name,
		Kind:  KindDrum,
		Mixer: DefaultMixer,
		Drum: &DrumTrack{
			Patterns: map[PatternID]DrumPattern{PatternA: {Lanes: lanes}},
		},
	}
}

// NewKeysTrack returns an empty keys track.
func NewKeysTrack(id, name, instrument string) Track {
	return Track{
		ID:    id,
		Name:  name,
		Kind:  KindKeys,
		Mixer: DefaultMixer,
		Keys:  &KeysTrack{Instrument: instrument, Notes: []Note{}},
	}
}

// NewAudioTrack returns a track playing assetID from the first step.
func NewAudioTrack(id, name, assetID string) Track {
	return Track{
		ID:    id,
		Name:  name,
		Kind:  KindAudio,
		Mixer: DefaultMixer,
		Audio: &AudioTrack{AssetID: assetID, Gain: 1},
	}
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	c := p
	if p.Tracks != nil {
		c.Tracks = make([]Track, len(p.Tracks))
		for i := range p.Tracks {
			c.Tracks[i] = p.Tracks[i].Clone()
		}
	}
	c.Arrangement.Chain = slices.Clone(p.Arrangement.Chain)
	return c
}

// Clone returns a deep copy of the track.
func (t Track) Clone() Track {
	c := t
	if t.Drum != nil {
		d := *t.Drum
		if t.Drum.Patterns != nil {
			d.Patterns = make(map[PatternID]DrumPattern, len(t.Drum.Patterns))
			for id, pat := range t.Drum.Patterns {
				d.Patterns[id] = pat.Clone()
			}
		}
		c.Drum = &d
	}
	if t.Keys != nil {
		k := *t.Keys
		k.Notes = slices.Clone(t.Keys.Notes)
		c.Keys = &k
	}
	if t.Audio != nil {
		a := *t.Audio
		c.Audio = &a
	}
	return c
}

// Clone returns a deep copy of the pattern.
func (p DrumPattern) Clone() DrumPattern {
	if p.Lanes == nil {
		return p
	}
	lanes := make([]Lane, len(p.Lanes))
	for i, l := range p.Lanes {
		lanes[i] = Lane{Pad: l.Pad, Steps: slices.Clone(l.Steps)}
	}
	return DrumPattern{Lanes: lanes}
}

// Lane returns the lane for pad, if present.
func (p DrumPattern) Lane(pad Pad) (Lane, bool) {
	for _, l := range p.Lanes {
		if l.Pad == pad {
			return l, true
		}
	}
	return Lane{}, false
}

// Audible reports which tracks sound after mute and solo: when any track is
// soloed only soloed tracks sound, and a muted track never sounds.
func Audible(tracks []Track) []bool {
	solo := false
	for _, t := range tracks {
		solo = solo || t.Mixer.Solo
	}
	out := make([]bool, len(tracks))
	for i, t := range tracks {
		out[i] = !t.Mixer.Mute && (!solo || t.Mixer.Solo)
	}
	return out
}
