package state

import (
	"github.com/roach88/beatlab/internal/music"
)

// HistoryLimit bounds both the undo and the redo stack.
const HistoryLimit = 50

// Zoom limits for the pattern editor.
const (
	MinZoom = 0.25
	MaxZoom = 4.0
)

// AppState is the whole application state. It is a value: the reducer
// never mutates an AppState in place.
type AppState struct {
	Project   music.Project   `json:"project"`
	Transport TransportState  `json:"transport"`
	Selection Selection       `json:"selection"`
	UI        UIState         `json:"ui"`
	Audio     AudioState      `json:"audio"`
	Undo      []music.Project `json:"-"`
	Redo      []music.Project `json:"-"`
	IsDirty   bool            `json:"isDirty"`
}

// TransportState mirrors the transport for observers of the store.
type TransportState struct {
	Playing       bool                `json:"playing"`
	Recording     bool                `json:"recording"`
	BPM           float64             `json:"bpm"`
	TimeSignature music.TimeSignature `json:"timeSignature"`
	Swing         float64             `json:"swing"`
	Position      music.Position      `json:"position"`
	Loop          LoopWindow          `json:"loop"`
}

// LoopWindow is a [Start, End) window in musical time.
type LoopWindow struct {
	Enabled bool           `json:"enabled"`
	Start   music.Position `json:"start"`
	End     music.Position `json:"end"`
}

// Selection is what the editor has focused. Step is -1 when no step is
// selected.
type Selection struct {
	TrackID string    `json:"trackId,omitempty"`
	Pad     music.Pad `json:"pad,omitempty"`
	Step    int       `json:"step"`
}

// UIState holds editor chrome.
type UIState struct {
	Zoom      float64 `json:"zoom"`
	MixerOpen bool    `json:"mixerOpen"`
	Error     string  `json:"error,omitempty"`
}

// AudioState tracks audio output initialisation. A failed initialisation is
// only retried by an explicit user action.
type AudioState struct {
	Ready      bool   `json:"ready"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Initial builds the starting state for a project: transport follows the
// project's tempo, meter and swing, nothing selected, empty history.
func Initial(p music.Project) AppState {
	return AppState{
		Project: p,
		Transport: TransportState{
			BPM:           p.Tempo,
			TimeSignature: p.TimeSignature,
			Swing:         p.Swing,
			Position:      music.Origin,
			Loop: LoopWindow{
				Start: music.Origin,
				End:   music.Position{Bar: p.Bars + 1, Beat: 1, Sixteenth: 1},
			},
		},
		Selection: Selection{Step: -1},
		UI:        UIState{Zoom: 1},
	}
}

// CanUndo reports whether there is history to undo.
func (s AppState) CanUndo() bool { return len(s.Undo) > 0 }

// CanRedo reports whether there is history to redo.
func (s AppState) CanRedo() bool { return len(s.Redo) > 0 }
