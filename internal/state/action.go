package state

import (
	"github.com/roach88/beatlab/internal/music"
)

// Slice names the part of AppState an action updates.
type Slice string

const (
	SliceAudio     Slice = "audio"
	SliceUI        Slice = "ui"
	SliceProject   Slice = "project"
	SliceSelection Slice = "selection"
	SliceTransport Slice = "transport"
	SliceHistory   Slice = "history"
)

// Action is the closed set of state transitions. Only types in this package
// implement it; the type switch in Reduce is exhaustive over them.
type Action interface {
	// Type is the stable wire name, e.g. "project/addTrack".
	Type() string
	// Slice is the only part of AppState the action touches.
	Slice() Slice
	sealed()
}

type audioAction struct{}

func (audioAction) Slice() Slice { return SliceAudio }
func (audioAction) sealed()      {}

type uiAction struct{}

func (uiAction) Slice() Slice { return SliceUI }
func (uiAction) sealed()      {}

type projectAction struct{}

func (projectAction) Slice() Slice { return SliceProject }
func (projectAction) sealed()      {}

type selectionAction struct{}

func (selectionAction) Slice() Slice { return SliceSelection }
func (selectionAction) sealed()      {}

type transportAction struct{}

func (transportAction) Slice() Slice { return SliceTransport }
func (transportAction) sealed()      {}

type historyAction struct{}

func (historyAction) Slice() Slice { return SliceHistory }
func (historyAction) sealed()      {}

// Audio slice.

// AudioInitialized records a working audio output.
type AudioInitialized struct {
	audioAction
	SampleRate int `json:"sampleRate"`
}

// AudioInitFailed records an audio initialisation failure.
type AudioInitFailed struct {
	audioAction
	Message string `json:"message"`
}

func (AudioInitialized) Type() string { return "audio/initialized" }
func (AudioInitFailed) Type() string  { return "audio/initFailed" }

// UI slice.

// SetZoom sets the editor zoom, clamped to MinZoom..MaxZoom.
type SetZoom struct {
	uiAction
	Zoom float64 `json:"zoom"`
}

// ToggleMixer opens or closes the mixer panel.
type ToggleMixer struct{ uiAction }

// SetError shows an error message.
type SetError struct {
	uiAction
	Message string `json:"message"`
}

// ClearError hides the error message.
type ClearError struct{ uiAction }

func (SetZoom) Type() string     { return "ui/setZoom" }
func (ToggleMixer) Type() string { return "ui/toggleMixer" }
func (SetError) Type() string    { return "ui/setError" }
func (ClearError) Type() string  { return "ui/clearError" }

// Project slice.

// SetProject replaces the whole project.
type SetProject struct {
	projectAction
	Project music.Project `json:"project"`
}

// SetPattern replaces one drum pattern of a drum track.
type SetPattern struct {
	projectAction
	TrackID string            `json:"trackId"`
	Pattern music.PatternID   `json:"pattern"`
	Content music.DrumPattern `json:"content"`
}

// AddTrack appends a track. Ignored once the project has MaxTracks tracks
// or when the id is already taken.
type AddTrack struct {
	projectAction
	Track music.Track `json:"track"`
}

// RemoveTrack removes a track by id. The last track cannot be removed.
type RemoveTrack struct {
	projectAction
	TrackID string `json:"trackId"`
}

// UpdateTrack replaces the track with the same id.
type UpdateTrack struct {
	projectAction
	Track music.Track `json:"track"`
}

// SetTrackMixer replaces a track's mixer strip.
type SetTrackMixer struct {
	projectAction
	TrackID string      `json:"trackId"`
	Mixer   music.Mixer `json:"mixer"`
}

// ToggleStep flips a drum step in the current pattern: a rest becomes a hit
// with Velocity, a hit becomes a rest.
type ToggleStep struct {
	projectAction
	TrackID  string    `json:"trackId"`
	Pad      music.Pad `json:"pad"`
	Step     int       `json:"step"`
	Velocity int       `json:"velocity"`
}

// SetTitle renames the project.
type SetTitle struct {
	projectAction
	Title string `json:"title"`
}

// SetTempo changes the project tempo.
type SetTempo struct {
	projectAction
	BPM float64 `json:"bpm"`
}

// SetBars changes the project length; drum lanes are resized.
type SetBars struct {
	projectAction
	Bars int `json:"bars"`
}

// SetArrangement replaces the A/B pattern chain.
type SetArrangement struct {
	projectAction
	Arrangement music.Arrangement `json:"arrangement"`
}

// MarkSaved clears the dirty flag after a successful save.
type MarkSaved struct{ projectAction }

func (SetProject) Type() string     { return "project/set" }
func (SetPattern) Type() string     { return "project/setPattern" }
func (AddTrack) Type() string       { return "project/addTrack" }
func (RemoveTrack) Type() string    { return "project/removeTrack" }
func (UpdateTrack) Type() string    { return "project/updateTrack" }
func (SetTrackMixer) Type() string  { return "project/setTrackMixer" }
func (ToggleStep) Type() string     { return "project/toggleStep" }
func (SetTitle) Type() string       { return "project/setTitle" }
func (SetTempo) Type() string       { return "project/setTempo" }
func (SetBars) Type() string        { return "project/setBars" }
func (SetArrangement) Type() string { return "project/setArrangement" }
func (MarkSaved) Type() string      { return "project/markSaved" }

// Selection slice.

// SelectTrack focuses a track.
type SelectTrack struct {
	selectionAction
	TrackID string `json:"trackId"`
}

// SelectStep focuses a step of a pad lane.
type SelectStep struct {
	selectionAction
	TrackID string    `json:"trackId"`
	Pad     music.Pad `json:"pad"`
	Step    int       `json:"step"`
}

// ClearSelection drops the focus.
type ClearSelection struct{ selectionAction }

func (SelectTrack) Type() string    { return "selection/track" }
func (SelectStep) Type() string     { return "selection/step" }
func (ClearSelection) Type() string { return "selection/clear" }

// Transport slice.

// SetPlaying mirrors the transport play state.
type SetPlaying struct {
	transportAction
	Playing bool `json:"playing"`
}

// SetRecording toggles record arm.
type SetRecording struct {
	transportAction
	Recording bool `json:"recording"`
}

// SetBPM mirrors the transport tempo, clamped to the tempo range.
type SetBPM struct {
	transportAction
	BPM float64 `json:"bpm"`
}

// SetSwing mirrors the transport swing, clamped to 0..100.
type SetSwing struct {
	transportAction
	Swing float64 `json:"swing"`
}

// SetPosition mirrors the playhead.
type SetPosition struct {
	transportAction
	Position music.Position `json:"position"`
}

// SetLoop sets the loop window. A window whose end is not after its start
// is stored disabled.
type SetLoop struct {
	transportAction
	Loop LoopWindow `json:"loop"`
}

func (SetPlaying) Type() string   { return "transport/setPlaying" }
func (SetRecording) Type() string { return "transport/setRecording" }
func (SetBPM) Type() string       { return "transport/setBPM" }
func (SetSwing) Type() string     { return "transport/setSwing" }
func (SetPosition) Type() string  { return "transport/setPosition" }
func (SetLoop) Type() string      { return "transport/setLoop" }

// History slice.

// Undo restores the previous project.
type Undo struct{ historyAction }

// Redo re-applies the last undone project.
type Redo struct{ historyAction }

func (Undo) Type() string { return "history/undo" }
func (Redo) Type() string { return "history/redo" }

// Undoable reports whether a captures history before it is applied.
func Undoable(a Action) bool {
	switch a.(type) {
	case SetProject, SetPattern, AddTrack, RemoveTrack, UpdateTrack,
		SetTrackMixer, ToggleStep, SetTitle, SetTempo, SetBars, SetArrangement:
		return true
	default:
		return false
	}
}
