package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// actionTypes maps wire names to zero values of every action.
var actionTypes = map[string]func() Action{}

func register(ctors ...func() Action) {
	for _, ctor := range ctors {
		actionTypes[ctor().Type()] = ctor
	}
}

func init() {
	register(
		func() Action { return &AudioInitialized{} },
		func() Action { return &AudioInitFailed{} },
		func() Action { return &SetZoom{} },
		func() Action { return &ToggleMixer{} },
		func() Action { return &SetError{} },
		func() Action { return &ClearError{} },
		func() Action { return &SetProject{} },
		func() Action { return &SetPattern{} },
		func() Action { return &AddTrack{} },
		func() Action { return &RemoveTrack{} },
		func() Action { return &UpdateTrack{} },
		func() Action { return &SetTrackMixer{} },
		func() Action { return &ToggleStep{} },
		func() Action { return &SetTitle{} },
		func() Action { return &SetTempo{} },
		func() Action { return &SetBars{} },
		func() Action { return &SetArrangement{} },
		func() Action { return &MarkSaved{} },
		func() Action { return &SelectTrack{} },
		func() Action { return &SelectStep{} },
		func() Action { return &ClearSelection{} },
		func() Action { return &SetPlaying{} },
		func() Action { return &SetRecording{} },
		func() Action { return &SetBPM{} },
		func() Action { return &SetSwing{} },
		func() Action { return &SetPosition{} },
		func() Action { return &SetLoop{} },
		func() Action { return &Undo{} },
		func() Action { return &Redo{} },
	)
}

// ActionTypes lists every action wire name, sorted.
func ActionTypes() []string {
	names := make([]string, 0, len(actionTypes))
	for name := range actionTypes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DecodeAction builds the action named typ from its JSON payload. An empty
// payload leaves every field at its zero value. Unknown payload fields are
// rejected.
func DecodeAction(typ string, payload []byte) (Action, error) {
	ctor, ok := actionTypes[typ]
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", typ)
	}
	ptr := ctor()
	if len(bytes.TrimSpace(payload)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(ptr); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
	}
	return deref(ptr), nil
}

// deref returns the action value behind ptr. The reducer switches on value
// types, so pointers must never reach Dispatch.
func deref(ptr Action) Action {
	switch a := ptr.(type) {
	case *AudioInitialized:
		return *a
	case *AudioInitFailed:
		return *a
	case *SetZoom:
		return *a
	case *ToggleMixer:
		return *a
	case *SetError:
		return *a
	case *ClearError:
		return *a
	case *SetProject:
		return *a
	case *SetPattern:
		return *a
	case *AddTrack:
		return *a
	case *RemoveTrack:
		return *a
	case *UpdateTrack:
		return *a
	case *SetTrackMixer:
		return *a
	case *ToggleStep:
		return *a
	case *SetTitle:
		return *a
	case *SetTempo:
		return *a
	case *SetBars:
		return *a
	case *SetArrangement:
		return *a
	case *MarkSaved:
		return *a
	case *SelectTrack:
		return *a
	case *SelectStep:
		return *a
	case *ClearSelection:
		return *a
	case *SetPlaying:
		return *a
	case *SetRecording:
		return *a
	case *SetBPM:
		return *a
	case *SetSwing:
		return *a
	case *SetPosition:
		return *a
	case *SetLoop:
		return *a
	case *Undo:
		return *a
	case *Redo:
		return *a
	}
	return ptr
}
