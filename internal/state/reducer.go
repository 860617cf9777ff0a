package state

import (
	"slices"
	"strings"

	"github.com/roach88/beatlab/internal/music"
)

// Reduce applies a to s and returns the new state. It is total: it never
// panics, and an action it does not recognise returns s unchanged. The input
// state is never modified.
func Reduce(s AppState, a Action) AppState {
	return reduce(s, a, true)
}

// reduce is the single implementation behind Reduce and Store.Dispatch.
// When capture is false, undoable actions are applied without touching the
// history stacks.
func reduce(s AppState, a Action, capture bool) AppState {
	if a == nil {
		return s
	}
	switch a.(type) {
	case Undo:
		return undo(s)
	case Redo:
		return redo(s)
	case MarkSaved:
		s.IsDirty = false
		return s
	}

	switch a.Slice() {
	case SliceProject:
		next, changed := applyProject(s.Project, a)
		if !changed {
			return s
		}
		return withHistory(s, next, capture && Undoable(a))
	case SliceTransport:
		s.Transport = reduceTransport(s.Transport, a)
	case SliceSelection:
		s.Selection = reduceSelection(s.Selection, a)
	case SliceUI:
		s.UI = reduceUI(s.UI, a)
	case SliceAudio:
		s.Audio = reduceAudio(s.Audio, a)
	}
	return s
}

// withHistory commits next as the current project. With capture set, the
// previous project is pushed onto the undo stack and the redo stack is
// cleared.
func withHistory(s AppState, next music.Project, capture bool) AppState {
	if capture {
		s.Undo = push(s.Undo, s.Project)
		s.Redo = nil
	}
	s.Project = next
	s.IsDirty = true
	return s
}

func undo(s AppState) AppState {
	n := len(s.Undo)
	if n == 0 {
		return s
	}
	prev := s.Undo[n-1]
	s.Undo = s.Undo[:n-1 : n-1]
	s.Redo = push(s.Redo, s.Project)
	s.Project = prev
	s.IsDirty = true
	return s
}

func redo(s AppState) AppState {
	n := len(s.Redo)
	if n == 0 {
		return s
	}
	next := s.Redo[n-1]
	s.Redo = s.Redo[:n-1 : n-1]
	s.Undo = push(s.Undo, s.Project)
	s.Project = next
	s.IsDirty = true
	return s
}

// push returns a new stack with p on top, dropping the oldest entries beyond
// HistoryLimit. The input stack is not modified.
func push(stack []music.Project, p music.Project) []music.Project {
	if over := len(stack) + 1 - HistoryLimit; over > 0 {
		stack = stack[over:]
	}
	out := make([]music.Project, 0, len(stack)+1)
	out = append(out, stack...)
	return append(out, p)
}

// applyProject computes the project after a. The bool is false when the
// action is a no-op (unknown track, out-of-range step, same value), in which
// case no history is recorded.
func applyProject(p music.Project, a Action) (music.Project, bool) {
	switch a := a.(type) {
	case SetProject:
		return music.Normalize(a.Project), true

	case SetPattern:
		idx := p.TrackIndex(a.TrackID)
		if idx < 0 || p.Tracks[idx].Drum == nil || !a.Pattern.Valid() {
			return p, false
		}
		n := p.Clone()
		d := n.Tracks[idx].Drum
		if d.Patterns == nil {
			d.Patterns = make(map[music.PatternID]music.DrumPattern)
		}
		d.Patterns[a.Pattern] = a.Content.Clone()
		return music.Normalize(n), true

	case AddTrack:
		if a.Track.ID == "" || len(p.Tracks) >= music.MaxTracks || p.TrackIndex(a.Track.ID) >= 0 {
			return p, false
		}
		n := p.Clone()
		n.Tracks = append(n.Tracks, a.Track.Clone())
		return music.Normalize(n), true

	case RemoveTrack:
		idx := p.TrackIndex(a.TrackID)
		if idx < 0 || len(p.Tracks) <= music.MinTracks {
			return p, false
		}
		n := p.Clone()
		n.Tracks = slices.Delete(n.Tracks, idx, idx+1)
		return n, true

	case UpdateTrack:
		idx := p.TrackIndex(a.Track.ID)
		if idx < 0 {
			return p, false
		}
		n := p.Clone()
		n.Tracks[idx] = a.Track.Clone()
		return music.Normalize(n), true

	case SetTrackMixer:
		idx := p.TrackIndex(a.TrackID)
		if idx < 0 {
			return p, false
		}
		m := a.Mixer
		m.Volume = music.Clamp(m.Volume, 0, 1)
		m.Pan = music.Clamp(m.Pan, -1, 1)
		m.SendA = music.Clamp(m.SendA, 0, 1)
		m.SendB = music.Clamp(m.SendB, 0, 1)
		if p.Tracks[idx].Mixer == m {
			return p, false
		}
		n := p.Clone()
		n.Tracks[idx].Mixer = m
		return n, true

	case ToggleStep:
		return toggleStep(p, a)

	case SetTitle:
		title := strings.TrimSpace(a.Title)
		if title == "" || title == p.Title {
			return p, false
		}
		n := p.Clone()
		n.Title = title
		return n, true

	case SetTempo:
		bpm := music.Clamp(a.BPM, music.MinTempo, music.MaxTempo)
		if bpm == p.Tempo {
			return p, false
		}
		n := p.Clone()
		n.Tempo = bpm
		return n, true

	case SetBars:
		bars := music.ClampInt(a.Bars, music.MinBars, music.MaxBars)
		if bars == p.Bars {
			return p, false
		}
		n := p.Clone()
		n.Bars = bars
		return music.Normalize(n), true

	case SetArrangement:
		if len(a.Arrangement.Chain) == 0 || !a.Arrangement.Current.Valid() {
			return p, false
		}
		for _, id := range a.Arrangement.Chain {
			if !id.Valid() {
				return p, false
			}
		}
		n := p.Clone()
		n.Arrangement = music.Arrangement{
			Chain:   slices.Clone(a.Arrangement.Chain),
			Current: a.Arrangement.Current,
		}
		return n, true
	}
	return p, false
}

// DefaultVelocity is used by ToggleStep when the action carries none.
const DefaultVelocity = 100

func toggleStep(p music.Project, a ToggleStep) (music.Project, bool) {
	idx := p.TrackIndex(a.TrackID)
	if idx < 0 || p.Tracks[idx].Drum == nil || !a.Pad.Valid() {
		return p, false
	}
	if a.Step < 0 || a.Step >= p.StepCount() {
		return p, false
	}
	pid := p.Arrangement.Current
	if !pid.Valid() {
		pid = music.PatternA
	}

	n := p.Clone()
	d := n.Tracks[idx].Drum
	if d.Patterns == nil {
		d.Patterns = make(map[music.PatternID]music.DrumPattern)
	}
	pat := d.Patterns[pid]
	lane := slices.IndexFunc(pat.Lanes, func(l music.Lane) bool { return l.Pad == a.Pad })
	if lane < 0 {
		pat.Lanes = append(pat.Lanes, music.Lane{Pad: a.Pad, Steps: make([]int, n.StepCount())})
		lane = len(pat.Lanes) - 1
	}
	steps := pat.Lanes[lane].Steps
	if a.Step >= len(steps) {
		steps = append(steps, make([]int, n.StepCount()-len(steps))...)
	}
	if steps[a.Step] > 0 {
		steps[a.Step] = 0
	} else {
		v := a.Velocity
		if v == 0 {
			v = DefaultVelocity
		}
		steps[a.Step] = music.ClampInt(v, music.MinVelocity, music.MaxVelocity)
	}
	pat.Lanes[lane].Steps = steps
	d.Patterns[pid] = pat
	return music.Normalize(n), true
}

func reduceTransport(t TransportState, a Action) TransportState {
	switch a := a.(type) {
	case SetPlaying:
		t.Playing = a.Playing
	case SetRecording:
		t.Recording = a.Recording
	case SetBPM:
		t.BPM = music.Clamp(a.BPM, music.MinTempo, music.MaxTempo)
	case SetSwing:
		t.Swing = music.Clamp(a.Swing, 0, music.MaxSwing)
	case SetPosition:
		t.Position = music.PositionAt(a.Position.Ticks(t.TimeSignature), t.TimeSignature)
	case SetLoop:
		l := a.Loop
		if l.End.Ticks(t.TimeSignature) <= l.Start.Ticks(t.TimeSignature) {
			l.Enabled = false
		}
		t.Loop = l
	}
	return t
}

func reduceSelection(sel Selection, a Action) Selection {
	switch a := a.(type) {
	case SelectTrack:
		return Selection{TrackID: a.TrackID, Step: -1}
	case SelectStep:
		step := a.Step
		if step < 0 {
			step = -1
		}
		return Selection{TrackID: a.TrackID, Pad: a.Pad, Step: step}
	case ClearSelection:
		return Selection{Step: -1}
	}
	return sel
}

func reduceUI(ui UIState, a Action) UIState {
	switch a := a.(type) {
	case SetZoom:
		ui.Zoom = music.Clamp(a.Zoom, MinZoom, MaxZoom)
	case ToggleMixer:
		ui.MixerOpen = !ui.MixerOpen
	case SetError:
		ui.Error = a.Message
	case ClearError:
		ui.Error = ""
	}
	return ui
}

func reduceAudio(au AudioState, a Action) AudioState {
	switch a := a.(type) {
	case AudioInitialized:
		return AudioState{Ready: true, SampleRate: a.SampleRate}
	case AudioInitFailed:
		return AudioState{Error: a.Message}
	}
	return au
}
