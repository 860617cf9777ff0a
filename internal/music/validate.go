package music

import (
	"fmt"
	"math"
	"strings"
)

// ViolationCode categorises document violations.
type ViolationCode string

const (
	CodeVersion        ViolationCode = "E201" // unsupported document version
	CodeTitle          ViolationCode = "E202" // missing title
	CodeTempo          ViolationCode = "E203" // tempo outside 60..200
	CodeMeter          ViolationCode = "E204" // time signature other than 4/4
	CodeBars           ViolationCode = "E205" // bar count outside range
	CodeSwing          ViolationCode = "E206" // swing outside 0..100
	CodeTrackCount     ViolationCode = "E207" // track count outside 1..16
	CodeTrackID        ViolationCode = "E208" // empty or duplicate track id
	CodeTrackKind      ViolationCode = "E209" // payload does not match kind
	CodeMixer          ViolationCode = "E210" // mixer value out of range
	CodePad            ViolationCode = "E211" // unknown pad name
	CodeStepCount      ViolationCode = "E212" // lane length != bars*16
	CodeVelocity       ViolationCode = "E213" // velocity outside 1..127
	CodeNote           ViolationCode = "E214" // note outside grid or MIDI range
	CodeArrangement    ViolationCode = "E215" // bad pattern chain
	CodeAudioPlacement ViolationCode = "E216" // audio clip placement
)

// Violation describes one way a project breaks the document schema.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Field   string        `json:"field"`
	Message string        `json:"message"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s: %s", v.Code, v.Field, v.Message)
}

// Validate returns every violation in p. A nil result means p is valid.
func Validate(p Project) []Violation {
	var out []Violation
	add := func(code ViolationCode, field, format string, args ...any) {
		out = append(out, Violation{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.Version < 1 || p.Version > SchemaVersion {
		add(CodeVersion, "version", "unsupported version %d", p.Version)
	}
	if strings.TrimSpace(p.Title) == "" {
		add(CodeTitle, "title", "title is required")
	}
	if math.IsNaN(p.Tempo) || p.Tempo < MinTempo || p.Tempo > MaxTempo {
		add(CodeTempo, "tempo", "tempo %v outside %v..%v", p.Tempo, MinTempo, MaxTempo)
	}
	if p.TimeSignature != CommonTime {
		add(CodeMeter, "timeSignature", "only 4/4 is supported, got %d/%d",
			p.TimeSignature.Numerator, p.TimeSignature.Denominator)
	}
	if p.Bars < MinBars || p.Bars > MaxBars {
		add(CodeBars, "bars", "bars %d outside %d..%d", p.Bars, MinBars, MaxBars)
	}
	if math.IsNaN(p.Swing) || p.Swing < 0 || p.Swing > MaxSwing {
		add(CodeSwing, "swing", "swing %v outside 0..%v", p.Swing, MaxSwing)
	}
	if n := len(p.Tracks); n < MinTracks || n > MaxTracks {
		add(CodeTrackCount, "tracks", "%d tracks, want %d..%d", n, MinTracks, MaxTracks)
	}

	if len(p.Arrangement.Chain) == 0 {
		add(CodeArrangement, "arrangement.chain", "chain is empty")
	}
	for i, id := range p.Arrangement.Chain {
		if !id.Valid() {
			add(CodeArrangement, fmt.Sprintf("arrangement.chain[%d]", i), "unknown pattern %q", id)
		}
	}
	if !p.Arrangement.Current.Valid() {
		add(CodeArrangement, "arrangement.current", "unknown pattern %q", p.Arrangement.Current)
	}

	steps := p.StepCount()
	seen := make(map[string]bool, len(p.Tracks))
	for i, t := range p.Tracks {
		field := fmt.Sprintf("tracks[%d]", i)
		if t.ID == "" || seen[t.ID] {
			add(CodeTrackID, field+".id", "track id %q is empty or duplicated", t.ID)
		}
		seen[t.ID] = true

		if !mixerInRange(t.Mixer) {
			add(CodeMixer, field+".mixer", "mixer values out of range")
		}
		if !payloadMatches(t) {
			add(CodeTrackKind, field+".type", "payload does not match kind %q", t.Kind)
			continue
		}

		switch t.Kind {
		case KindDrum:
			for _, id := range t.Drum.PatternIDs() {
				pat := t.Drum.Patterns[id]
				pfield := fmt.Sprintf("%s.drum.patterns.%s", field, id)
				if !id.Valid() {
					add(CodeArrangement, pfield, "unknown pattern %q", id)
				}
				for j, lane := range pat.Lanes {
					lfield := fmt.Sprintf("%s.lanes[%d]", pfield, j)
					if !lane.Pad.Valid() {
						add(CodePad, lfield+".pad", "unknown pad %q", lane.Pad)
					}
					if len(lane.Steps) != steps {
						add(CodeStepCount, lfield+".steps", "%d steps, want %d", len(lane.Steps), steps)
					}
					for k, v := range lane.Steps {
						if v != 0 && (v < MinVelocity || v > MaxVelocity) {
							add(CodeVelocity, fmt.Sprintf("%s.steps[%d]", lfield, k), "velocity %d outside 1..127", v)
						}
					}
				}
			}
		case KindKeys:
			for j, n := range t.Keys.Notes {
				nfield := fmt.Sprintf("%s.keys.notes[%d]", field, j)
				if n.Step < 0 || n.Step >= steps {
					add(CodeNote, nfield+".step", "step %d outside 0..%d", n.Step, steps-1)
				}
				if n.Pitch < 0 || n.Pitch > 127 {
					add(CodeNote, nfield+".pitch", "pitch %d outside 0..127", n.Pitch)
				}
				if n.Velocity < MinVelocity || n.Velocity > MaxVelocity {
					add(CodeVelocity, nfield+".velocity", "velocity %d outside 1..127", n.Velocity)
				}
				if n.Length < 1 {
					add(CodeNote, nfield+".length", "length %d must be positive", n.Length)
				}
			}
		case KindAudio:
			if t.Audio.StartStep < 0 || t.Audio.StartStep >= steps {
				add(CodeAudioPlacement, field+".audio.startStep", "start step %d outside grid", t.Audio.StartStep)
			}
		}
	}
	return out
}

func payloadMatches(t Track) bool {
	switch t.Kind {
	case KindDrum:
		return t.Drum != nil && t.Keys == nil && t.Audio == nil
	case KindKeys:
		return t.Keys != nil && t.Drum == nil && t.Audio == nil
	case KindAudio:
		return t.Audio != nil && t.Drum == nil && t.Keys == nil
	default:
		return false
	}
}

func mixerInRange(m Mixer) bool {
	return in(m.Volume, 0, 1) && in(m.Pan, -1, 1) && in(m.SendA, 0, 1) && in(m.SendB, 0, 1)
}

func in(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// Repair returns a copy of p that passes Validate, plus one warning per fix.
// Repair never fails: anything it cannot interpret is replaced with defaults.
func Repair(p Project) (Project, []string) {
	r := p.Clone()
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if r.Version < 1 || r.Version > SchemaVersion {
		warn("version %d reset to %d", r.Version, SchemaVersion)
		r.Version = SchemaVersion
	}
	if strings.TrimSpace(r.Title) == "" {
		warn("empty title replaced")
		r.Title = "Untitled"
	}
	if math.IsNaN(r.Tempo) {
		warn("tempo NaN reset to %v", DefaultTempo)
		r.Tempo = DefaultTempo
	} else if c := Clamp(r.Tempo, MinTempo, MaxTempo); c != r.Tempo {
		warn("tempo %v clamped to %v", r.Tempo, c)
		r.Tempo = c
	}
	if r.TimeSignature != CommonTime {
		warn("time signature %d/%d forced to 4/4", r.TimeSignature.Numerator, r.TimeSignature.Denominator)
		r.TimeSignature = CommonTime
	}
	if c := ClampInt(r.Bars, MinBars, MaxBars); c != r.Bars {
		warn("bars %d clamped to %d", r.Bars, c)
		r.Bars = c
	}
	if math.IsNaN(r.Swing) {
		r.Swing = 0
		warn("swing NaN reset to 0")
	} else if c := Clamp(r.Swing, 0, MaxSwing); c != r.Swing {
		warn("swing %v clamped to %v", r.Swing, c)
		r.Swing = c
	}

	r.Arrangement = repairArrangement(r.Arrangement, warn)

	tracks := make([]Track, 0, len(r.Tracks))
	seen := make(map[string]bool, len(r.Tracks))
	for i, t := range r.Tracks {
		if t.Kind != KindDrum && t.Kind != KindKeys && t.Kind != KindAudio {
			warn("track %d dropped: unknown kind %q", i, t.Kind)
			continue
		}
		if t.ID == "" || seen[t.ID] {
			id := fmt.Sprintf("track-%d", i+1)
			for seen[id] {
				id += "x"
			}
			warn("track %d id %q replaced with %q", i, t.ID, id)
			t.ID = id
		}
		seen[t.ID] = true
		t.Mixer = repairMixer(t.Mixer, i, warn)
		t = repairPayload(t, i, r.StepCount(), warn)
		tracks = append(tracks, t)
	}
	if len(tracks) > MaxTracks {
		warn("%d tracks truncated to %d", len(tracks), MaxTracks)
		tracks = tracks[:MaxTracks]
	}
	if len(tracks) == 0 {
		warn("project had no tracks; added an empty drum track")
		tracks = append(tracks, NewDrumTrack("track-1", "Drums", r.Bars))
	}
	r.Tracks = tracks

	return Normalize(r), warnings
}

func repairArrangement(a Arrangement, warn func(string, ...any)) Arrangement {
	chain := make([]PatternID, 0, len(a.Chain))
	for _, id := range a.Chain {
		if up := PatternID(strings.ToUpper(string(id))); up.Valid() {
			chain = append(chain, up)
		} else {
			warn("arrangement pattern %q dropped", id)
		}
	}
	if len(chain) == 0 {
		chain = []PatternID{PatternA}
		if len(a.Chain) == 0 {
			warn("empty arrangement chain reset to [A]")
		}
	}
	cur := PatternID(strings.ToUpper(string(a.Current)))
	if !cur.Valid() {
		warn("current pattern %q reset to %s", a.Current, chain[0])
		cur = chain[0]
	}
	return Arrangement{Chain: chain, Current: cur}
}

func repairMixer(m Mixer, i int, warn func(string, ...any)) Mixer {
	if mixerInRange(m) {
		return m
	}
	warn("track %d mixer clamped", i)
	fix := func(v, lo, hi, def float64) float64 {
		if math.IsNaN(v) {
			return def
		}
		return Clamp(v, lo, hi)
	}
	m.Volume = fix(m.Volume, 0, 1, DefaultMixer.Volume)
	m.Pan = fix(m.Pan, -1, 1, 0)
	m.SendA = fix(m.SendA, 0, 1, 0)
	m.SendB = fix(m.SendB, 0, 1, 0)
	return m
}

func repairPayload(t Track, i, steps int, warn func(string, ...any)) Track {
	if !payloadMatches(t) {
		warn("track %d payload rebuilt for kind %q", i, t.Kind)
		switch t.Kind {
		case KindDrum:
			t.Keys, t.Audio = nil, nil
			if t.Drum == nil {
				t.Drum = &DrumTrack{Patterns: map[PatternID]DrumPattern{}}
			}
		case KindKeys:
			t.Drum, t.Audio = nil, nil
			if t.Keys == nil {
				t.Keys = &KeysTrack{Notes: []Note{}}
			}
		case KindAudio:
			t.Drum, t.Keys = nil, nil
			if t.Audio == nil {
				t.Audio = &AudioTrack{Gain: 1}
			}
		}
	}

	switch t.Kind {
	case KindDrum:
		if t.Drum.Patterns == nil {
			t.Drum.Patterns = map[PatternID]DrumPattern{}
		}
		for _, id := range t.Drum.PatternIDs() {
			pat := t.Drum.Patterns[id]
			if !id.Valid() {
				warn("track %d pattern %q dropped", i, id)
				delete(t.Drum.Patterns, id)
				continue
			}
			for j := range pat.Lanes {
				lane := &pat.Lanes[j]
				if !lane.Pad.Valid() {
					fixed := NearestPad(string(lane.Pad))
					warn("track %d lane %d pad %q replaced with %s", i, j, lane.Pad, fixed)
					lane.Pad = fixed
				}
				for k, v := range lane.Steps {
					if v != 0 && (v < MinVelocity || v > MaxVelocity) {
						c := ClampInt(v, MinVelocity, MaxVelocity)
						warn("track %d lane %d step %d velocity %d clamped to %d", i, j, k, v, c)
						lane.Steps[k] = c
					}
				}
			}
		}
		if len(t.Drum.Patterns) == 0 {
			fresh := NewDrumTrack(t.ID, t.Name, steps/StepsPerBar)
			t.Drum.Patterns = fresh.Drum.Patterns
		}
	case KindKeys:
		notes := t.Keys.Notes[:0:0]
		for j, n := range t.Keys.Notes {
			orig := n
			n.Step = ClampInt(n.Step, 0, steps-1)
			n.Pitch = ClampInt(n.Pitch, 0, 127)
			n.Velocity = ClampInt(n.Velocity, MinVelocity, MaxVelocity)
			if n.Length < 1 {
				n.Length = 1
			}
			if n != orig {
				warn("track %d note %d clamped", i, j)
			}
			notes = append(notes, n)
		}
		t.Keys.Notes = notes
	case KindAudio:
		if c := ClampInt(t.Audio.StartStep, 0, steps-1); c != t.Audio.StartStep {
			warn("track %d audio start step %d clamped to %d", i, t.Audio.StartStep, c)
			t.Audio.StartStep = c
		}
	}
	return t
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
