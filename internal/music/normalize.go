package music

import "slices"

// Normalize returns a copy of p whose grid content matches its bar count.
// Bars is first clamped to MinBars..MaxBars, then every drum lane is padded or truncated to Bars*StepsPerBar steps, keys
// notes starting past the grid are dropped, and audio clips starting past
// the grid are pulled back to the last step.
//
// Normalize must run after any project-level mutation that can change Bars
// or replace track content.
func Normalize(p Project) Project {
	n := p.Clone()
	n.Bars = ClampInt(n.Bars, MinBars, MaxBars)
	steps := n.StepCount()
	for i := range n.Tracks {
		t := &n.Tracks[i]
		switch {
		case t.Drum != nil:
			for id, pat := range t.Drum.Patterns {
				for j := range pat.Lanes {
					pat.Lanes[j].Steps = resizeSteps(pat.Lanes[j].Steps, steps)
				}
				t.Drum.Patterns[id] = pat
			}
		case t.Keys != nil:
			t.Keys.Notes = slices.DeleteFunc(t.Keys.Notes, func(note Note) bool {
				return note.Step >= steps
			})
		case t.Audio != nil:
			if t.Audio.StartStep >= steps {
				t.Audio.StartStep = steps - 1
			}
		}
	}
	return n
}

func resizeSteps(in []int, n int) []int {
	if len(in) == n {
		return in
	}
	out := make([]int, n)
	copy(out, in)
	return out
}

// PatternIDs returns the pattern ids of a drum track in A, B order.
func (d *DrumTrack) PatternIDs() []PatternID {
	if d == nil {
		return nil
	}
	ids := make([]PatternID, 0, len(d.Patterns))
	for id := range d.Patterns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// StepCountsConsistent reports whether every drum lane in p has exactly
// Bars*StepsPerBar steps.
func StepCountsConsistent(p Project) bool {
	steps := p.StepCount()
	for _, t := range p.Tracks {
		if t.Drum == nil {
			continue
		}
		for _, pat := range t.Drum.Patterns {
			for _, lane := range pat.Lanes {
				if len(lane.Steps) != steps {
					return false
				}
			}
		}
	}
	return true
}
