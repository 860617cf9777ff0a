package transport

import (
	"math"
	"time"

	"github.com/roach88/beatlab/internal/music"
)

// timeline maps clock time to ticks for one stretch of playback. At t0 the
// playhead is at k0 and the tempo is b0; the tempo moves linearly to b1
// over ramp and stays at b1 afterwards.
//
// Both directions of the mapping integrate the ramp exactly, so a tick's
// time does not depend on how often it is sampled.
type timeline struct {
	t0   time.Duration
	k0   float64
	b0   float64
	b1   float64
	ramp time.Duration
}

// steady returns a constant-tempo timeline anchored at (t, k).
func steady(t time.Duration, k, bpm float64) timeline {
	return timeline{t0: t, k0: k, b0: bpm, b1: bpm}
}

// rate is the tick rate in ticks per second at bpm.
func rate(bpm float64) float64 {
	return bpm * music.PPQ / 60
}

func (tl timeline) ramping() bool {
	return tl.ramp > 0 && tl.b0 != tl.b1
}

// rampTicks is the number of ticks covered by the ramp.
func (tl timeline) rampTicks() float64 {
	if !tl.ramping() {
		return 0
	}
	return (rate(tl.b0) + rate(tl.b1)) / 2 * tl.ramp.Seconds()
}

// bpmAt returns the tempo at clock time t.
func (tl timeline) bpmAt(t time.Duration) float64 {
	if !tl.ramping() || t >= tl.t0+tl.ramp {
		return tl.b1
	}
	if t <= tl.t0 {
		return tl.b0
	}
	f := float64(t-tl.t0) / float64(tl.ramp)
	return tl.b0 + (tl.b1-tl.b0)*f
}

// ticksAt returns the (fractional) tick at clock time t. Times before t0
// extrapolate at the starting tempo.
func (tl timeline) ticksAt(t time.Duration) float64 {
	if t <= tl.t0 {
		return tl.k0 - rate(tl.b0)*(tl.t0-t).Seconds()
	}
	dt := (t - tl.t0).Seconds()
	if !tl.ramping() {
		return tl.k0 + rate(tl.b1)*dt
	}
	r := tl.ramp.Seconds()
	if dt >= r {
		return tl.k0 + tl.rampTicks() + rate(tl.b1)*(dt-r)
	}
	r0, r1 := rate(tl.b0), rate(tl.b1)
	return tl.k0 + r0*dt + (r1-r0)*dt*dt/(2*r)
}

// timeAt returns the clock time at which the playhead reaches tick k.
func (tl timeline) timeAt(k float64) time.Duration {
	dk := k - tl.k0
	if dk <= 0 {
		return tl.t0 - seconds(-dk/rate(tl.b0))
	}
	if !tl.ramping() {
		return tl.t0 + seconds(dk/rate(tl.b1))
	}
	rk := tl.rampTicks()
	if dk >= rk {
		return tl.t0 + tl.ramp + seconds((dk-rk)/rate(tl.b1))
	}
	// Solve a*dt^2 + b*dt - dk = 0 in the numerically stable form.
	r0, r1 := rate(tl.b0), rate(tl.b1)
	a := (r1 - r0) / (2 * tl.ramp.Seconds())
	b := r0
	dt := 2 * dk / (b + math.Sqrt(b*b+4*a*dk))
	return tl.t0 + seconds(dt)
}

// rebase re-anchors the timeline at clock time t with the playhead at k,
// keeping whatever is left of the ramp.
func (tl timeline) rebase(t time.Duration, k float64) timeline {
	next := timeline{t0: t, k0: k, b0: tl.bpmAt(t), b1: tl.b1}
	if end := tl.t0 + tl.ramp; tl.ramping() && end > t {
		next.ramp = end - t
	}
	return next
}

// retarget re-anchors at t and starts a ramp to bpm lasting over.
func (tl timeline) retarget(t time.Duration, bpm float64, over time.Duration) timeline {
	next := timeline{t0: t, k0: tl.ticksAt(t), b0: tl.bpmAt(t), b1: bpm}
	if over > 0 {
		next.ramp = over
	} else {
		next.b0 = bpm
	}
	return next
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
