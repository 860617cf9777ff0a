// Package transport converts musical time to clock time and drives playback.
//
// The transport is a state machine (stopped, playing, paused) over a
// continuous time base read from an injected Clock. The playhead is kept in
// ticks at music.PPQ resolution and exposed as bar/beat/sixteenth.
//
// SCHEDULING:
//
// Events are scheduled in ticks, never in clock time. Advance is the
// look-ahead pump: it fires every event the playhead will reach before
// Now()+lookahead, passing each callback the exact clock time at which the
// event should sound. Because the tick-to-time mapping is evaluated when an
// event fires, a tempo change re-times every pending event.
//
// Tempo changes ramp linearly (50ms by default) and the mapping integrates
// the ramp exactly. Swing delays events on the 2nd and 4th sixteenth of each
// beat by swing% of a third of a sixteenth.
//
// Cancellation with Clear is best-effort: an event already handed to its
// callback cannot be recalled.
package transport
