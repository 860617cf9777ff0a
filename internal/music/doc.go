// Package music defines the beatlab document model: projects, tracks and
// the musical time grid they are written on.
//
// This package contains value types and pure functions only. All other
// internal packages import music; music imports nothing internal.
//
// Key design constraints:
//   - Projects and tracks are values. Every mutation helper returns a copy;
//     slices and maps are never shared between the input and the result.
//   - The step grid is fixed at one sixteenth note (StepsPerBar = 16).
//   - A drum pattern always has exactly Bars * StepsPerBar steps per lane.
//   - Musical positions are 1-based (bar 1, beat 1, sixteenth 1 is tick 0).
package music
