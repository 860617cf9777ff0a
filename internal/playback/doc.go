// Package playback turns a project into triggered sample voices.
//
// DrumMachine and Instrument are fire-and-forget: a trigger for a voice with
// no loaded sample logs a warning and returns false. Velocity 1..127 maps to
// gain as (v/127)^2. Every trigger is recorded in an active-voice set that
// forgets it after VoiceDecay, which is what UI meters read.
//
// Sequencer binds a project to a transport with one repeating sixteenth-note
// event; Render drives the same machinery offline into an audio.Recorder.
package playback
