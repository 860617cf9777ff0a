// Package audio is the output side of playback: decoded sample buffers,
// a voice mixer, and the sinks that consume it.
//
// A Sink plays Voices at absolute times on its own clock. OtoSink renders to
// the system audio device through oto; Recorder renders offline into memory
// and can write the result as WAV. Both share the same mixer, so a project
// rendered by Recorder sounds the same as one played live.
//
// No synthesis happens here. Voices are pre-recorded samples scaled by gain,
// placed by pan and optionally resampled for pitch.
package audio
