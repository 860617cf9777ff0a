package audio

import "time"

// DefaultSampleRate is the output rate of both sinks.
const DefaultSampleRate = 44100

// Sink plays voices at absolute times on its own clock. Now makes every
// Sink usable as a transport clock.
type Sink interface {
	SampleRate() int
	Now() time.Duration
	Play(v Voice)
	Close() error
}
