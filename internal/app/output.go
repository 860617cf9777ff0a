package app

import (
	"sync"
	"time"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/transport"
)

// output is the sink the transport and instruments are built against. Until
// a device is attached it keeps time from a fallback clock and drops voices.
// Attaching a device shifts its clock so that Now never jumps.
//
// Thread-safety: all methods are safe for concurrent use.
type output struct {
	mu       sync.RWMutex
	rate     int
	fallback transport.Clock
	sink     audio.Sink
	offset   time.Duration
}

func newOutput(rate int, fallback transport.Clock) *output {
	return &output{rate: rate, fallback: fallback}
}

func (o *output) SampleRate() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.sink != nil {
		return o.sink.SampleRate()
	}
	return o.rate
}

// Now returns session time: the fallback clock, or the device clock minus
// the offset recorded when it was attached.
func (o *output) Now() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.sink != nil {
		return o.sink.Now() - o.offset
	}
	return o.fallback.Now()
}

func (o *output) Play(v audio.Voice) {
	o.mu.RLock()
	sink, offset := o.sink, o.offset
	o.mu.RUnlock()
	if sink == nil {
		return
	}
	v.At += offset
	sink.Play(v)
}

// attach switches playback to sink. It reports false if a device is
// already attached.
func (o *output) attach(sink audio.Sink) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sink != nil {
		return false
	}
	o.offset = sink.Now() - o.fallback.Now()
	o.sink = sink
	return true
}

func (o *output) attached() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sink != nil
}

// Close closes the attached device, if any.
func (o *output) Close() error {
	o.mu.Lock()
	sink := o.sink
	o.sink = nil
	o.mu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.Close()
}
