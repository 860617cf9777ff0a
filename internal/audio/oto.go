package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoSink plays voices on the system audio device.
//
// Its clock counts frames handed to the device, the same way an audio
// context's currentTime advances with the hardware rather than the wall
// clock.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player
	mixer  *mixer
	rate   int
	frames atomic.Int64
	logger *slog.Logger
}

// OpenOto creates the oto context and starts a player fed by the mixer. It
// waits for the device to become ready or for ctx to end.
func OpenOto(ctx context.Context, sampleRate int, logger *slog.Logger) (*OtoSink, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   20 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("open audio device: %w", ctx.Err())
	}

	s := &OtoSink{
		ctx:    otoCtx,
		mixer:  newMixer(sampleRate),
		rate:   sampleRate,
		logger: logger,
	}
	s.player = otoCtx.NewPlayer(&otoReader{sink: s})
	s.player.Play()
	logger.Info("audio device ready", "sample_rate", sampleRate)
	return s, nil
}

// SampleRate returns the device rate.
func (s *OtoSink) SampleRate() int { return s.rate }

// Now returns the time of the next frame the device will receive.
func (s *OtoSink) Now() time.Duration {
	return time.Duration(s.frames.Load()) * time.Second / time.Duration(s.rate)
}

// Play schedules v.
func (s *OtoSink) Play(v Voice) {
	s.mixer.add(v)
}

// Close stops the player. The oto context itself lives for the process.
func (s *OtoSink) Close() error {
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("close audio player: %w", err)
	}
	if err := s.ctx.Err(); err != nil {
		s.logger.Warn("audio context reported error", "error", err)
	}
	return nil
}

// otoReader implements io.Reader for continuous audio generation.
type otoReader struct {
	sink *OtoSink
	mix  []float32
}

func (r *otoReader) Read(buf []byte) (int, error) {
	frames := len(buf) / 4
	if cap(r.mix) < frames*2 {
		r.mix = make([]float32, frames*2)
	}
	mix := r.mix[:frames*2]
	clear(mix)

	from := r.sink.frames.Load()
	r.sink.mixer.mix(mix, from)
	for i, v := range mix {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(toInt16(v)))
	}
	r.sink.frames.Add(int64(frames))
	return frames * 4, nil
}
