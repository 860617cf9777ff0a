// Package app is the composition root of a beatlab session. An App owns the
// state store, the transport, the sequencer with its instruments and the
// audio output, and keeps the transport in step with the store.
//
// Nothing here is global: every session is built by New, brought up by Init
// and torn down by Dispose.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/playback"
	"github.com/roach88/beatlab/internal/state"
	"github.com/roach88/beatlab/internal/transport"
)

// SinkOpener opens the audio device.
type SinkOpener func(ctx context.Context, sampleRate int, logger *slog.Logger) (audio.Sink, error)

// OpenOto opens the system audio device through oto.
func OpenOto(ctx context.Context, sampleRate int, logger *slog.Logger) (audio.Sink, error) {
	return audio.OpenOto(ctx, sampleRate, logger)
}

// ErrNotInitialized is returned by methods that need Init to have run.
var ErrNotInitialized = errors.New("app not initialized")

// App is one editing session.
//
// Thread-safety: all methods are safe for concurrent use. Store listeners
// and transport callbacks run on the goroutine that triggered them.
type App struct {
	Store     *state.Store
	Transport *transport.Transport
	Sequencer *playback.Sequencer
	Drums     *playback.DrumMachine
	Keys      *playback.Instrument

	id         string
	project    music.Project
	kit        *playback.Kit
	open       SinkOpener
	clock      transport.Clock
	sampleRate int
	interval   time.Duration
	pump       bool
	trOpts     []transport.Option
	logger     *slog.Logger

	mu       sync.Mutex
	out      *output
	started  bool
	disposed bool
	cancel   context.CancelFunc
	done     chan struct{}
	unsubs   []func()
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithKit sets the samples the instruments play.
func WithKit(k *playback.Kit) Option {
	return func(a *App) {
		a.kit = k
	}
}

// WithSinkOpener replaces the device opener used by EnableAudio.
func WithSinkOpener(open SinkOpener) Option {
	return func(a *App) {
		a.open = open
	}
}

// WithClock sets the clock the session keeps time by until a device is
// attached.
func WithClock(c transport.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithSampleRate sets the rate requested from the device.
func WithSampleRate(rate int) Option {
	return func(a *App) {
		a.sampleRate = rate
	}
}

// WithTransportOptions passes options through to the transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(a *App) {
		a.trOpts = append(a.trOpts, opts...)
	}
}

// WithInterval sets how often the transport is advanced. Zero uses
// transport.DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(a *App) {
		a.interval = d
	}
}

// WithoutPump leaves advancing the transport to the caller.
func WithoutPump() Option {
	return func(a *App) {
		a.pump = false
	}
}

// New returns an App for p. Nothing is started until Init.
func New(p music.Project, opts ...Option) *App {
	a := &App{
		id:         uuid.NewString(),
		project:    p,
		open:       OpenOto,
		sampleRate: audio.DefaultSampleRate,
		pump:       true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.kit == nil {
		a.kit = playback.NewKit()
	}
	if a.clock == nil {
		a.clock = transport.NewSystemClock()
	}
	a.logger = a.logger.With("session", a.id)
	return a
}

// ID returns the session id.
func (a *App) ID() string { return a.id }

// Init builds the session. Audio stays off until EnableAudio.
func (a *App) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return errors.New("init: app disposed")
	}
	if a.started {
		return errors.New("init: app already initialized")
	}

	p := a.project
	a.out = newOutput(a.sampleRate, a.clock)
	opts := append([]transport.Option{
		transport.WithBPM(p.Tempo),
		transport.WithTimeSignature(p.TimeSignature),
		transport.WithLogger(a.logger),
	}, a.trOpts...)
	a.Transport = transport.New(a.out, opts...)
	a.Transport.SetSwing(p.Swing)

	a.Store = state.NewStore(state.Initial(p), state.WithLogger(a.logger))
	a.Drums = playback.NewDrumMachine(a.out, a.kit, a.logger)
	a.Keys = playback.NewInstrument(a.out, a.kit, a.logger)
	a.Sequencer = playback.NewSequencer(a.Transport, a.out, a.Drums, a.Keys, a.logger,
		playback.WithClips(a.kit.Clips),
		playback.WithStepListener(a.onStep),
	)
	a.Sequencer.SetProject(p)
	a.Sequencer.Bind()
	a.syncLoop(state.Initial(p).Transport)

	a.unsubs = append(a.unsubs,
		a.Store.Subscribe(a.onCommit),
		a.Transport.On(a.onNotice),
	)

	if a.pump {
		runCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		a.done = make(chan struct{})
		go func() {
			defer close(a.done)
			_ = a.Transport.Run(runCtx, a.interval)
		}()
	}
	a.started = true
	a.logger.Info("session initialized", "project", p.ID, "tracks", len(p.Tracks))
	return nil
}

// EnableAudio opens the audio device. A failure is recorded in the store
// as AudioInitFailed and may be retried by calling EnableAudio again.
func (a *App) EnableAudio(ctx context.Context) error {
	a.mu.Lock()
	if !a.started || a.disposed {
		a.mu.Unlock()
		return fmt.Errorf("enable audio: %w", ErrNotInitialized)
	}
	out := a.out
	a.mu.Unlock()
	if out.attached() {
		return nil
	}

	sink, err := a.open(ctx, a.sampleRate, a.logger)
	if err != nil {
		a.logger.Warn("audio init failed", "error", err)
		a.Store.Dispatch(state.AudioInitFailed{Message: err.Error()})
		return fmt.Errorf("enable audio: %w", err)
	}
	if !out.attach(sink) {
		return sink.Close()
	}
	a.logger.Info("audio enabled", "sample_rate", sink.SampleRate())
	a.Store.Dispatch(state.AudioInitialized{SampleRate: sink.SampleRate()})
	return nil
}

// Play starts the transport from its current position.
func (a *App) Play() error {
	tr, err := a.transport()
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	tr.Start()
	return nil
}

// Pause holds the playhead where it is.
func (a *App) Pause() error {
	tr, err := a.transport()
	if err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	tr.Pause()
	return nil
}

// Stop stops the transport and rewinds to the start.
func (a *App) Stop() error {
	tr, err := a.transport()
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	tr.Stop()
	a.Drums.Reset()
	return nil
}

func (a *App) transport() (*transport.Transport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started || a.disposed {
		return nil, ErrNotInitialized
	}
	return a.Transport, nil
}

// Dispose stops playback, detaches every listener and closes the device.
// Calling it more than once is harmless.
func (a *App) Dispose() error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.disposed = true
	started := a.started
	cancel, done, unsubs := a.cancel, a.done, a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	if !started {
		return nil
	}
	if cancel != nil {
		cancel()
		<-done
	}
	for _, unsub := range unsubs {
		unsub()
	}
	a.Sequencer.Unbind()
	a.Transport.Dispose()
	if err := a.out.Close(); err != nil {
		return fmt.Errorf("dispose: close audio: %w", err)
	}
	a.logger.Info("session disposed")
	return nil
}

// onCommit keeps the sequencer and transport in step with the store.
func (a *App) onCommit(c state.Commit) {
	prev, next := c.Prev, c.Next
	switch c.Action.Slice() {
	case state.SliceProject, state.SliceHistory:
		a.Sequencer.SetProject(next.Project)
		if next.Project.Tempo != prev.Project.Tempo {
			c.Dispatch(state.SetBPM{BPM: next.Project.Tempo})
		}
		if next.Project.Swing != prev.Project.Swing {
			c.Dispatch(state.SetSwing{Swing: next.Project.Swing})
		}
		if next.Project.Bars != prev.Project.Bars && loopsWhole(prev) {
			l := next.Transport.Loop
			l.End = music.Position{Bar: next.Project.Bars + 1, Beat: 1, Sixteenth: 1}
			c.Dispatch(state.SetLoop{Loop: l})
		}
	case state.SliceTransport:
		switch c.Action.(type) {
		case state.SetBPM:
			a.Transport.SetBPM(next.Transport.BPM)
		case state.SetSwing:
			a.Transport.SetSwing(next.Transport.Swing)
		case state.SetLoop:
			a.syncLoop(next.Transport)
		}
	}
}

// loopsWhole reports whether the loop window spans the whole project.
func loopsWhole(s state.AppState) bool {
	l := s.Transport.Loop
	return l.Start == music.Origin && l.End == music.Position{Bar: s.Project.Bars + 1, Beat: 1, Sixteenth: 1}
}

func (a *App) syncLoop(t state.TransportState) {
	ts := t.TimeSignature
	a.Transport.SetLoop(t.Loop.Start.Ticks(ts), t.Loop.End.Ticks(ts), t.Loop.Enabled)
}

// onNotice mirrors transport state changes into the store.
func (a *App) onNotice(n transport.Notice) {
	switch n.Kind {
	case transport.KindStart:
		a.Store.Dispatch(state.SetPlaying{Playing: true})
	case transport.KindPause, transport.KindStop:
		a.Store.Dispatch(state.SetPlaying{Playing: false})
		a.Store.Dispatch(state.SetPosition{Position: a.Transport.Position()})
	}
}

func (a *App) onStep(_ int, _ time.Duration) {
	a.Store.Dispatch(state.SetPosition{Position: a.Transport.Position()})
}
