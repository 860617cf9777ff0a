package transport

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/roach88/beatlab/internal/music"
)

// State is the transport's play state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Defaults for New.
const (
	DefaultRamp      = 50 * time.Millisecond
	DefaultLookahead = 100 * time.Millisecond
	DefaultInterval  = 25 * time.Millisecond
)

// maxPasses bounds the number of loop wraps a single Advance may scan.
const maxPasses = 1024

// EventID identifies a scheduled event.
type EventID int

// Callback receives the clock time at which an event should sound and the
// tick it was scheduled at.
type Callback func(at time.Duration, tick int64)

// Kind is the type of a state notification.
type Kind int

const (
	KindStart Kind = iota + 1
	KindStop
	KindPause
	KindLoop
	KindBPM
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindPause:
		return "pause"
	case KindLoop:
		return "loop"
	case KindBPM:
		return "bpm"
	default:
		return "unknown"
	}
}

// Notice reports a transport state change. At is the clock time of the
// change; for loops it is the exact time of the wrap.
type Notice struct {
	Kind Kind
	At   time.Duration
	Tick int64
	BPM  float64
}

type event struct {
	id       EventID
	tick     int64
	interval int64 // > 0 for repeating events
	until    int64 // exclusive end tick for repeats; 0 = forever
	once     bool
	fn       Callback
}

type firing struct {
	id   EventID
	tick int64
	at   time.Duration
	fn   Callback
}

// Transport converts musical time to clock time and fires scheduled events.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks and
// listeners run without the transport lock held, so they may call back into
// the transport.
type Transport struct {
	mu    sync.Mutex
	clock Clock
	ts    music.TimeSignature

	state State
	tl    timeline
	held  float64 // playhead while stopped or paused

	swing     float64
	loopOn    bool
	loopStart int64
	loopEnd   int64

	ramp      time.Duration
	lookahead time.Duration

	events map[EventID]*event
	nextID EventID

	// Scan cursor of the look-ahead pump: scanPass loop wraps ahead of the
	// playhead, at scanTick.
	scanTick float64
	scanPass int

	listeners map[int]func(Notice)
	nextL     int

	logger *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithBPM sets the initial tempo.
func WithBPM(bpm float64) Option {
	return func(t *Transport) {
		bpm = clampBPM(bpm)
		t.tl = steady(0, 0, bpm)
	}
}

// WithTimeSignature sets the meter used for positions.
func WithTimeSignature(ts music.TimeSignature) Option {
	return func(t *Transport) {
		t.ts = ts
	}
}

// WithRamp sets the ramp SetBPM uses. Zero makes tempo changes immediate.
func WithRamp(d time.Duration) Option {
	return func(t *Transport) {
		t.ramp = max(d, 0)
	}
}

// WithLookahead sets how far ahead of the clock Advance fires events.
func WithLookahead(d time.Duration) Option {
	return func(t *Transport) {
		t.lookahead = max(d, 0)
	}
}

// WithLogger sets the transport's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// New returns a stopped transport at 120 bpm in 4/4.
func New(clock Clock, opts ...Option) *Transport {
	t := &Transport{
		clock:     clock,
		ts:        music.CommonTime,
		tl:        steady(0, 0, music.DefaultTempo),
		ramp:      DefaultRamp,
		lookahead: DefaultLookahead,
		events:    make(map[EventID]*event),
		nextID:    1,
		listeners: make(map[int]func(Notice)),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func clampBPM(bpm float64) float64 {
	if math.IsNaN(bpm) {
		return music.DefaultTempo
	}
	return music.Clamp(bpm, music.MinTempo, music.MaxTempo)
}

// State returns the play state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// TimeSignature returns the meter used for positions.
func (t *Transport) TimeSignature() music.TimeSignature {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ts
}

// Start begins playback from the held position: zero after Stop, the
// frozen position after Pause. Starting while playing is a no-op.
func (t *Transport) Start() {
	t.mu.Lock()
	if t.state == Playing {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	t.tl = steady(now, t.held, t.tl.b1)
	t.state = Playing
	t.scanTick = t.held
	t.scanPass = 0
	n := Notice{Kind: KindStart, At: now, Tick: int64(t.held), BPM: t.tl.b1}
	t.mu.Unlock()

	t.logger.Debug("transport start", "tick", n.Tick, "bpm", n.BPM)
	t.notify(n)
}

// Pause freezes the playhead at the look-ahead scan horizon, so events
// Advance has already fired are not fired again on resume. Pausing when not
// playing is a no-op.
func (t *Transport) Pause() {
	t.mu.Lock()
	if t.state != Playing {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	t.settle(now)
	t.held = t.tl.ticksAt(now)
	if t.scanPass > 0 || t.scanTick > t.held {
		// The scan cursor may sit past a wrap it already fired.
		t.held = t.scanTick
	}
	t.tl = steady(now, t.held, t.tl.b1)
	t.state = Paused
	n := Notice{Kind: KindPause, At: now, Tick: int64(t.held), BPM: t.tl.b1}
	t.mu.Unlock()

	t.logger.Debug("transport pause", "tick", n.Tick)
	t.notify(n)
}

// Stop halts playback and resets the playhead to zero.
func (t *Transport) Stop() {
	t.mu.Lock()
	if t.state == Stopped && t.held == 0 {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	t.state = Stopped
	t.held = 0
	t.tl = steady(now, 0, t.tl.b1)
	n := Notice{Kind: KindStop, At: now, BPM: t.tl.b1}
	t.mu.Unlock()

	t.logger.Debug("transport stop")
	t.notify(n)
}

// Seek moves the playhead to tick. Events between the old and new position
// are skipped.
func (t *Transport) Seek(tick int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := float64(max(tick, 0))
	if t.state != Playing {
		t.held = k
		return
	}
	now := t.clock.Now()
	t.tl = t.tl.rebase(now, k)
	t.scanTick = k
	t.scanPass = 0
}

// Ticks returns the playhead tick.
func (t *Transport) Ticks() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int64(math.Floor(t.playhead()))
}

// Position returns the playhead as bar/beat/sixteenth.
func (t *Transport) Position() music.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return music.PositionAt(int64(math.Floor(t.playhead())), t.ts)
}

// playhead returns the fractional playhead. Caller holds t.mu.
func (t *Transport) playhead() float64 {
	if t.state != Playing {
		return t.held
	}
	now := t.clock.Now()
	t.settle(now)
	return t.tl.ticksAt(now)
}

// BPM returns the tempo now, part-way through a ramp if one is running.
func (t *Transport) BPM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing {
		return t.tl.b1
	}
	return t.tl.bpmAt(t.clock.Now())
}

// SetBPM changes the tempo using the configured ramp.
func (t *Transport) SetBPM(bpm float64) {
	t.RampBPM(bpm, t.rampDuration())
}

func (t *Transport) rampDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ramp
}

// RampBPM moves the tempo linearly to bpm over the given duration. The
// target is clamped to the document tempo range. Pending events are
// re-timed.
func (t *Transport) RampBPM(bpm float64, over time.Duration) {
	bpm = clampBPM(bpm)
	t.mu.Lock()
	now := t.clock.Now()
	if t.state == Playing {
		t.settle(now)
		t.tl = t.tl.retarget(now, bpm, over)
	} else {
		t.tl = steady(now, t.held, bpm)
	}
	n := Notice{Kind: KindBPM, At: now, Tick: int64(t.tl.k0), BPM: bpm}
	t.mu.Unlock()

	t.logger.Debug("transport bpm", "bpm", bpm, "ramp", over)
	t.notify(n)
}

// Swing returns the swing amount, 0..100.
func (t *Transport) Swing() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swing
}

// SetSwing sets the swing amount, clamped to 0..100.
func (t *Transport) SetSwing(pct float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if math.IsNaN(pct) {
		pct = 0
	}
	t.swing = music.Clamp(pct, 0, music.MaxSwing)
}

func (t *Transport) swingTicks(tick int64) float64 {
	return music.SwingTicks(tick, t.swing)
}

// SetLoop sets the [start, end) loop window in ticks. A window whose end is
// not after its start disables looping.
func (t *Transport) SetLoop(start, end int64, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start = max(start, 0)
	if end <= start {
		enabled = false
	}
	if t.state == Playing {
		t.settle(t.clock.Now())
	}
	t.loopOn, t.loopStart, t.loopEnd = enabled, start, end
	// Wraps scanned ahead under the old window no longer apply.
	if t.scanPass > 0 {
		t.scanPass = 0
		t.scanTick = t.tl.ticksAt(t.clock.Now())
	}
}

// Loop returns the loop window.
func (t *Transport) Loop() (start, end int64, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loopStart, t.loopEnd, t.loopOn
}

// wraps reports whether playback on tl reaches the loop end.
func (t *Transport) wraps(tl timeline) bool {
	return t.loopOn && tl.k0 < float64(t.loopEnd)
}

// settle rebases the playing timeline past every loop end reached by now.
// Caller holds t.mu.
func (t *Transport) settle(now time.Duration) {
	for i := 0; i < maxPasses && t.wraps(t.tl); i++ {
		end := float64(t.loopEnd)
		if t.tl.ticksAt(now) < end {
			return
		}
		t.tl = t.tl.rebase(t.tl.timeAt(end), float64(t.loopStart))
		t.scanPass--
		if t.scanPass < 0 {
			// The pump fell behind a wrap; resume scanning at the loop start.
			t.scanPass = 0
			t.scanTick = float64(t.loopStart)
		}
	}
}

// passTimeline returns the timeline of the loop pass that is n wraps ahead
// of the playhead. Caller holds t.mu.
func (t *Transport) passTimeline(n int) timeline {
	tl := t.tl
	for i := 0; i < n && t.wraps(tl); i++ {
		tl = tl.rebase(tl.timeAt(float64(t.loopEnd)), float64(t.loopStart))
	}
	return tl
}

// TimeOf returns the clock time at which the playhead reaches tick on the
// current pass, including swing. When not playing it assumes playback
// starts now from the held position.
func (t *Transport) TimeOf(tick int64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	tl := steady(now, t.held, t.tl.b1)
	if t.state == Playing {
		t.settle(now)
		tl = t.tl
	}
	return tl.timeAt(float64(tick) + t.swingTicks(tick))
}

// Schedule fires fn every time the playhead crosses tick.
func (t *Transport) Schedule(tick int64, fn Callback) EventID {
	return t.add(&event{tick: max(tick, 0), fn: fn})
}

// ScheduleOnce fires fn the next time the playhead crosses tick, then
// forgets it.
func (t *Transport) ScheduleOnce(tick int64, fn Callback) EventID {
	return t.add(&event{tick: max(tick, 0), once: true, fn: fn})
}

// ScheduleRepeat fires fn at start, start+interval, ... for duration ticks
// (0 means forever). A non-positive interval schedules a single crossing
// event at start.
func (t *Transport) ScheduleRepeat(interval, start, duration int64, fn Callback) EventID {
	e := &event{tick: max(start, 0), fn: fn}
	if interval > 0 {
		e.interval = interval
		if duration > 0 {
			e.until = e.tick + duration
		}
	}
	return t.add(e)
}

func (t *Transport) add(e *event) EventID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.fn == nil {
		e.fn = func(time.Duration, int64) {}
	}
	e.id = t.nextID
	t.nextID++
	t.events[e.id] = e
	return e.id
}

// Clear removes a scheduled event. It reports whether the event existed.
func (t *Transport) Clear(id EventID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.events[id]
	delete(t.events, id)
	return ok
}

// ClearAll removes every scheduled event.
func (t *Transport) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.events)
}

// Pending returns the number of scheduled events.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Advance fires every event the playhead reaches before Now()+lookahead.
// Callbacks run in time order, each with its exact scheduled clock time.
// Advance does nothing unless playing.
func (t *Transport) Advance() {
	t.mu.Lock()
	if t.state != Playing {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	t.settle(now)
	horizon := now + t.lookahead

	var fires []firing
	var notices []Notice
	fired := make(map[EventID]bool)
	for pass := 0; pass < maxPasses; pass++ {
		tl := t.passTimeline(t.scanPass)
		to := tl.ticksAt(horizon)
		wrap := t.wraps(tl) && to >= float64(t.loopEnd)
		if wrap {
			to = float64(t.loopEnd)
		}
		if to > t.scanTick {
			batch := t.collect(t.scanTick, to, tl, fired)
			fires = append(fires, batch...)
			t.scanTick = to
		}
		if !wrap {
			break
		}
		at := tl.timeAt(float64(t.loopEnd))
		fires = append(fires, firing{at: at})
		notices = append(notices, Notice{Kind: KindLoop, At: at, Tick: t.loopStart, BPM: tl.bpmAt(at)})
		t.scanPass++
		t.scanTick = float64(t.loopStart)
	}
	for id := range fired {
		if e, ok := t.events[id]; ok && e.once {
			delete(t.events, id)
		}
	}
	t.mu.Unlock()

	// A firing without a callback marks a loop wrap; notices are delivered in
	// the same order.
	for _, f := range fires {
		if f.fn == nil {
			n := notices[0]
			notices = notices[1:]
			t.logger.Debug("transport loop", "at", n.At)
			t.notify(n)
			continue
		}
		f.fn(f.at, f.tick)
	}
}

// collect returns the firings for ticks in [from, to) on tl, sorted by tick
// then by schedule order. Caller holds t.mu.
func (t *Transport) collect(from, to float64, tl timeline, fired map[EventID]bool) []firing {
	lo := int64(math.Ceil(from))
	hi := int64(math.Ceil(to)) - 1
	if hi < lo {
		return nil
	}
	var out []firing
	for _, e := range t.events {
		if e.once && fired[e.id] {
			continue
		}
		for _, tick := range e.occurrences(lo, hi) {
			out = append(out, firing{
				id:   e.id,
				tick: tick,
				at:   tl.timeAt(float64(tick) + t.swingTicks(tick)),
				fn:   e.fn,
			})
			fired[e.id] = true
			if e.once {
				break
			}
		}
	}
	slices.SortFunc(out, func(a, b firing) int {
		if a.tick != b.tick {
			if a.tick < b.tick {
				return -1
			}
			return 1
		}
		return int(a.id - b.id)
	})
	return out
}

// occurrences returns the event's ticks within [lo, hi].
func (e *event) occurrences(lo, hi int64) []int64 {
	if e.interval <= 0 {
		if e.tick >= lo && e.tick <= hi {
			return []int64{e.tick}
		}
		return nil
	}
	first := e.tick
	if lo > first {
		n := (lo - first + e.interval - 1) / e.interval
		first += n * e.interval
	}
	var out []int64
	for k := first; k <= hi; k += e.interval {
		if e.until > 0 && k >= e.until {
			break
		}
		out = append(out, k)
	}
	return out
}

// On registers fn for state notices and returns a function that removes it.
func (t *Transport) On(fn func(Notice)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextL
	t.nextL++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

func (t *Transport) notify(n Notice) {
	t.mu.Lock()
	fns := make([]func(Notice), 0, len(t.listeners))
	for id := 0; id < t.nextL; id++ {
		if fn, ok := t.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}

// Run calls Advance every interval until ctx is done.
func (t *Transport) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		t.Advance()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Dispose stops playback and drops every event and listener.
func (t *Transport) Dispose() {
	t.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.events)
	clear(t.listeners)
}
