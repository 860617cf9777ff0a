package playback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/transport"
)

// RenderOptions controls an offline render.
type RenderOptions struct {
	// Passes is how many times the bars are played. Zero plays the
	// arrangement chain once.
	Passes int
	// Tail is the longest time to keep rendering after the last step while
	// voices ring out. Zero means one second.
	Tail time.Duration
	// Chunk is the render granularity. Zero means 10ms.
	Chunk time.Duration
}

// Render plays p into rec with the same transport and sequencer used live.
// The recorder is the transport's clock, so the result is deterministic.
func Render(ctx context.Context, p music.Project, kit *Kit, rec *audio.Recorder, opts RenderOptions, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if kit == nil {
		kit = NewKit()
	}
	passes := opts.Passes
	if passes <= 0 {
		passes = max(len(p.Arrangement.Chain), 1)
	}
	tail := opts.Tail
	if tail <= 0 {
		tail = time.Second
	}
	chunk := opts.Chunk
	if chunk <= 0 {
		chunk = 10 * time.Millisecond
	}

	tr := transport.New(rec,
		transport.WithBPM(p.Tempo),
		transport.WithTimeSignature(p.TimeSignature),
		transport.WithRamp(0),
		transport.WithLookahead(chunk),
		transport.WithLogger(logger),
	)
	defer tr.Dispose()
	tr.SetSwing(p.Swing)

	drums := NewDrumMachine(rec, kit, logger)
	keys := NewInstrument(rec, kit, logger)
	seq := NewSequencer(tr, rec, drums, keys, logger, WithClips(kit.Clips))
	seq.SetProject(p)

	total := int64(passes) * int64(p.StepCount()) * music.TicksPerStep
	seq.BindFor(total)
	end := tr.TimeOf(total)

	logger.Info("render start", "project", p.ID, "passes", passes, "seconds", end.Seconds())
	tr.Start()
	for rec.Now() < end {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		tr.Advance()
		rec.Render(chunk)
	}
	tr.Stop()
	for rung := time.Duration(0); rung < tail && rec.Pending() > 0; rung += chunk {
		rec.Render(chunk)
	}
	logger.Info("render done", "project", p.ID, "seconds", rec.Now().Seconds())
	return nil
}
