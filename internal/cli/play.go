package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/beatlab/internal/app"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/state"
	"github.com/roach88/beatlab/internal/transport"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Duration time.Duration
	Kit      string

	// Opener allows overriding the audio device (for testing).
	// If nil, defaults to app.OpenOto.
	Opener app.SinkOpener
}

// PlayResult summarises a finished play session.
type PlayResult struct {
	Project string  `json:"project"`
	Session string  `json:"session"`
	BPM     float64 `json:"bpm"`
	Played  string  `json:"played"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	return newPlayCommand(&PlayOptions{RootOptions: rootOpts})
}

func newPlayCommand(opts *PlayOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <project.json>",
		Short: "Play a project through the audio device",
		Long: `Play a project in a loop through the system audio device until
interrupted or until --duration has elapsed.

Example:
  beatlab play song.json --kit ./kit
  beatlab play song.json --duration 30s`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 = until interrupted)")
	cmd.Flags().StringVar(&opts.Kit, "kit", "", "sample kit directory (overrides config)")

	return cmd
}

func runPlay(opts *PlayOptions, path string, cmd *cobra.Command) error {
	cfg, logger, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	p, err := loadProject(path)
	if err != nil {
		return err
	}
	kitDir := opts.Kit
	if kitDir == "" {
		kitDir = cfg.Audio.KitDir
	}
	kit, err := loadKit(kitDir, logger)
	if err != nil {
		return err
	}

	appOpts := []app.Option{
		app.WithLogger(logger),
		app.WithKit(kit),
		app.WithSampleRate(cfg.Audio.SampleRate),
		app.WithTransportOptions(transport.WithLookahead(cfg.Audio.Lookahead.Std())),
	}
	if opts.Opener != nil {
		appOpts = append(appOpts, app.WithSinkOpener(opts.Opener))
	}
	session := app.New(p, appOpts...)

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()
	if opts.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.Duration)
		defer stop()
	}

	if err := session.Init(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start session", err)
	}
	defer func() {
		if err := session.Dispose(); err != nil {
			logger.Error("error closing session", "error", err)
		}
	}()
	if err := session.EnableAudio(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to open audio device", err)
	}
	session.Store.Dispatch(state.SetLoop{Loop: wholeProject(p)})

	start := time.Now()
	if err := session.Play(); err != nil {
		return WrapExitError(ExitFailure, "failed to play", err)
	}
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	if !out.JSON() {
		fmt.Fprintf(cmd.OutOrStdout(), "Playing %q at %g bpm. Press Ctrl-C to stop.\n", p.Title, p.Tempo)
	}

	<-ctx.Done()
	if err := session.Stop(); err != nil {
		return WrapExitError(ExitFailure, "failed to stop", err)
	}
	played := time.Since(start).Round(time.Millisecond)
	return out.Success(PlayResult{
		Project: p.ID,
		Session: session.ID(),
		BPM:     session.Store.State().Transport.BPM,
		Played:  played.String(),
	}, fmt.Sprintf("Stopped after %s", played))
}

// wholeProject is a loop window spanning one pass of p's arrangement
// chain.
func wholeProject(p music.Project) state.LoopWindow {
	bars := p.Bars * max(len(p.Arrangement.Chain), 1)
	return state.LoopWindow{
		Enabled: true,
		Start:   music.Origin,
		End:     music.Position{Bar: bars + 1, Beat: 1, Sixteenth: 1},
	}
}
