package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/midi"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/playback"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
	Passes int
	Kit    string
}

// ExportResult describes a written export.
type ExportResult struct {
	Project string `json:"project"`
	Output  string `json:"output"`
	Format  string `json:"format"`
	Bytes   int64  `json:"bytes"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <project.json>",
		Short: "Export a project as MIDI or WAV",
		Long: `Export a project. The output extension picks the format:

  .mid, .midi  standard MIDI file (drums on channel 10)
  .wav         offline render through the kit's samples

Example:
  beatlab export song.json -o song.mid
  beatlab export song.json -o song.wav --kit ./kit --passes 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (.mid or .wav)")
	cmd.Flags().IntVar(&opts.Passes, "passes", 0, "passes over the bars for WAV renders (0 = arrangement once)")
	cmd.Flags().StringVar(&opts.Kit, "kit", "", "sample kit directory (overrides config)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	cfg, logger, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	p, err := loadProject(path)
	if err != nil {
		return err
	}

	var format string
	switch strings.ToLower(filepath.Ext(opts.Output)) {
	case ".mid", ".midi":
		format = "midi"
		if err := midi.WriteFile(opts.Output, p); err != nil {
			return WrapExitError(ExitCommandError, "failed to write MIDI", err)
		}
	case ".wav":
		format = "wav"
		kitDir := opts.Kit
		if kitDir == "" {
			kitDir = cfg.Audio.KitDir
		}
		kit, err := loadKit(kitDir, logger)
		if err != nil {
			return err
		}
		if err := renderWAV(cmd, p, kit, cfg.Audio.SampleRate, opts.Passes, opts.Output, logger); err != nil {
			return err
		}
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unsupported output %q: use .mid or .wav", opts.Output))
	}

	info, err := os.Stat(opts.Output)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to stat output", err)
	}
	res := ExportResult{Project: p.ID, Output: opts.Output, Format: format, Bytes: info.Size()}
	logger.Info("exported project", "project", p.ID, "format", format, "output", opts.Output)
	return newFormatter(opts.RootOptions, cmd.OutOrStdout()).
		Success(res, fmt.Sprintf("Wrote %s (%d bytes)", opts.Output, res.Bytes))
}

func renderWAV(cmd *cobra.Command, p music.Project, kit *playback.Kit, rate, passes int, out string, logger *slog.Logger) error {
	rec := audio.NewRecorder(rate)
	if err := playback.Render(cmd.Context(), p, kit, rec, playback.RenderOptions{Passes: passes}, logger); err != nil {
		return WrapExitError(ExitFailure, "failed to render", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output", err)
	}
	if err := rec.WriteWAV(f); err != nil {
		f.Close()
		return WrapExitError(ExitCommandError, "failed to write WAV", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write WAV", err)
	}
	return nil
}

// loadKit loads the sample kit, or returns an empty kit when dir is unset.
func loadKit(dir string, logger *slog.Logger) (*playback.Kit, error) {
	if dir == "" {
		logger.Warn("no sample kit configured; playback will be silent")
		return playback.NewKit(), nil
	}
	kit, err := playback.LoadKit(dir, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load kit", err)
	}
	return kit, nil
}
