package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/beatlab/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run editor scenarios",
		Long: `Replay YAML scenarios through the state store and check their
expectations, trace assertions and, where a golden/<name>.golden file sits
next to the scenario, the recorded action trace.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  beatlab scenario ./testdata/scenarios
  beatlab scenario ./testdata/scenarios --filter "mixer*"
  beatlab scenario ./testdata/scenarios --update
  beatlab scenario ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *ScenarioOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	paths, err := harness.FindScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	res := harness.RunSuite(paths, harness.WithGoldenTraces(opts.Update))

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	if out.JSON() {
		if res.Failed == 0 {
			return out.Success(res, "")
		}
		if err := out.Failure(CodeScenarioFailed, fmt.Sprintf("%d scenario(s) failed", res.Failed), res); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", res.Failed))
	}

	w := cmd.OutOrStdout()
	if res.TotalScenarios == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "✗ %s (%s)\n", f.Scenario, f.Path)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "Scenario Summary: %d passed, %d failed, %d total\n", res.Passed, res.Failed, res.TotalScenarios)
	if res.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", res.Failed))
	}
	if opts.Update {
		fmt.Fprintln(w, "✓ All scenarios passed (golden files updated)")
		return nil
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

// filterScenarios keeps paths whose base name, without extension, matches
// the glob pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}
