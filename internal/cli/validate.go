package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/schema"
)

// FileValidation is the validation result for one project file.
type FileValidation struct {
	Path       string            `json:"path"`
	Valid      bool              `json:"valid"`
	Violations []music.Violation `json:"violations,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project.json>...",
		Short: "Validate project documents",
		Long: `Validate project JSON documents against the project schema and the
document rules (tempo, meter, bars, lanes, notes, mixer ranges).

Exit codes:
  0 - All documents are valid
  1 - One or more documents are invalid
  2 - Command error (unreadable file, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	v, err := schema.Default()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load project schema", err)
	}

	result := ValidationResult{Valid: true}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read project", err)
		}
		fv := FileValidation{Path: path, Violations: checkProject(v, data)}
		fv.Valid = len(fv.Violations) == 0
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	out := newFormatter(opts, cmd.OutOrStdout())
	if out.JSON() {
		if result.Valid {
			return out.Success(result, "")
		}
		if err := out.Failure(CodeInvalidProject, "validation failed", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	w := cmd.OutOrStdout()
	for _, f := range result.Files {
		if f.Valid {
			fmt.Fprintf(w, "✓ %s\n", f.Path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", f.Path)
		for _, violation := range f.Violations {
			fmt.Fprintf(w, "  %s\n", violation)
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// checkProject runs the schema, then the document rules on a document the
// schema accepts.
func checkProject(v *schema.Validator, data []byte) []music.Violation {
	if violations := v.Validate(data); len(violations) > 0 {
		return violations
	}
	var p music.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return []music.Violation{{Code: schema.CodeSyntax, Message: err.Error()}}
	}
	return music.Validate(p)
}

// loadProject reads a project document, rejects it if it is invalid and
// returns it normalized.
func loadProject(path string) (music.Project, error) {
	v, err := schema.Default()
	if err != nil {
		return music.Project{}, WrapExitError(ExitCommandError, "failed to load project schema", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return music.Project{}, WrapExitError(ExitCommandError, "failed to read project", err)
	}
	if violations := checkProject(v, data); len(violations) > 0 {
		return music.Project{}, WrapExitError(ExitFailure, fmt.Sprintf("invalid project %s", path), violations[0])
	}
	var p music.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return music.Project{}, WrapExitError(ExitCommandError, "failed to parse project", err)
	}
	return music.Normalize(p), nil
}
