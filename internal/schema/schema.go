// Package schema checks project documents against the embedded CUE schema.
//
// It is the wire-level counterpart of music.Validate: it runs on raw JSON
// before decoding, so it also catches unknown fields, wrong types and
// malformed payloads that never reach a music.Project.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/beatlab/internal/music"
)

// Violation codes reported by the schema validator.
const (
	CodeSyntax music.ViolationCode = "E301" // document is not valid JSON
	CodeSchema music.ViolationCode = "E302" // document does not satisfy #Project
)

//go:embed project.cue
var source string

// Validator holds the compiled #Project definition.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so Validate
// serialises callers.
type Validator struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source, cue.Filename("project.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %s", formatCUEError(err))
	}
	def := v.LookupPath(cue.ParsePath("#Project"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Project: %w", err)
	}
	return &Validator{ctx: ctx, def: def}, nil
}

var defaultValidator = sync.OnceValues(New)

// Default returns a process-wide validator, compiling it on first use.
func Default() (*Validator, error) {
	return defaultValidator()
}

// Validate checks a JSON project document. A nil result means it is valid.
func (v *Validator) Validate(data []byte) []music.Violation {
	expr, err := cuejson.Extract("project.json", data)
	if err != nil {
		return []music.Violation{{Code: CodeSyntax, Message: formatCUEError(err)}}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return []music.Violation{{Code: CodeSyntax, Message: formatCUEError(err)}}
	}
	err = v.def.Unify(doc).Validate(cue.Concrete(true))
	return violations(err)
}

// ValidateProject encodes p and validates the result.
func (v *Validator) ValidateProject(p music.Project) []music.Violation {
	data, err := json.Marshal(p)
	if err != nil {
		return []music.Violation{{Code: CodeSyntax, Message: err.Error()}}
	}
	return v.Validate(data)
}

// violations flattens a CUE error list, dropping duplicates that disjunctions
// report once per branch.
func violations(err error) []music.Violation {
	if err == nil {
		return nil
	}
	var out []music.Violation
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		field := fieldPath(e.Path())
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		key := field + "\x00" + msg
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, music.Violation{Code: CodeSchema, Field: field, Message: msg})
	}
	return out
}

// formatCUEError renders the first error with its source position.
func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return fmt.Sprintf("%s: %s", positions[0], msg)
	}
	return msg
}

// fieldPath joins a CUE error path as a document field, dropping the
// definition selectors CUE reports for closedness errors.
func fieldPath(path []string) string {
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	return strings.Join(path, ".")
}
