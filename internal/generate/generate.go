// Package generate proxies pattern and melody generation to a language model
// and repairs whatever comes back into valid project content.
//
// Model output is never trusted: RepairDrum and RepairMelody clamp every
// value into range and report each change. Repairs are logged as warnings
// and recorded in the ai_logs table; they are never surfaced as errors.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/beatlab/internal/ids"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/store"
)

// Kind selects what to generate.
type Kind string

const (
	KindDrumPattern Kind = "drum_pattern"
	KindMelody      Kind = "melody"
)

// Error codes returned in *Error.
const (
	CodeInvalidRequest = "invalid_request"
	CodeUpstream       = "upstream_error"
)

// Error is a generation failure with a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Request is a generation request.
type Request struct {
	Type   Kind    `json:"type"`
	Prompt string  `json:"prompt"`
	Bars   int     `json:"bars,omitempty"`
	Tempo  float64 `json:"tempo,omitempty"`
}

// Result is repaired model output. Exactly one of Pattern or Notes is set,
// matching Type.
type Result struct {
	Type    Kind               `json:"type"`
	Model   string             `json:"model"`
	Pattern *music.DrumPattern `json:"pattern,omitempty"`
	Notes   []music.Note       `json:"notes,omitempty"`
	Repairs []string           `json:"repairs"`
}

// Provider completes a chat prompt with a JSON object.
type Provider interface {
	Model() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// LogStore records generation logs.
type LogStore interface {
	WriteAILog(ctx context.Context, owner string, l store.AILog) (store.AILog, error)
}

// Service runs generation requests.
//
// Thread-safety: Service is safe for concurrent use if its Provider and
// LogStore are.
type Service struct {
	provider Provider
	logs     LogStore
	ids      ids.Generator
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogStore records every request in ls.
func WithLogStore(ls LogStore) Option {
	return func(s *Service) {
		s.logs = ls
	}
}

// WithIDs sets the generator for log ids.
func WithIDs(g ids.Generator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithLogger sets the logger for repair warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New returns a Service over p.
func New(p Provider, opts ...Option) *Service {
	s := &Service{
		provider: p,
		ids:      ids.UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate asks the provider for content, repairs it and logs the exchange.
func (s *Service) Generate(ctx context.Context, owner string, req Request) (Result, error) {
	if req.Type != KindDrumPattern && req.Type != KindMelody {
		return Result{}, &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("unknown type %q", req.Type)}
	}
	if req.Bars == 0 {
		req.Bars = 1
	}
	req.Bars = music.ClampInt(req.Bars, music.MinBars, music.MaxBars)
	if req.Tempo == 0 {
		req.Tempo = music.DefaultTempo
	}
	steps := req.Bars * music.StepsPerBar

	system := systemPrompt(req.Type, steps)
	user := userPrompt(req)
	raw, err := s.provider.Complete(ctx, system, user)
	if err != nil {
		return Result{}, &Error{Code: CodeUpstream, Message: "generation failed", Err: err}
	}

	res := Result{Type: req.Type, Model: s.provider.Model()}
	body := extractJSON(raw)
	switch req.Type {
	case KindDrumPattern:
		var out DrumOutput
		if err := json.Unmarshal([]byte(body), &out); err != nil {
			res.Repairs = append(res.Repairs, "unparseable output replaced with an empty pattern")
		}
		pattern, repairs := RepairDrum(out, steps)
		res.Pattern = &pattern
		res.Repairs = append(res.Repairs, repairs...)
	case KindMelody:
		var out MelodyOutput
		if err := json.Unmarshal([]byte(body), &out); err != nil {
			res.Repairs = append(res.Repairs, "unparseable output replaced with an empty melody")
		}
		notes, repairs := RepairMelody(out, steps)
		res.Notes = notes
		res.Repairs = append(res.Repairs, repairs...)
	}
	if res.Repairs == nil {
		res.Repairs = []string{}
	}

	for _, r := range res.Repairs {
		s.logger.Warn("repaired generated content", "type", req.Type, "repair", r)
	}
	s.record(ctx, owner, req, raw, res)
	return res, nil
}

// record writes the ai_logs row. Failures are logged, not returned.
func (s *Service) record(ctx context.Context, owner string, req Request, raw string, res Result) {
	if s.logs == nil {
		return
	}
	_, err := s.logs.WriteAILog(ctx, owner, store.AILog{
		ID:       s.ids.Generate(),
		Kind:     string(req.Type),
		Model:    res.Model,
		Prompt:   req.Prompt,
		Response: raw,
		Repairs:  res.Repairs,
	})
	if err != nil {
		s.logger.Error("failed to record ai log", "error", err)
	}
}

// extractJSON returns the outermost JSON object in s, dropping code fences
// and chatter around it.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

func systemPrompt(kind Kind, steps int) string {
	switch kind {
	case KindDrumPattern:
		pads := make([]string, len(music.Pads))
		for i, p := range music.Pads {
			pads[i] = string(p)
		}
		return fmt.Sprintf(`You write drum patterns on a %d-step sixteenth-note grid.
Reply with one JSON object and nothing else:
{"pads":[{"pad":"KICK","hits":[{"step":0,"vel":110}]}]}
pad is one of %s. step is 0..%d. vel is 1..127.`,
			steps, strings.Join(pads, ", "), steps-1)
	default:
		return fmt.Sprintf(`You write melodies on a %d-step sixteenth-note grid.
Reply with one JSON object and nothing else:
{"notes":[{"step":0,"pitch":60,"vel":100,"length":2}]}
step is 0..%d. pitch is a MIDI note 0..127. vel is 1..127. length is in steps.`,
			steps, steps-1)
	}
}

func userPrompt(req Request) string {
	return fmt.Sprintf("%s\nTempo: %g bpm, %d bar(s) of 4/4.", strings.TrimSpace(req.Prompt), req.Tempo, req.Bars)
}

// IsInvalidRequest reports whether err is a generation request error.
func IsInvalidRequest(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeInvalidRequest
}
