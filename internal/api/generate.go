package api

import (
	"net/http"

	"github.com/roach88/beatlab/internal/generate"
)

func (s *Server) generate(w http.ResponseWriter, r *http.Request) error {
	if s.gen == nil {
		return newError(http.StatusServiceUnavailable, CodeAIUnavailable, "generation is not configured")
	}
	var req generate.Request
	if err := decodeJSON(w, r, jsonLimit, &req); err != nil {
		return err
	}
	res, err := s.gen.Generate(r.Context(), Owner(r.Context()), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}
