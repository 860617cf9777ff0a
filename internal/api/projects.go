package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/beatlab/internal/midi"
	"github.com/roach88/beatlab/internal/music"
	"github.com/roach88/beatlab/internal/store"
)

// ProjectResponse is a saved project with the warnings produced while
// repairing it.
type ProjectResponse struct {
	store.ProjectRecord
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) error {
	list, err := s.store.ListProjects(r.Context(), Owner(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": list})
	return nil
}

// createProject accepts either a full project document or {"title": ...}
// for a fresh one-bar project. The server always assigns the id.
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) error {
	data, err := readBody(w, r, jsonLimit)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &Error{Status: http.StatusBadRequest, Code: CodeInvalidJSON, Message: err.Error(), Err: err}
	}

	id := s.ids.Generate()
	var p music.Project
	var warnings []string
	if _, ok := fields["tracks"]; ok {
		p, warnings, err = s.decodeProject(data)
		if err != nil {
			return err
		}
	} else {
		var req struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal(data, &req)
		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = "Untitled"
		}
		p = music.NewProject(id, title)
	}
	p.ID = id

	rec, err := s.store.SaveProject(r.Context(), Owner(r.Context()), p)
	if err != nil {
		return err
	}
	w.Header().Set("ETag", etag(rec.Revision))
	writeJSON(w, http.StatusCreated, ProjectResponse{ProjectRecord: rec, Warnings: warnings})
	return nil
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) error {
	rec, err := s.store.GetProject(r.Context(), Owner(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	w.Header().Set("ETag", etag(rec.Revision))
	writeJSON(w, http.StatusOK, rec)
	return nil
}

// putProject replaces or creates the project at id. An If-Match header must
// name the current revision.
func (s *Server) putProject(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	owner := Owner(ctx)
	id := mux.Vars(r)["id"]

	data, err := readBody(w, r, jsonLimit)
	if err != nil {
		return err
	}
	p, warnings, err := s.decodeProject(data)
	if err != nil {
		return err
	}
	if p.ID != "" && p.ID != id {
		return badRequest("body id %q does not match path id %q", p.ID, id)
	}
	p.ID = id

	if match := r.Header.Get("If-Match"); match != "" {
		current, err := s.store.GetProject(ctx, owner, id)
		if err != nil {
			return err
		}
		if strings.Trim(match, `"`) != current.Revision {
			return &Error{
				Status:  http.StatusConflict,
				Code:    CodeConflict,
				Message: "project changed since it was read",
				Details: map[string]string{"revision": current.Revision},
			}
		}
	}

	rec, err := s.store.SaveProject(ctx, owner, p)
	if err != nil {
		return err
	}
	w.Header().Set("ETag", etag(rec.Revision))
	writeJSON(w, http.StatusOK, ProjectResponse{ProjectRecord: rec, Warnings: warnings})
	return nil
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.DeleteProject(r.Context(), Owner(r.Context()), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) exportMIDI(w http.ResponseWriter, r *http.Request) error {
	rec, err := s.store.GetProject(r.Context(), Owner(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	sm, err := midi.Export(rec.Project)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.mid"`, rec.ID))
	if _, err := sm.WriteTo(w); err != nil {
		s.logger.Error("midi write failed", "project", rec.ID, "error", err)
	}
	return nil
}

// ShareRequest optionally limits a share's lifetime.
type ShareRequest struct {
	ExpiresIn string `json:"expiresIn,omitempty"` // Go duration, e.g. "72h"
}

// ShareResponse is a created share and its public path.
type ShareResponse struct {
	store.Share
	Path string `json:"path"`
}

func (s *Server) shareProject(w http.ResponseWriter, r *http.Request) error {
	var req ShareRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, jsonLimit, &req); err != nil {
			return err
		}
	}
	sh := store.Share{ID: s.ids.Generate(), ProjectID: mux.Vars(r)["id"], Slug: s.slugs.Generate()}
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			return badRequest("invalid expiresIn %q", req.ExpiresIn)
		}
		at := s.now().Add(d).UTC()
		sh.ExpiresAt = &at
	}
	sh, err := s.store.CreateShare(r.Context(), Owner(r.Context()), sh)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, ShareResponse{Share: sh, Path: "/shares/" + sh.Slug})
	return nil
}

func (s *Server) getShare(w http.ResponseWriter, r *http.Request) error {
	sh, rec, err := s.store.GetShare(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"share": sh, "project": rec.Project})
	return nil
}

// decodeProject parses a project document and checks it against the schema.
// A document that fails is repaired and checked again; only a document that
// still fails is rejected.
func (s *Server) decodeProject(data []byte) (music.Project, []string, error) {
	var p music.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return music.Project{}, nil, &Error{Status: http.StatusBadRequest, Code: CodeInvalidJSON, Message: err.Error(), Err: err}
	}

	var warnings []string
	if violations := s.schema.Validate(data); len(violations) > 0 {
		p, warnings = music.Repair(p)
		for _, w := range warnings {
			s.logger.Warn("repaired project document", "project", p.ID, "repair", w)
		}
		if still := s.schema.ValidateProject(p); len(still) > 0 {
			return music.Project{}, nil, &Error{
				Status:  http.StatusUnprocessableEntity,
				Code:    CodeValidation,
				Message: fmt.Sprintf("project has %d schema violation(s)", len(still)),
				Details: still,
			}
		}
	}
	return music.Normalize(p), warnings, nil
}

func etag(revision string) string {
	return `"` + revision + `"`
}
