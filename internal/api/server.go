// Package api serves the beatlab HTTP endpoints: project CRUD, share links,
// asset management with signed object URLs, audio upload and AI generation.
//
// Every endpoint speaks JSON and reports failures as
//
//	{"error": {"code": "...", "message": "..."}}
//
// Callers identify themselves with a bearer token which is used as the owner
// identity as-is; all project and asset access is scoped to that owner.
// Share lookups and signed object downloads are public.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/roach88/beatlab/internal/blob"
	"github.com/roach88/beatlab/internal/generate"
	"github.com/roach88/beatlab/internal/ids"
	"github.com/roach88/beatlab/internal/schema"
	"github.com/roach88/beatlab/internal/store"
)

// DefaultMaxUpload is the largest decoded upload accepted by default.
const DefaultMaxUpload = 32 << 20

// Server routes API requests.
//
// Thread-safety: Server is safe for concurrent use once constructed.
type Server struct {
	store     *store.Store
	bucket    blob.Bucket
	signer    *blob.Signer
	schema    *schema.Validator
	gen       *generate.Service
	ids       ids.Generator
	slugs     ids.Generator
	logger    *slog.Logger
	origins   []string
	maxUpload int64
	signTTL   time.Duration
	now       func() time.Time
	router    *mux.Router
	handler   http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithGenerator enables POST /generate.
func WithGenerator(g *generate.Service) Option {
	return func(s *Server) {
		s.gen = g
	}
}

// WithIDs sets the generator for project, asset, share and recording ids.
func WithIDs(g ids.Generator) Option {
	return func(s *Server) {
		s.ids = g
	}
}

// WithSlugs sets the generator for share slugs.
func WithSlugs(g ids.Generator) Option {
	return func(s *Server) {
		s.slugs = g
	}
}

// WithLogger sets the request and warning logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAllowedOrigins sets the CORS allow-list. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithMaxUpload caps decoded upload size in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

// WithSignTTL sets the default lifetime of signed URLs.
func WithSignTTL(d time.Duration) Option {
	return func(s *Server) {
		s.signTTL = d
	}
}

// WithNow sets the clock used for share expiry.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New wires a Server over its collaborators.
func New(st *store.Store, bucket blob.Bucket, signer *blob.Signer, v *schema.Validator, opts ...Option) *Server {
	s := &Server{
		store:     st,
		bucket:    bucket,
		signer:    signer,
		schema:    v,
		ids:       ids.UUIDv7Generator{},
		slugs:     ids.SlugGenerator{},
		logger:    slog.Default(),
		origins:   []string{"*"},
		maxUpload: DefaultMaxUpload,
		signTTL:   blob.DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	s.handler = s.cors(s.router)
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, newError(http.StatusNotFound, CodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, newError(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "%s not allowed on %s", r.Method, r.URL.Path))
	})

	// Public.
	r.Handle("/healthz", s.handle(s.health)).Methods(http.MethodGet)
	r.Handle("/shares/{slug}", s.handle(s.getShare)).Methods(http.MethodGet)
	r.Handle("/objects/{key:.+}", s.handle(s.getObject)).Methods(http.MethodGet)

	// Owner-scoped.
	p := r.NewRoute().Subrouter()
	p.Use(s.authenticate)
	p.Handle("/projects", s.handle(s.listProjects)).Methods(http.MethodGet)
	p.Handle("/projects", s.handle(s.createProject)).Methods(http.MethodPost)
	p.Handle("/projects/{id}", s.handle(s.getProject)).Methods(http.MethodGet)
	p.Handle("/projects/{id}", s.handle(s.putProject)).Methods(http.MethodPut)
	p.Handle("/projects/{id}", s.handle(s.deleteProject)).Methods(http.MethodDelete)
	p.Handle("/projects/{id}/midi", s.handle(s.exportMIDI)).Methods(http.MethodGet)
	p.Handle("/projects/{id}/share", s.handle(s.shareProject)).Methods(http.MethodPost)
	p.Handle("/assets", s.handle(s.listAssets)).Methods(http.MethodGet)
	p.Handle("/assets", s.handle(s.createAsset)).Methods(http.MethodPost)
	p.Handle("/assets/{id}", s.handle(s.deleteAsset)).Methods(http.MethodDelete)
	p.Handle("/assets/{id}/sign", s.handle(s.signAsset)).Methods(http.MethodPost)
	p.Handle("/generate", s.handle(s.generate)).Methods(http.MethodPost)
	p.Handle("/upload-audio", s.handle(s.uploadAudio)).Methods(http.MethodPost)

	r.Use(s.recoverPanics, s.logRequests)
	return r
}

// ServeHTTP applies CORS before routing; preflight requests from allowed
// origins are answered without reaching the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// cors wraps h with the origin allow-list.
func (s *Server) cors(h http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "If-Match"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.ExposedHeaders([]string{"ETag"}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)(h)
}

// handlerFunc is an endpoint that reports failures by returning them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		e := asError(err)
		if e.Status >= http.StatusInternalServerError {
			s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", e.Code, "error", err)
		} else {
			s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", e.Code, "error", err)
		}
		writeError(w, e)
	})
}

type ownerKey struct{}

// Owner returns the authenticated owner stored in ctx.
func Owner(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeError(w, newError(http.StatusUnauthorized, CodeUnauthorized, "missing bearer token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, token)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
				writeError(w, newError(http.StatusInternalServerError, CodeInternal, "internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.Ping(r.Context()); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

// decodeJSON reads a JSON body into v, capped at limit bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Status: http.StatusBadRequest, Code: CodeInvalidJSON, Message: err.Error(), Err: err}
	}
	return nil
}

// readBody reads a raw body capped at limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, badRequest("read body: %v", err)
	}
	return data, nil
}

// jsonLimit bounds ordinary JSON bodies.
const jsonLimit = 4 << 20

// uploadLimit bounds base64 upload bodies: 4/3 of the decoded cap plus
// room for the envelope.
func (s *Server) uploadLimit() int64 {
	return s.maxUpload/3*4 + 8<<10
}
