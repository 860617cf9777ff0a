package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/blob"
	"github.com/roach88/beatlab/internal/store"
)

// UploadRequest carries a base64 object for POST /assets and
// POST /upload-audio.
type UploadRequest struct {
	Kind      store.AssetKind `json:"kind,omitempty"`
	Name      string          `json:"name"`
	MIME      string          `json:"mime,omitempty"`
	Data      string          `json:"data"`
	ProjectID string          `json:"projectId,omitempty"`
}

// SignRequest optionally overrides the signed URL lifetime.
type SignRequest struct {
	TTL string `json:"ttl,omitempty"` // Go duration, e.g. "5m"
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) error {
	list, err := s.store.ListAssets(r.Context(), Owner(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": list})
	return nil
}

func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) error {
	var req UploadRequest
	if err := decodeJSON(w, r, s.uploadLimit(), &req); err != nil {
		return err
	}
	switch req.Kind {
	case store.AssetAudio, store.AssetSample, store.AssetImage:
	case "":
		return badRequest("kind is required")
	default:
		return badRequest("unknown asset kind %q", req.Kind)
	}
	data, err := s.decodeUpload(req)
	if err != nil {
		return err
	}
	a, err := s.storeAsset(r.Context(), Owner(r.Context()), req, data)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, a)
	return nil
}

// deleteAsset removes the object and then the row. A storage failure is
// logged and the row is deleted anyway, so a broken object never pins a
// row in place.
func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	owner := Owner(ctx)
	id := mux.Vars(r)["id"]

	a, err := s.store.GetAsset(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.bucket.Delete(ctx, a.Path); err != nil {
		s.logger.Warn("asset object delete failed; removing row anyway", "asset", id, "path", a.Path, "error", err)
	}
	if err := s.store.DeleteAsset(ctx, owner, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) signAsset(w http.ResponseWriter, r *http.Request) error {
	var req SignRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, jsonLimit, &req); err != nil {
			return err
		}
	}
	ttl := s.signTTL
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			return badRequest("invalid ttl %q", req.TTL)
		}
		ttl = d
	}

	a, err := s.store.GetAsset(r.Context(), Owner(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	signed, err := s.signer.Sign(a.Path, ttl)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, signed)
	return nil
}

// getObject streams a bucket object to holders of a valid signed URL.
func (s *Server) getObject(w http.ResponseWriter, r *http.Request) error {
	key := mux.Vars(r)["key"]
	q := r.URL.Query()
	if err := s.signer.Verify(key, q.Get("expires"), q.Get("sig")); err != nil {
		return err
	}
	rc, err := s.bucket.Open(r.Context(), key)
	if err != nil {
		return err
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(path.Ext(key))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("object stream interrupted", "key", key, "error", err)
	}
	return nil
}

// UploadAudioResponse is the asset and recording created by an upload.
type UploadAudioResponse struct {
	Asset     store.Asset     `json:"asset"`
	Recording store.Recording `json:"recording"`
}

// uploadAudio stores a base64 WAV as an audio asset with a recording row
// holding its probed format.
func (s *Server) uploadAudio(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	owner := Owner(ctx)

	var req UploadRequest
	if err := decodeJSON(w, r, s.uploadLimit(), &req); err != nil {
		return err
	}
	data, err := s.decodeUpload(req)
	if err != nil {
		return err
	}
	info, err := audio.ProbeWAV(bytes.NewReader(data))
	if err != nil {
		return &Error{Status: http.StatusBadRequest, Code: CodeInvalidAudio, Message: "data is not a PCM WAV file", Err: err}
	}

	req.Kind = store.AssetAudio
	req.MIME = "audio/wav"
	if path.Ext(req.Name) == "" {
		req.Name += ".wav"
	}
	a, err := s.storeAsset(ctx, owner, req, data)
	if err != nil {
		return err
	}
	rec, err := s.store.CreateRecording(ctx, owner, store.Recording{
		ID:         s.ids.Generate(),
		AssetID:    a.ID,
		ProjectID:  req.ProjectID,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		DurationMS: info.Duration.Milliseconds(),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, UploadAudioResponse{Asset: a, Recording: rec})
	return nil
}

func (s *Server) decodeUpload(req UploadRequest) ([]byte, error) {
	if req.Data == "" {
		return nil, badRequest("data is required")
	}
	// Accept data: URLs as sent by browsers.
	payload := req.Data
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, badRequest("data is not valid base64: %v", err)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, newError(http.StatusRequestEntityTooLarge, CodeTooLarge, "upload exceeds %d bytes", s.maxUpload)
	}
	return data, nil
}

// storeAsset writes the object and its row. If the row cannot be written the
// object is removed again.
func (s *Server) storeAsset(ctx context.Context, owner string, req UploadRequest, data []byte) (store.Asset, error) {
	id := s.ids.Generate()
	key := objectKey(owner, id, req.Name)

	n, err := s.bucket.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return store.Asset{}, &Error{Status: http.StatusBadGateway, Code: CodeStorage, Message: "object upload failed", Err: err}
	}

	ctype := req.MIME
	if ctype == "" {
		ctype = mime.TypeByExtension(path.Ext(key))
	}
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	a, err := s.store.CreateAsset(ctx, owner, store.Asset{ID: id, Kind: req.Kind, Path: key, Size: n, MIME: ctype})
	if err != nil {
		if derr := s.bucket.Delete(ctx, key); derr != nil && !errors.Is(derr, blob.ErrNotFound) {
			s.logger.Warn("orphaned object after failed asset insert", "path", key, "error", derr)
		}
		return store.Asset{}, err
	}
	return a, nil
}

// objectKey places objects under a hash of the owner so raw tokens never
// appear in URLs. Only the extension of the client name is kept.
func objectKey(owner, id, name string) string {
	sum := sha256.Sum256([]byte(owner))
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) > 8 || strings.ContainsAny(ext, " ?#%") {
		ext = ""
	}
	return hex.EncodeToString(sum[:8]) + "/" + id + ext
}
