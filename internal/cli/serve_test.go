package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beatlab/internal/config"
	"github.com/roach88/beatlab/internal/store"
)

func TestNewAPI_ServesHealthAndProjects(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Root = filepath.Join(dir, "objects")
	cfg.Storage.SigningSecret = "test-secret"

	st, err := store.Open(filepath.Join(dir, "beatlab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	handler, err := newAPI(cfg, st, newLogger(&bytes.Buffer{}, 0))
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/projects", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Without an API key generation reports itself unavailable.
	req, err = http.NewRequest(http.MethodPost, srv.URL+"/generate", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer alice")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BEATLAB_LOG_LEVEL", "error")
	t.Setenv("BEATLAB_STORAGE_ROOT", filepath.Join(dir, "objects"))

	stdout := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--addr", "127.0.0.1:0", "--db", filepath.Join(dir, "beatlab.db")})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
	assert.Contains(t, stdout.String(), "Listening on http://127.0.0.1:")
}

func TestServe_BadAddr(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BEATLAB_STORAGE_ROOT", filepath.Join(dir, "objects"))
	_, err := execute(t, "serve", "--addr", "not-an-address", "--db", filepath.Join(dir, "beatlab.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
