package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/roach88/beatlab/internal/audio"
)

func readTestProject(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(testProject)
	require.NoError(t, err)
	return string(data)
}

func TestExport_MIDI(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song.mid")
	stdout, err := execute(t, "export", testProject, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+out)

	s, err := smf.ReadFile(out)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(s.Tracks), 3, "tempo track plus one per instrument track")
}

func TestExport_WAV(t *testing.T) {
	dir := t.TempDir()
	kick := &audio.Buffer{SampleRate: 44100, Channels: 1, Data: make([]float32, 441)}
	for i := range kick.Data {
		kick.Data[i] = 0.5
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "kit", "drums"), 0755))
	f, err := os.Create(filepath.Join(dir, "kit", "drums", "kick.wav"))
	require.NoError(t, err)
	require.NoError(t, audio.EncodeWAV(f, kick))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "song.wav")
	_, err = execute(t, "export", testProject, "-o", out, "--kit", filepath.Join(dir, "kit"))
	require.NoError(t, err)

	wf, err := os.Open(out)
	require.NoError(t, err)
	defer wf.Close()
	info, err := audio.ProbeWAV(wf)
	require.NoError(t, err)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	// One bar at 96 bpm is 2.5s, plus the ring-out tail.
	assert.GreaterOrEqual(t, info.Duration, 2500*time.Millisecond)
}

func TestExport_UnsupportedFormat(t *testing.T) {
	_, err := execute(t, "export", testProject, "-o", filepath.Join(t.TempDir(), "song.mp3"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unsupported output")
}

func TestExport_RequiresOutput(t *testing.T) {
	_, err := execute(t, "export", testProject)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
