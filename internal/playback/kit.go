package playback

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/beatlab/internal/audio"
	"github.com/roach88/beatlab/internal/music"
)

// Kit holds the decoded samples playback can trigger.
type Kit struct {
	Drums map[music.Pad]*audio.Buffer
	// Keys maps a MIDI root note to its sample.
	Keys map[uint8]*audio.Buffer
	// Clips maps an asset id to its decoded audio.
	Clips map[string]*audio.Buffer
}

// NewKit returns an empty kit.
func NewKit() *Kit {
	return &Kit{
		Drums: make(map[music.Pad]*audio.Buffer),
		Keys:  make(map[uint8]*audio.Buffer),
		Clips: make(map[string]*audio.Buffer),
	}
}

// LoadKit reads WAV files from dir:
//
//	drums/<pad>.wav   pad names are matched with music.ParsePad ("kick.wav")
//	keys/<note>.wav   MIDI note number of the sample's root ("60.wav")
//
// Files that do not match a pad or note are skipped with a debug log. A
// missing drums or keys directory is not an error.
func LoadKit(dir string, logger *slog.Logger) (*Kit, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kit := NewKit()
	err := walkWAV(filepath.Join(dir, "drums"), func(name string, buf *audio.Buffer) {
		pad, ok := music.ParsePad(name)
		if !ok {
			logger.Debug("skipping drum sample", "file", name)
			return
		}
		kit.Drums[pad] = buf
	})
	if err != nil {
		return nil, err
	}
	err = walkWAV(filepath.Join(dir, "keys"), func(name string, buf *audio.Buffer) {
		n, err := strconv.Atoi(name)
		if err != nil || n < 0 || n > 127 {
			logger.Debug("skipping keys sample", "file", name)
			return
		}
		kit.Keys[uint8(n)] = buf
	})
	if err != nil {
		return nil, err
	}
	logger.Info("kit loaded", "dir", dir, "drums", len(kit.Drums), "keys", len(kit.Keys))
	return kit, nil
}

func walkWAV(dir string, fn func(name string, buf *audio.Buffer)) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load kit: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		buf, err := LoadSample(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("load kit: %w", err)
		}
		fn(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), buf)
	}
	return nil
}

// LoadSample decodes one WAV file.
func LoadSample(path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}
