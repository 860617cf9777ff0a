// Package config loads beatlab settings from a YAML file and BEATLAB_*
// environment variables. Environment values override the file; command-line
// flags override both and are applied by the cli package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Server   Server  `yaml:"server"`
	Database string  `yaml:"database"`
	Storage  Storage `yaml:"storage"`
	AI       AI      `yaml:"ai"`
	Audio    Audio   `yaml:"audio"`
	Log      Log     `yaml:"log"`
}

// Server configures the HTTP API.
type Server struct {
	Addr           string   `yaml:"addr"`
	PublicURL      string   `yaml:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// Storage configures the object bucket and URL signing.
type Storage struct {
	Root          string   `yaml:"root"`
	SigningSecret string   `yaml:"signing_secret"`
	SignedURLTTL  Duration `yaml:"signed_url_ttl"`
}

// AI configures the generation provider.
type AI struct {
	APIKey  string   `yaml:"api_key"`
	BaseURL string   `yaml:"base_url"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// Audio configures local playback.
type Audio struct {
	SampleRate int      `yaml:"sample_rate"`
	KitDir     string   `yaml:"kit_dir"`
	Lookahead  Duration `yaml:"lookahead"`
}

// Log configures the slog handler.
type Log struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration written as a Go duration string ("15m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 32 << 20,
		},
		Database: "beatlab.db",
		Storage: Storage{
			Root:         "objects",
			SignedURLTTL: Duration(15 * time.Minute),
		},
		AI: AI{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: Duration(60 * time.Second),
		},
		Audio: Audio{
			SampleRate: 44100,
			Lookahead:  Duration(100 * time.Millisecond),
		},
		Log: Log{Level: "info"},
	}
}

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Load reads path (if non-empty) over the defaults, then applies the
// environment from lookup (os.LookupEnv when nil), then validates.
func Load(path string, lookup LookupEnv) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode rejects unknown keys so typos surface instead of silently
// falling back to defaults.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup LookupEnv) error {
	str := map[string]*string{
		"BEATLAB_ADDR":            &cfg.Server.Addr,
		"BEATLAB_PUBLIC_URL":      &cfg.Server.PublicURL,
		"BEATLAB_DB":              &cfg.Database,
		"BEATLAB_STORAGE_ROOT":    &cfg.Storage.Root,
		"BEATLAB_SIGNING_SECRET":  &cfg.Storage.SigningSecret,
		"BEATLAB_OPENAI_API_KEY":  &cfg.AI.APIKey,
		"BEATLAB_OPENAI_BASE_URL": &cfg.AI.BaseURL,
		"BEATLAB_OPENAI_MODEL":    &cfg.AI.Model,
		"BEATLAB_KIT_DIR":         &cfg.Audio.KitDir,
		"BEATLAB_LOG_LEVEL":       &cfg.Log.Level,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if cfg.AI.APIKey == "" {
		if v, ok := lookup("OPENAI_API_KEY"); ok {
			cfg.AI.APIKey = v
		}
	}
	if v, ok := lookup("BEATLAB_ALLOWED_ORIGINS"); ok {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("BEATLAB_SAMPLE_RATE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BEATLAB_SAMPLE_RATE: %w", err)
		}
		cfg.Audio.SampleRate = n
	}
	if v, ok := lookup("BEATLAB_SIGNED_URL_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BEATLAB_SIGNED_URL_TTL: %w", err)
		}
		cfg.Storage.SignedURLTTL = Duration(d)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks values that have no usable fallback.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Storage.SignedURLTTL <= 0 {
		errs = append(errs, errors.New("storage.signed_url_ttl must be positive"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
