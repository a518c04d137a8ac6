// Package config handles scriptbridge.toml (or .yaml) daemon configuration.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/chazu/scriptbridge/bridge"
)

//go:embed schema.cue
var schemaSource string

// FileNames are the names FindAndLoad looks for, in order.
var FileNames = []string{"scriptbridge.toml", "scriptbridge.yaml", "scriptbridge.yml"}

// Config is the daemon configuration.
type Config struct {
	Session Session `toml:"session" yaml:"session"`
	Handles Handles `toml:"handles" yaml:"handles"`
	Server  Server  `toml:"server" yaml:"server"`
	Store   Store   `toml:"store" yaml:"store"`
	Log     Log     `toml:"log" yaml:"log"`

	// Path is the file the config was loaded from (set at load time).
	Path string `toml:"-" yaml:"-"`
}

// Session configures the bridge executor.
type Session struct {
	CallTimeout Duration `toml:"call-timeout" yaml:"call-timeout"`
	QueueSize   int      `toml:"queue-size" yaml:"queue-size"`
}

// Handles configures idle handle sweeping. A zero TTL disables it.
type Handles struct {
	SweepInterval Duration `toml:"sweep-interval" yaml:"sweep-interval"`
	TTL           Duration `toml:"ttl" yaml:"ttl"`
}

// Server configures the listener.
type Server struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Store configures the saved-state database.
type Store struct {
	Driver string `toml:"driver" yaml:"driver"`
	DSN    string `toml:"dsn" yaml:"dsn"`
}

// Log configures commonlog. An empty path logs to stderr.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	Path      string `toml:"path" yaml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Session: Session{
			CallTimeout: Duration{bridge.DefaultCallTimeout},
			QueueSize:   bridge.DefaultQueueSize,
		},
		Handles: Handles{SweepInterval: Duration{time.Minute}},
		Server:  Server{Addr: "127.0.0.1:7420"},
		Store:   Store{Driver: "sqlite", DSN: "scriptbridge.db"},
	}
}

// Load parses the config file at path. The format follows the extension:
// .yaml and .yml are YAML, anything else is TOML. Values missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return cfg, nil
}

// Format is a config file syntax.
type Format int

const (
	TOML Format = iota
	YAML
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return TOML
}

// Parse decodes and validates a config document.
func Parse(data []byte, format Format) (*Config, error) {
	var raw map[string]any
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse error: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
	}
	return cfg, nil
}

// validate checks the raw document against the embedded CUE schema.
func validate(raw map[string]any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	doc := ctx.Encode(raw)
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// FindAndLoad walks up from startDir looking for one of FileNames and loads
// the first it finds. It returns nil if there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return Load(path)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// SessionOptions converts the session and handle settings to bridge
// options.
func (c *Config) SessionOptions() []bridge.Option {
	opts := []bridge.Option{
		bridge.WithCallTimeout(c.Session.CallTimeout.Duration),
		bridge.WithQueueSize(c.Session.QueueSize),
	}
	if ttl := c.Handles.TTL.Duration; ttl > 0 {
		interval := c.Handles.SweepInterval.Duration
		if interval <= 0 {
			interval = ttl
		}
		opts = append(opts, bridge.WithHandleTTL(interval, ttl))
	}
	return opts
}
