package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"servicegraph/internal/domain"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SERVICEGRAPH_"

// Config holds servicegraph configuration.
type Config struct {
	Source SourceConfig `toml:"source"`
	Poll   PollConfig   `toml:"poll"`
	Health HealthConfig `toml:"health"`
	Render RenderConfig `toml:"render"`
	Log    LogConfig    `toml:"log"`
	Store  StoreConfig  `toml:"store"`
	Serve  ServeConfig  `toml:"serve"`
	Editor EditorConfig `toml:"editor"`
}

// SourceConfig selects where snapshots come from.
type SourceConfig struct {
	Kind      string   `toml:"kind"` // "http", "file", "replay"
	URL       string   `toml:"url"`
	File      string   `toml:"file"`
	ProjectID int      `toml:"project_id"`
	Timeout   Duration `toml:"timeout"`
}

// PollConfig controls the graph and histogram timers.
type PollConfig struct {
	Graph     Duration `toml:"graph"`
	Histogram Duration `toml:"histogram"`
}

// HealthConfig holds health thresholds and the activity window.
type HealthConfig struct {
	Thresholds     domain.Thresholds `toml:"thresholds"`
	ActivityWindow Duration          `toml:"activity_window"`
}

// RenderConfig controls edge widths and layout.
type RenderConfig struct {
	MinWidth float64 `toml:"min_width"`
	MaxWidth float64 `toml:"max_width"`
	Layout   string  `toml:"layout"`
	Spacing  int     `toml:"spacing"`
	Animate  bool    `toml:"animate"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
	File   string `toml:"file"`
}

// StoreConfig locates the snapshot database.
type StoreConfig struct {
	Path   string `toml:"path"`
	Record bool   `toml:"record"`
}

// ServeConfig controls the fixture backend.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// EditorConfig controls where raw payloads are dumped for inspection.
type EditorConfig struct {
	DumpDir string `toml:"dump_dir"`
}

// Duration is a time.Duration that reads and writes as "1s", "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:      "http",
			URL:       "http://localhost:8080/api",
			ProjectID: 1,
			Timeout:   Duration{10 * time.Second},
		},
		Poll: PollConfig{
			Graph:     Duration{time.Second},
			Histogram: Duration{5 * time.Second},
		},
		Health: HealthConfig{
			Thresholds:     domain.DefaultThresholds(),
			ActivityWindow: Duration{domain.DefaultActivityWindow},
		},
		Render: RenderConfig{
			MinWidth: 1,
			MaxWidth: 6,
			Layout:   "layered",
			Spacing:  2,
			Animate:  true,
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Store:  StoreConfig{Path: filepath.Join(DataDir(), "snapshots.db")},
		Serve:  ServeConfig{Addr: ":8080"},
		Editor: EditorConfig{DumpDir: filepath.Join(os.TempDir(), "servicegraph")},
	}
}

// ConfigDir returns the servicegraph config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "servicegraph")
}

// DataDir returns the servicegraph data directory path.
func DataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "servicegraph")
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path (or the
// default path when empty), a .env file in the working directory, and
// SERVICEGRAPH_* environment variables, in that order. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Save writes the config to path, or the default path when empty.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks values that would make the viewer misbehave
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "http", "file", "replay":
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Poll.Graph.Duration <= 0 || c.Poll.Histogram.Duration <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.Render.MinWidth <= 0 || c.Render.MaxWidth < c.Render.MinWidth {
		return fmt.Errorf("invalid edge width range %.2f..%.2f", c.Render.MinWidth, c.Render.MaxWidth)
	}
	t := c.Health.Thresholds
	if t.ExpectedError <= 0 || t.ExpectedError > 1 || t.UnexpectedError <= 0 || t.UnexpectedError > 1 {
		return fmt.Errorf("health thresholds must be in (0, 1]")
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"SOURCE":     &c.Source.Kind,
		"URL":        &c.Source.URL,
		"FILE":       &c.Source.File,
		"LAYOUT":     &c.Render.Layout,
		"LOG_LEVEL":  &c.Log.Level,
		"LOG_FORMAT": &c.Log.Format,
		"LOG_FILE":   &c.Log.File,
		"STORE":      &c.Store.Path,
		"ADDR":       &c.Serve.Addr,
		"DUMP_DIR":   &c.Editor.DumpDir,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "PROJECT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPROJECT: %w", EnvPrefix, err)
		}
		c.Source.ProjectID = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "RECORD"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sRECORD: %w", EnvPrefix, err)
		}
		c.Store.Record = b
	}

	durations := map[string]*Duration{
		"TIMEOUT":            &c.Source.Timeout,
		"GRAPH_INTERVAL":     &c.Poll.Graph,
		"HISTOGRAM_INTERVAL": &c.Poll.Histogram,
		"ACTIVITY_WINDOW":    &c.Health.ActivityWindow,
	}
	for name, dst := range durations {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
		}
	}
	return nil
}
