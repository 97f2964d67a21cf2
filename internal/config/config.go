package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor WEEKPLAN_CONFIG is given.
const DefaultPath = "./weekplan.yaml"

// EnvPath names the environment variable that overrides DefaultPath.
const EnvPath = "WEEKPLAN_CONFIG"

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint or a local file path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// GridConfig holds the geometry of the time grid and the placement limits.
type GridConfig struct {
	// StartHour / EndHour bound the visible part of the day.
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`

	// SnapMinutes is the grid increment every pointer position snaps to.
	SnapMinutes int `yaml:"snap_minutes" json:"snap_minutes"`

	ColumnWidth float64 `yaml:"column_width" json:"column_width"`
	// OriginX / OriginY locate 00:00 of the first visible hour on Monday,
	// i.e. the width of the time label gutter and the header height.
	OriginX float64 `yaml:"origin_x" json:"origin_x"`
	OriginY float64 `yaml:"origin_y" json:"origin_y"`

	// BasePixelsPerHour is the scale at zoom factor 1.0.
	BasePixelsPerHour float64 `yaml:"base_pixels_per_hour" json:"base_pixels_per_hour"`
	MinPixelsPerHour  float64 `yaml:"min_pixels_per_hour" json:"min_pixels_per_hour"`
	MaxPixelsPerHour  float64 `yaml:"max_pixels_per_hour" json:"max_pixels_per_hour"`
	// ZoomStep is the factor increment used by zoom in/out.
	ZoomStep float64 `yaml:"zoom_step" json:"zoom_step"`

	MinBlockMinutes     int `yaml:"min_block_minutes" json:"min_block_minutes"`
	DefaultBlockMinutes int `yaml:"default_block_minutes" json:"default_block_minutes"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone of the viewer. Floating calendar times
	// are read in this zone. Empty means the process local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for re-importing the ICS subscriptions. Empty disables refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ShowAllDay imports all-day events as whole-day blocks.
	ShowAllDay bool `yaml:"show_all_day" json:"show_all_day"`

	// CacheDir stores HTTP cache metadata for ICS subscriptions.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Grid GridConfig `yaml:"grid" json:"grid"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// ImportDirs lists the directories whose .ics files may be imported
	// through the HTTP API. Configured subscriptions are always allowed;
	// any other path or URL is refused.
	ImportDirs []string `yaml:"import_dirs" json:"import_dirs"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultGrid mirrors the layout of the desktop planner: 06:00-24:00,
// 15 minute snapping, zoom between half and triple size.
func DefaultGrid() GridConfig {
	return GridConfig{
		StartHour:           6,
		EndHour:             24,
		SnapMinutes:         15,
		ColumnWidth:         160,
		OriginX:             44,
		OriginY:             26,
		BasePixelsPerHour:   500.0 / 18.0,
		MinPixelsPerHour:    250.0 / 18.0,
		MaxPixelsPerHour:    1500.0 / 18.0,
		ZoomStep:            0.25,
		MinBlockMinutes:     15,
		DefaultBlockMinutes: 60,
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "",
		LogLevel:    "info",
		RefreshCron: "*/15 * * * *",
		ShowAllDay:  true,
		CacheDir:    "./cache/ics-cache",
		Grid:        DefaultGrid(),
		ICS:         []ICSConfig{},
		ImportDirs:  []string{},
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache/ics-cache"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.ImportDirs == nil {
		c.ImportDirs = []string{}
	}
	c.Grid.normalize()
}

func (g *GridConfig) normalize() {
	def := DefaultGrid()

	if g.StartHour < 0 || g.StartHour > 23 {
		g.StartHour = def.StartHour
	}
	if g.EndHour <= g.StartHour || g.EndHour > 24 {
		g.EndHour = def.EndHour
		if g.EndHour <= g.StartHour {
			g.StartHour = def.StartHour
		}
	}
	// Snap must divide an hour so grid lines stay aligned.
	if g.SnapMinutes <= 0 || 60%g.SnapMinutes != 0 {
		g.SnapMinutes = def.SnapMinutes
	}
	if g.ColumnWidth <= 0 {
		g.ColumnWidth = def.ColumnWidth
	}
	if g.OriginX < 0 {
		g.OriginX = def.OriginX
	}
	if g.OriginY < 0 {
		g.OriginY = def.OriginY
	}
	if g.BasePixelsPerHour <= 0 {
		g.BasePixelsPerHour = def.BasePixelsPerHour
	}
	if g.MinPixelsPerHour <= 0 || g.MinPixelsPerHour > g.BasePixelsPerHour {
		g.MinPixelsPerHour = g.BasePixelsPerHour / 2
	}
	if g.MaxPixelsPerHour < g.BasePixelsPerHour {
		g.MaxPixelsPerHour = g.BasePixelsPerHour * 3
	}
	if g.ZoomStep <= 0 {
		g.ZoomStep = def.ZoomStep
	}
	if g.MinBlockMinutes < g.SnapMinutes {
		g.MinBlockMinutes = g.SnapMinutes
	}
	if g.DefaultBlockMinutes < g.MinBlockMinutes {
		g.DefaultBlockMinutes = max(def.DefaultBlockMinutes, g.MinBlockMinutes)
	}
}

// Location resolves Timezone, falling back to time.Local when it is empty
// or unknown.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// ResolvePath picks the config path from the flag value, the environment,
// then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvPath); v != "" {
		return v
	}
	return DefaultPath
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Start from defaults so omitted keys (e.g. show_all_day) keep them.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekplan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
