package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "~/.config/lswitch/config.toml"

type Config struct {
	AppID    string         `toml:"app_id"`
	CacheDir string         `toml:"cache_dir"`
	Switcher SwitcherConfig `toml:"switcher"`
	Search   SearchConfig   `toml:"search"`
	Preview  PreviewConfig  `toml:"preview"`
	Window   WindowConfig   `toml:"window"`
	Apps     AppsConfig     `toml:"apps"`
	Sway     SwayConfig     `toml:"sway"`
	Styling  StylingConfig  `toml:"styling"`
}

type SwitcherConfig struct {
	SocketPath string `toml:"socket_path"`
	LogFile    string `toml:"log_file"`
	// Parallelism bounds concurrent per-process enumeration.
	Parallelism int `toml:"parallelism"`
}

type SearchConfig struct {
	Threshold     int `toml:"threshold"`
	MaxResults    int `toml:"max_results"` // 0 means unlimited
	ScoreMemoSize int `toml:"score_memo_size"`
}

type PreviewConfig struct {
	Enabled        bool   `toml:"enabled"`
	CacheSize      int    `toml:"cache_size"`
	Workers        int    `toml:"workers"`
	CaptureTimeout int    `toml:"capture_timeout"` // milliseconds
	MaxWidth       int    `toml:"max_width"`
	CaptureCommand string `toml:"capture_command"`
}

type WindowConfig struct {
	Width     int `toml:"width"`
	Height    int `toml:"height"`
	TopMargin int `toml:"top_margin"`
}

type AppsConfig struct {
	ScanUserDir      bool     `toml:"scan_user_dir"`
	ScanSystemDirs   bool     `toml:"scan_system_dirs"`
	ExtraDirs        []string `toml:"extra_dirs"`
	CacheFile        string   `toml:"cache_file"`
	CacheMaxAgeHours int      `toml:"cache_max_age_hours"`
	IconSize         int      `toml:"icon_size"`
	IconCacheSize    int      `toml:"icon_cache_size"`
}

type SwayConfig struct {
	MsgCommand string `toml:"msg_command"`
}

type StylingConfig struct {
	BackgroundColor string `toml:"background_color"`
	ForegroundColor string `toml:"foreground_color"`
	BorderColor     string `toml:"border_color"`
	SelectedColor   string `toml:"selected_color"`
	HighlightColor  string `toml:"highlight_color"`
	FontFamily      string `toml:"font_family"`
	FontSize        int    `toml:"font_size"`
	BorderRadius    int    `toml:"border_radius"`
	CustomCSS       string `toml:"custom_css"`
}

var DefaultConfig = Config{
	AppID:    "com.github.chess10kp.lswitch",
	CacheDir: "~/.cache/lswitch",
	Switcher: SwitcherConfig{
		SocketPath:  "/tmp/lswitch_socket",
		LogFile:     "",
		Parallelism: 8,
	},
	Search: SearchConfig{
		Threshold:     3,
		MaxResults:    0,
		ScoreMemoSize: 100,
	},
	Preview: PreviewConfig{
		Enabled:        true,
		CacheSize:      64,
		Workers:        2,
		CaptureTimeout: 2000,
		MaxWidth:       480,
		CaptureCommand: "grim",
	},
	Window: WindowConfig{
		Width:     900,
		Height:    500,
		TopMargin: 120,
	},
	Apps: AppsConfig{
		ScanUserDir:      true,
		ScanSystemDirs:   true,
		ExtraDirs:        []string{},
		CacheFile:        "apps.json",
		CacheMaxAgeHours: 24,
		IconSize:         24,
		IconCacheSize:    200,
	},
	Sway: SwayConfig{
		MsgCommand: "",
	},
	Styling: StylingConfig{
		BackgroundColor: "#0e1419",
		ForegroundColor: "#ebdbb2",
		BorderColor:     "#444444",
		SelectedColor:   "#3c3836",
		HighlightColor:  "#fabd2f",
		FontFamily:      "monospace",
		FontSize:        14,
		BorderRadius:    6,
		CustomCSS:       "~/.config/lswitch/style.css",
	},
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	expandedPath := expandPath(path)

	cfg := DefaultConfig
	cfg.Apps.ExtraDirs = append([]string(nil), DefaultConfig.Apps.ExtraDirs...)

	if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
		cfg.expandPaths()
		return &cfg, nil
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", expandedPath, err)
	}

	cfg.expandPaths()
	return &cfg, nil
}

func LoadAndValidateConfig(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) expandPaths() {
	c.CacheDir = expandPath(c.CacheDir)
	c.Switcher.SocketPath = expandPath(c.Switcher.SocketPath)
	c.Switcher.LogFile = expandPath(c.Switcher.LogFile)
	c.Styling.CustomCSS = expandPath(c.Styling.CustomCSS)
	for i, dir := range c.Apps.ExtraDirs {
		c.Apps.ExtraDirs[i] = expandPath(dir)
	}
}

// AppsCachePath is where the installed-application list is cached.
func (c *Config) AppsCachePath() string {
	if filepath.IsAbs(c.Apps.CacheFile) {
		return c.Apps.CacheFile
	}
	return filepath.Join(c.CacheDir, c.Apps.CacheFile)
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		usr, err := user.Current()
		if err == nil {
			return filepath.Join(usr.HomeDir, path[1:])
		}
	}
	return path
}

func SaveConfig(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(expandedPath, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.validateSwitcher(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	if err := c.validateWindow(); err != nil {
		return err
	}
	if err := c.validateApps(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSwitcher() error {
	s := c.Switcher
	if s.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty")
	}
	if s.Parallelism < 1 || s.Parallelism > 64 {
		return fmt.Errorf("invalid parallelism: %d (must be 1-64)", s.Parallelism)
	}
	return nil
}

func (c *Config) validateSearch() error {
	s := c.Search
	if s.Threshold < 0 {
		return fmt.Errorf("invalid threshold: %d (must be >= 0)", s.Threshold)
	}
	if s.MaxResults < 0 || s.MaxResults > 1000 {
		return fmt.Errorf("invalid max_results: %d (must be 0-1000)", s.MaxResults)
	}
	if s.ScoreMemoSize < 1 || s.ScoreMemoSize > 10000 {
		return fmt.Errorf("invalid score_memo_size: %d (must be 1-10000)", s.ScoreMemoSize)
	}
	return nil
}

func (c *Config) validatePreview() error {
	p := c.Preview
	if !p.Enabled {
		return nil
	}
	if p.CacheSize < 1 || p.CacheSize > 1000 {
		return fmt.Errorf("invalid preview cache_size: %d (must be 1-1000)", p.CacheSize)
	}
	if p.Workers < 1 || p.Workers > 16 {
		return fmt.Errorf("invalid preview workers: %d (must be 1-16)", p.Workers)
	}
	if p.CaptureTimeout < 100 || p.CaptureTimeout > 30000 {
		return fmt.Errorf("invalid capture_timeout: %d (must be 100-30000ms)", p.CaptureTimeout)
	}
	if p.MaxWidth < 64 || p.MaxWidth > 4000 {
		return fmt.Errorf("invalid preview max_width: %d (must be 64-4000)", p.MaxWidth)
	}
	if p.CaptureCommand == "" {
		return fmt.Errorf("capture_command must not be empty when previews are enabled")
	}
	return nil
}

func (c *Config) validateWindow() error {
	w := c.Window
	if w.Width < 100 || w.Width > 4000 {
		return fmt.Errorf("invalid window width: %d (must be 100-4000)", w.Width)
	}
	if w.Height < 100 || w.Height > 4000 {
		return fmt.Errorf("invalid window height: %d (must be 100-4000)", w.Height)
	}
	if w.TopMargin < 0 || w.TopMargin > 2000 {
		return fmt.Errorf("invalid top_margin: %d (must be 0-2000)", w.TopMargin)
	}
	return nil
}

func (c *Config) validateApps() error {
	a := c.Apps
	if a.CacheMaxAgeHours < 0 {
		return fmt.Errorf("invalid cache_max_age_hours: %d (must be >= 0)", a.CacheMaxAgeHours)
	}
	if a.IconSize < 8 || a.IconSize > 256 {
		return fmt.Errorf("invalid icon_size: %d (must be 8-256)", a.IconSize)
	}
	if a.IconCacheSize < 1 {
		return fmt.Errorf("invalid icon_cache_size: %d (must be >= 1)", a.IconCacheSize)
	}
	return nil
}

func ValidateConfig(path string) error {
	_, err := LoadAndValidateConfig(path)
	return err
}
