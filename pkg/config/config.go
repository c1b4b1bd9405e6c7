package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Delivery modes.
const (
	ModeDirect = "direct"
	ModeClick  = "click"
)

// Config holds all configuration options for a sync run
type Config struct {
	Site      SiteConfig      `yaml:"site" json:"site"`
	Selectors SelectorConfig  `yaml:"selectors" json:"selectors"`
	Scroll    ScrollConfig    `yaml:"scroll" json:"scroll"`
	Delivery  DeliveryConfig  `yaml:"delivery" json:"delivery"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Run       RunConfig       `yaml:"run" json:"run"`
	UI        UIConfig        `yaml:"ui" json:"ui"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SiteConfig locates the setup site. Paths may also be absolute URLs.
type SiteConfig struct {
	BaseURL         string        `yaml:"base_url" json:"base_url"`
	LoginPath       string        `yaml:"login_path" json:"login_path"`
	SetupsPath      string        `yaml:"setups_path" json:"setups_path"`
	DashboardMarker string        `yaml:"dashboard_marker" json:"dashboard_marker"`
	LoginTimeout    time.Duration `yaml:"login_timeout" json:"login_timeout"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
}

// LoginURL returns the absolute login page address.
func (s SiteConfig) LoginURL() string {
	return s.resolve(s.LoginPath)
}

// SetupsURL returns the absolute listing page address.
func (s SiteConfig) SetupsURL() string {
	return s.resolve(s.SetupsPath)
}

func (s SiteConfig) resolve(p string) string {
	ref, err := url.Parse(p)
	if err != nil {
		return p
	}
	if ref.IsAbs() {
		return p
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return p
	}
	return base.ResolveReference(ref).String()
}

// SelectorConfig is the set of document queries and phrases that describe the
// listing page. Markers are CSS selectors with an optional text filter; the
// click-through controls are XPath expressions.
type SelectorConfig struct {
	ActiveMarker         string `yaml:"active_marker" json:"active_marker"`
	InactiveHeader       string `yaml:"inactive_header" json:"inactive_header"`
	InactiveText         string `yaml:"inactive_text" json:"inactive_text"`
	PaidSectionText      string `yaml:"paid_section_text" json:"paid_section_text"`
	DownloadButton       string `yaml:"download_button" json:"download_button"`
	ManualDownloadButton string `yaml:"manual_download_button" json:"manual_download_button"`
	DownloadErrorNotice  string `yaml:"download_error_notice" json:"download_error_notice"`
}

// ScrollConfig tunes the lazy-load scroll loop.
type ScrollConfig struct {
	ActiveWait            time.Duration `yaml:"active_wait" json:"active_wait"`
	Settle                time.Duration `yaml:"settle" json:"settle"`
	Grace                 time.Duration `yaml:"grace" json:"grace"`
	ExtraInactiveSections int           `yaml:"extra_inactive_sections" json:"extra_inactive_sections"`
	MaxScrolls            int           `yaml:"max_scrolls" json:"max_scrolls"`
}

// DeliveryConfig selects and tunes the archive delivery strategy
type DeliveryConfig struct {
	Mode           string        `yaml:"mode" json:"mode"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	ChunkSize      int           `yaml:"chunk_size" json:"chunk_size"`
	ClickAttempts  int           `yaml:"click_attempts" json:"click_attempts"`
	ClickTimeout   time.Duration `yaml:"click_timeout" json:"click_timeout"`
	RetryWait      time.Duration `yaml:"retry_wait" json:"retry_wait"`
	ErrorWait      time.Duration `yaml:"error_wait" json:"error_wait"`
	FileWait       time.Duration `yaml:"file_wait" json:"file_wait"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	SettleWait     time.Duration `yaml:"settle_wait" json:"settle_wait"`
}

// OutputConfig describes where and how archives are installed
type OutputConfig struct {
	Root            string `yaml:"root" json:"root"`
	Subfolder       string `yaml:"subfolder" json:"subfolder"`
	ScratchDir      string `yaml:"scratch_dir" json:"scratch_dir"`
	DiagnosticsDir  string `yaml:"diagnostics_dir" json:"diagnostics_dir"`
	SetupExtension  string `yaml:"setup_extension" json:"setup_extension"`
	RaceMarker      string `yaml:"race_marker" json:"race_marker"`
	SubfolderMarker string `yaml:"subfolder_marker" json:"subfolder_marker"`
}

// BrowserConfig controls the Chrome instance
type BrowserConfig struct {
	Headless     bool   `yaml:"headless" json:"headless"`
	UserDataDir  string `yaml:"user_data_dir" json:"user_data_dir"`
	DownloadDir  string `yaml:"download_dir" json:"download_dir"`
	ExecPath     string `yaml:"exec_path" json:"exec_path"`
	WindowWidth  int    `yaml:"window_width" json:"window_width"`
	WindowHeight int    `yaml:"window_height" json:"window_height"`
}

// RunConfig holds per-run pacing and bookkeeping
type RunConfig struct {
	ItemDelay time.Duration `yaml:"item_delay" json:"item_delay"`
	ReportDir string        `yaml:"report_dir" json:"report_dir"`
}

// UIConfig holds presentation preferences
type UIConfig struct {
	TUI           bool `yaml:"tui" json:"tui"`
	Notifications bool `yaml:"notifications" json:"notifications"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	itemDelay := 1 * time.Second

	return &Config{
		Site: SiteConfig{
			BaseURL:         "https://app.tracktitan.io",
			LoginPath:       "/login",
			SetupsPath:      "/setups",
			DashboardMarker: "/dashboard",
			LoginTimeout:    5 * time.Minute,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		Selectors: SelectorConfig{
			ActiveMarker:         "span.text-green-500",
			InactiveHeader:       "div.text-2xl",
			InactiveText:         "(Inactive)",
			PaidSectionText:      "HYMO iRacing Bundles",
			DownloadButton:       "//button[contains(text(), 'Download Latest Version')]",
			ManualDownloadButton: "//button[contains(text(), 'Download Manually')]",
			DownloadErrorNotice:  "//div[contains(text(), 'There was an issue downloading this setup')]",
		},
		Scroll: ScrollConfig{
			ActiveWait:            20 * time.Second,
			Settle:                itemDelay + 2*time.Second,
			Grace:                 itemDelay + 1*time.Second,
			ExtraInactiveSections: 2,
			MaxScrolls:            0,
		},
		Delivery: DeliveryConfig{
			Mode:           ModeDirect,
			RequestTimeout: 2 * time.Minute,
			ChunkSize:      32 * 1024,
			ClickAttempts:  2,
			ClickTimeout:   10 * time.Second,
			RetryWait:      2 * time.Second,
			ErrorWait:      5 * time.Second,
			FileWait:       60 * time.Second,
			PollInterval:   500 * time.Millisecond,
			SettleWait:     2 * time.Second,
		},
		Output: OutputConfig{
			Root:            filepath.Join(home, "Documents", "iRacing", "setups"),
			SetupExtension:  ".sto",
			RaceMarker:      "_sR",
			SubfolderMarker: "Garage 61",
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserDataDir:  filepath.Join(home, ".config", "setupsync", "chrome"),
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Run: RunConfig{
			ItemDelay: itemDelay,
			ReportDir: filepath.Join(home, ".local", "share", "setupsync"),
		},
		UI: UIConfig{
			TUI:           false,
			Notifications: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Legacy overrides for the two site addresses
	if v := os.Getenv("TRACK_TITAN_SETUP_PAGE"); v != "" {
		c.Site.SetupsPath = v
	}
	if v := os.Getenv("TRACK_TITAN_LOGIN_URL"); v != "" {
		c.Site.LoginPath = v
	}

	setString(&c.Site.BaseURL, "SETUPSYNC_BASE_URL")
	setString(&c.Site.SetupsPath, "SETUPSYNC_SETUPS_PATH")
	setString(&c.Site.LoginPath, "SETUPSYNC_LOGIN_PATH")
	setString(&c.Site.UserAgent, "SETUPSYNC_USER_AGENT")
	setString(&c.Output.Root, "SETUPSYNC_OUTPUT_DIR")
	setString(&c.Output.Subfolder, "SETUPSYNC_SUBFOLDER")
	setString(&c.Delivery.Mode, "SETUPSYNC_DELIVERY_MODE")
	setString(&c.Browser.UserDataDir, "SETUPSYNC_USER_DATA_DIR")
	setString(&c.Browser.DownloadDir, "SETUPSYNC_DOWNLOAD_DIR")
	setString(&c.Browser.ExecPath, "SETUPSYNC_CHROME_PATH")
	setString(&c.Logging.Level, "SETUPSYNC_LOG_LEVEL")
	setString(&c.Logging.File, "SETUPSYNC_LOG_FILE")

	if v := os.Getenv("SETUPSYNC_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SETUPSYNC_HEADLESS: %w", err))
		} else {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("SETUPSYNC_NOTIFICATIONS"); v != "" {
		c.UI.Notifications = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("SETUPSYNC_ITEM_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SETUPSYNC_ITEM_DELAY: %w", err))
		} else {
			c.Run.ItemDelay = d
		}
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ConfigLocations lists the files searched when no path is given, in order.
func ConfigLocations() []string {
	home := os.Getenv("HOME")
	return []string{
		"setupsync.yaml",
		".setupsync.yaml",
		".setupsync.yml",
		filepath.Join(home, ".config", "setupsync", "config.yaml"),
		filepath.Join(home, ".config", "setupsync", "config.yml"),
	}
}

// FindConfigFile returns the first existing default config file, or "".
func FindConfigFile() string {
	for _, loc := range ConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(c.Site.SetupsURL()); err != nil {
		errs = append(errs, fmt.Errorf("invalid setups page address: %w", err))
	}
	if c.Site.DashboardMarker == "" {
		errs = append(errs, errors.New("dashboard marker is required"))
	}

	if c.Selectors.ActiveMarker == "" {
		errs = append(errs, errors.New("active section marker is required"))
	}
	if c.Selectors.InactiveHeader == "" {
		errs = append(errs, errors.New("inactive section header is required"))
	}

	if c.Scroll.ActiveWait <= 0 {
		errs = append(errs, errors.New("active section wait must be positive"))
	}
	if c.Scroll.Settle < 0 || c.Scroll.Grace < 0 {
		errs = append(errs, errors.New("scroll settle and grace cannot be negative"))
	}
	if c.Scroll.ExtraInactiveSections < 1 {
		errs = append(errs, errors.New("extra inactive sections must be at least 1"))
	}
	if c.Scroll.MaxScrolls < 0 {
		errs = append(errs, errors.New("max scrolls cannot be negative"))
	}

	switch c.Delivery.Mode {
	case ModeDirect:
		if c.Delivery.ChunkSize <= 0 {
			errs = append(errs, errors.New("chunk size must be positive"))
		}
		if c.Delivery.RequestTimeout <= 0 {
			errs = append(errs, errors.New("request timeout must be positive"))
		}
	case ModeClick:
		if c.Delivery.ClickAttempts < 1 {
			errs = append(errs, errors.New("click attempts must be at least 1"))
		}
		if c.Delivery.FileWait <= 0 || c.Delivery.PollInterval <= 0 {
			errs = append(errs, errors.New("file wait and poll interval must be positive"))
		}
		if c.Selectors.DownloadButton == "" {
			errs = append(errs, errors.New("download button selector is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid delivery mode %q (want %s or %s)", c.Delivery.Mode, ModeDirect, ModeClick))
	}

	if c.Output.Root == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.SetupExtension == "" {
		errs = append(errs, errors.New("setup file extension is required"))
	}
	if strings.ContainsAny(c.Output.Subfolder, `/\`) {
		errs = append(errs, errors.New("subfolder must be a single path segment"))
	}

	if c.Run.ItemDelay < 0 {
		errs = append(errs, errors.New("item delay cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// DownloadDir is where the browser saves click-through downloads. It defaults
// to the output root.
func (c *Config) DownloadDir() string {
	if c.Browser.DownloadDir != "" {
		return c.Browser.DownloadDir
	}
	return c.Output.Root
}

// DiagnosticsDir is where page snapshots are written. It defaults to the
// output root.
func (c *Config) DiagnosticsDir() string {
	if c.Output.DiagnosticsDir != "" {
		return c.Output.DiagnosticsDir
	}
	return c.Output.Root
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys match the cobra flag names; only flags the user changed are passed.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Root = v
	}
	if v, ok := flags["subfolder"].(string); ok {
		c.Output.Subfolder = v
	}
	if v, ok := flags["mode"].(string); ok && v != "" {
		c.Delivery.Mode = v
	}
	if v, ok := flags["delay"].(time.Duration); ok && v >= 0 {
		c.Run.ItemDelay = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["tui"].(bool); ok {
		c.UI.TUI = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.UI.Notifications = v
	}
	if v, ok := flags["setups-url"].(string); ok && v != "" {
		c.Site.SetupsPath = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// followItemDelay re-derives the settle and grace waits from delay when no
// source overrode their defaults.
func (s *ScrollConfig) followItemDelay(defaults ScrollConfig, delay time.Duration) {
	if s.Settle == defaults.Settle {
		s.Settle = delay + 2*time.Second
	}
	if s.Grace == defaults.Grace {
		s.Grace = delay + 1*time.Second
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".setupsync.env"))

	config := DefaultConfig()
	defaults := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)
	config.Scroll.followItemDelay(defaults.Scroll, config.Run.ItemDelay)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
