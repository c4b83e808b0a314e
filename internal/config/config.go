// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Supported automation drivers.
const (
	DriverPlaywright = "playwright"
	DriverCDP        = "cdp"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts" yaml:"timeouts"`
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Scenarios ScenariosConfig `mapstructure:"scenarios" yaml:"scenarios"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser launched for each scenario.
type BrowserConfig struct {
	// Driver selects the automation host: "playwright" or "cdp".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Engine is the browser family. The cdp driver only supports chromium.
	Engine   string         `mapstructure:"engine" yaml:"engine"`
	Headless bool           `mapstructure:"headless" yaml:"headless"`
	Install  bool           `mapstructure:"install" yaml:"install"`
	ExecPath string         `mapstructure:"exec_path" yaml:"exec_path"`
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport"`

	// Environment hardening for containerised or constrained hosts.
	DisableDevShmUsage bool     `mapstructure:"disable_dev_shm_usage" yaml:"disable_dev_shm_usage"`
	SingleProcess      bool     `mapstructure:"single_process" yaml:"single_process"`
	HostIPC            bool     `mapstructure:"host_ipc" yaml:"host_ipc"`
	Args               []string `mapstructure:"args" yaml:"args"`
}

// ViewportConfig is the fixed page size used by every session.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// LaunchArgs returns the hardening flags followed by any extra arguments,
// without duplicates.
func (b BrowserConfig) LaunchArgs() []string {
	var args []string
	if b.DisableDevShmUsage {
		args = append(args, "--disable-dev-shm-usage")
	}
	if b.SingleProcess {
		args = append(args, "--single-process")
	}
	if b.HostIPC {
		args = append(args, "--ipc=host")
	}
	args = append(args, b.Args...)

	seen := make(map[string]struct{}, len(args))
	out := args[:0]
	for _, arg := range args {
		if _, ok := seen[arg]; ok {
			continue
		}
		seen[arg] = struct{}{}
		out = append(out, arg)
	}
	return out
}

// TimeoutConfig bounds every blocking interaction with the browser.
type TimeoutConfig struct {
	Default      time.Duration `mapstructure:"default" yaml:"default"`
	Launch       time.Duration `mapstructure:"launch" yaml:"launch"`
	Navigation   time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Readiness    time.Duration `mapstructure:"readiness" yaml:"readiness"`
	Action       time.Duration `mapstructure:"action" yaml:"action"`
	Dwell        time.Duration `mapstructure:"dwell" yaml:"dwell"`
	Assertion    time.Duration `mapstructure:"assertion" yaml:"assertion"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Hold keeps the page open after evaluation, mostly useful when headful.
	Hold time.Duration `mapstructure:"hold" yaml:"hold"`
}

// TargetConfig describes the application under test.
type TargetConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// ScenariosConfig locates scenario definitions.
type ScenariosConfig struct {
	// Dir is a directory of scenario YAML files. Empty selects the built-in catalog.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ArtifactsConfig controls what is captured when a scenario does not pass.
type ArtifactsConfig struct {
	Dir                 string `mapstructure:"dir" yaml:"dir"`
	ScreenshotOnFailure bool   `mapstructure:"screenshot_on_failure" yaml:"screenshot_on_failure"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uiprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", DriverPlaywright)
	v.SetDefault("browser.engine", "chromium")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.install", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.disable_dev_shm_usage", true)
	v.SetDefault("browser.single_process", true)
	v.SetDefault("browser.host_ipc", true)
	v.SetDefault("browser.args", []string{})

	// -- Timeouts --
	v.SetDefault("timeouts.default", "5s")
	v.SetDefault("timeouts.launch", "60s")
	v.SetDefault("timeouts.navigation", "10s")
	v.SetDefault("timeouts.readiness", "3s")
	v.SetDefault("timeouts.action", "5s")
	v.SetDefault("timeouts.dwell", "3s")
	v.SetDefault("timeouts.assertion", "5s")
	v.SetDefault("timeouts.poll_interval", "100ms")
	v.SetDefault("timeouts.hold", "0s")

	// -- Target --
	v.SetDefault("target.base_url", "http://localhost:8080")

	// -- Scenarios & Artifacts --
	v.SetDefault("scenarios.dir", "")
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.screenshot_on_failure", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Short aliases for the settings most often overridden in CI.
	v.BindEnv("target.base_url", "UIPROBE_BASE_URL")
	v.BindEnv("browser.driver", "UIPROBE_DRIVER")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	if err := c.Timeouts.Validate(); err != nil {
		return err
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target.base_url must be an absolute http(s) URL, got %q", c.Target.BaseURL)
	}
	return nil
}

// Validate checks the browser section.
func (b *BrowserConfig) Validate() error {
	switch b.Driver {
	case DriverPlaywright, DriverCDP:
	default:
		return fmt.Errorf("browser.driver must be one of %q or %q, got %q", DriverPlaywright, DriverCDP, b.Driver)
	}
	switch b.Engine {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("browser.engine must be chromium, firefox or webkit, got %q", b.Engine)
	}
	if b.Driver == DriverCDP && b.Engine != "chromium" {
		return fmt.Errorf("browser.engine %q is not supported by the cdp driver", b.Engine)
	}
	if b.Viewport.Width <= 0 || b.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport must have a positive width and height")
	}
	return nil
}

// Validate checks that every bound is usable.
func (t *TimeoutConfig) Validate() error {
	bounds := []struct {
		key string
		d   time.Duration
	}{
		{"timeouts.default", t.Default},
		{"timeouts.launch", t.Launch},
		{"timeouts.navigation", t.Navigation},
		{"timeouts.readiness", t.Readiness},
		{"timeouts.action", t.Action},
		{"timeouts.assertion", t.Assertion},
		{"timeouts.poll_interval", t.PollInterval},
	}
	for _, b := range bounds {
		if b.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", b.key)
		}
	}
	if t.Dwell < 0 {
		return fmt.Errorf("timeouts.dwell must not be negative")
	}
	if t.Hold < 0 {
		return fmt.Errorf("timeouts.hold must not be negative")
	}
	return nil
}
