// Package drivers selects the automation driver named by configuration.
package drivers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/browser/cdpdriver"
	"github.com/xkilldash9x/uiprobe/internal/browser/pwdriver"
	"github.com/xkilldash9x/uiprobe/internal/config"
)

// New returns the driver configured in cfg.
func New(cfg config.BrowserConfig, logger *zap.Logger) (browser.Driver, error) {
	switch cfg.Driver {
	case config.DriverPlaywright, "":
		return pwdriver.New(pwdriver.Options{
			Install:  cfg.Install,
			Browsers: []string{cfg.Engine},
		}, logger), nil
	case config.DriverCDP:
		return cdpdriver.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

// SessionOptions maps configuration onto the options of a session.
func SessionOptions(cfg *config.Config) browser.SessionOptions {
	return browser.SessionOptions{
		Launch: browser.LaunchOptions{
			Engine:   cfg.Browser.Engine,
			Headless: cfg.Browser.Headless,
			Args:     cfg.Browser.LaunchArgs(),
			ExecPath: cfg.Browser.ExecPath,
			Timeout:  cfg.Timeouts.Launch,
		},
		Context: browser.ContextOptions{
			ViewportWidth:  cfg.Browser.Viewport.Width,
			ViewportHeight: cfg.Browser.Viewport.Height,
			DefaultTimeout: cfg.Timeouts.Default,
		},
	}
}
