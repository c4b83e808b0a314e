// internal/browser/pwdriver/driver.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/browser"
)

const installTimeout = 5 * time.Minute

// Options configures the Playwright driver.
type Options struct {
	// Install downloads the driver and browser binaries before the first start.
	Install bool
	// Browsers lists the engines to install. Defaults to chromium.
	Browsers []string
}

// Driver starts Playwright automation hosts.
type Driver struct {
	opts   Options
	logger *zap.Logger

	installOnce sync.Once
	installErr  error
}

// New creates a Playwright driver.
func New(opts Options, logger *zap.Logger) *Driver {
	if len(opts.Browsers) == 0 {
		opts.Browsers = []string{"chromium"}
	}
	return &Driver{opts: opts, logger: logger.Named("playwright")}
}

func (d *Driver) Name() string { return "playwright" }

// Start runs a Playwright driver process. Each call yields an independent host.
func (d *Driver) Start(ctx context.Context) (browser.Host, error) {
	if d.opts.Install {
		if err := d.ensureInstallation(ctx); err != nil {
			return nil, err
		}
	}

	type result struct {
		pw  *playwright.Playwright
		err error
	}
	done := make(chan result, 1)
	go func() {
		pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
		done <- result{pw, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("failed to start playwright driver: %w", r.err)
		}
		d.logger.Debug("Playwright driver started.")
		return &host{pw: r.pw, logger: d.logger}, nil
	case <-ctx.Done():
		// The driver may still come up; make sure it does not outlive us.
		go func() {
			if r := <-done; r.err == nil {
				_ = r.pw.Stop()
			}
		}()
		return nil, fmt.Errorf("playwright driver start interrupted: %w", ctx.Err())
	}
}

func (d *Driver) ensureInstallation(ctx context.Context) error {
	d.installOnce.Do(func() {
		d.logger.Info("Verifying Playwright browser installation...", zap.Strings("browsers", d.opts.Browsers))
		installCtx, cancel := context.WithTimeout(ctx, installTimeout)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- playwright.Install(&playwright.RunOptions{Browsers: d.opts.Browsers})
		}()

		select {
		case err := <-errCh:
			if err != nil {
				d.installErr = fmt.Errorf("failed to install playwright browsers: %w", err)
			}
		case <-installCtx.Done():
			d.installErr = fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
		}
	})
	return d.installErr
}

// -- Host --

type host struct {
	pw     *playwright.Playwright
	logger *zap.Logger
}

func (h *host) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bt, err := h.browserType(opts.Engine)
	if err != nil {
		return nil, err
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	if opts.Timeout > 0 {
		launch.Timeout = playwright.Float(millis(opts.Timeout))
	}
	if opts.ExecPath != "" {
		launch.ExecutablePath = playwright.String(opts.ExecPath)
	}

	b, err := bt.Launch(launch)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", opts.Engine, translate(err))
	}
	h.logger.Info("Browser launched.", zap.String("engine", opts.Engine), zap.String("browser_version", b.Version()))
	return &browserAdapter{b: b, logger: h.logger}, nil
}

func (h *host) browserType(engine string) (playwright.BrowserType, error) {
	switch engine {
	case "", "chromium":
		return h.pw.Chromium, nil
	case "firefox":
		return h.pw.Firefox, nil
	case "webkit":
		return h.pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported browser engine %q", engine)
	}
}

func (h *host) Stop() error {
	if err := h.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	return nil
}

// -- Browser --

type browserAdapter struct {
	b      playwright.Browser
	logger *zap.Logger
}

func (a *browserAdapter) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bc, err := a.b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", translate(err))
	}
	if opts.DefaultTimeout > 0 {
		bc.SetDefaultTimeout(millis(opts.DefaultTimeout))
	}
	return newContextAdapter(bc, a.logger), nil
}

func (a *browserAdapter) Close() error {
	if err := a.b.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// -- Context --

// contextAdapter hands out one stable wrapper per Playwright page so that
// page identity survives repeated events.
type contextAdapter struct {
	bc     playwright.BrowserContext
	logger *zap.Logger

	mu    sync.Mutex
	pages map[playwright.Page]*page
	seq   int
}

func newContextAdapter(bc playwright.BrowserContext, logger *zap.Logger) *contextAdapter {
	return &contextAdapter{bc: bc, logger: logger, pages: make(map[playwright.Page]*page)}
}

func (c *contextAdapter) wrap(p playwright.Page) *page {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.pages[p]; ok {
		return w
	}
	c.seq++
	w := &page{id: fmt.Sprintf("page-%d", c.seq), p: p}
	c.pages[p] = w
	return w
}

func (c *contextAdapter) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", translate(err))
	}
	return c.wrap(p), nil
}

func (c *contextAdapter) OnPage(fn func(browser.Page)) {
	c.bc.OnPage(func(p playwright.Page) {
		fn(c.wrap(p))
	})
}

func (c *contextAdapter) Close() error {
	if err := c.bc.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}

// -- Helpers --

// millis converts a duration to the float milliseconds Playwright expects.
func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// bound clips d to the time left on ctx so that calls which cannot observe
// ctx still respect its deadline.
func bound(ctx context.Context, d time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			if left <= 0 {
				return 0, context.DeadlineExceeded
			}
			d = left
		}
	}
	return millis(d), nil
}

// translate maps Playwright timeouts onto browser.ErrTimeout.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", browser.ErrTimeout, err)
	}
	return err
}
