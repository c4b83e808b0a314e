package scenario

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/browser"
)

// PageSource resolves the page steps act on. *browser.PageCursor is the
// production implementation.
type PageSource interface {
	Active() (browser.Page, error)
}

// ExecutorConfig holds the bounds applied to every step unless the step
// overrides them.
type ExecutorConfig struct {
	BaseURL       string
	ActionTimeout time.Duration
	// Dwell is the settle delay before a targeted action.
	Dwell time.Duration
	// PollInterval paces ready_when checks.
	PollInterval time.Duration
}

// Executor runs the steps of a scenario strictly in order against the
// active page. Steps are never retried or skipped.
type Executor struct {
	cfg        ExecutorConfig
	pages      PageSource
	stabilizer *browser.Stabilizer
	logger     *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig, pages PageSource, stabilizer *browser.Stabilizer, logger *zap.Logger) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Executor{
		cfg:        cfg,
		pages:      pages,
		stabilizer: stabilizer,
		logger:     logger.Named("executor"),
	}
}

// Run executes steps. The first failure aborts the sequence and is returned
// as a *StepError.
func (e *Executor) Run(ctx context.Context, steps []schemas.Step) error {
	for i, step := range steps {
		logger := e.logger.With(
			zap.Int("step", i+1),
			zap.String("step_id", step.Label()),
			zap.String("action", string(step.Action)),
		)
		if err := ctx.Err(); err != nil {
			return &StepError{Index: i, Step: step, Err: err}
		}

		start := time.Now()
		if err := e.runStep(ctx, logger, step); err != nil {
			logger.Warn("Step failed.", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			return &StepError{Index: i, Step: step, Err: err}
		}
		logger.Debug("Step completed.", zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

func (e *Executor) runStep(ctx context.Context, logger *zap.Logger, step schemas.Step) error {
	// Resolved per step: an earlier step may have opened a tab.
	page, err := e.pages.Active()
	if err != nil {
		return err
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.cfg.ActionTimeout
	}

	switch step.Action {
	case schemas.ActionClick, schemas.ActionFill:
		loc := page.Locator(step.Target).Nth(step.Nth)
		if err := e.settle(ctx, logger, page, step); err != nil {
			return err
		}
		if step.Action == schemas.ActionClick {
			return loc.Click(ctx, timeout)
		}
		return loc.Fill(ctx, step.Value, timeout)

	case schemas.ActionScroll:
		scrollCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return page.ScrollViewport(scrollCtx)

	case schemas.ActionNavigate:
		target, err := ResolveURL(e.cfg.BaseURL, step.URL)
		if err != nil {
			return err
		}
		report, err := e.stabilizer.Navigate(ctx, page, target)
		if err != nil {
			return err
		}
		if !report.Settled() {
			logger.Debug("Navigation did not fully settle.", zap.Int("degraded_frames", len(report.Degraded())))
		}
		return nil

	case schemas.ActionWait:
		return sleep(ctx, step.Duration)

	default:
		return fmt.Errorf("unsupported action %q", step.Action)
	}
}

// settle lets the UI catch up with the previous step. With a ready_when
// locator the dwell is an upper bound; otherwise it is a fixed pause.
func (e *Executor) settle(ctx context.Context, logger *zap.Logger, page browser.Page, step schemas.Step) error {
	dwell := e.cfg.Dwell
	if step.Dwell != nil {
		dwell = *step.Dwell
	}
	if dwell <= 0 {
		return nil
	}
	if step.ReadyWhen == "" {
		return sleep(ctx, dwell)
	}

	ready, err := e.awaitReady(ctx, page.Locator(step.ReadyWhen), dwell)
	if err != nil {
		return err
	}
	if !ready {
		// Not fatal: the action itself is still bounded.
		logger.Debug("Readiness predicate not met within dwell.",
			zap.String("ready_when", step.ReadyWhen),
			zap.Duration("dwell", dwell),
		)
	}
	return nil
}

// awaitReady polls loc until it is visible or bound elapses. Only the
// cancellation of ctx is returned as an error.
func (e *Executor) awaitReady(ctx context.Context, loc browser.Locator, bound time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(e.cfg.PollInterval), 1)
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			break
		}
		if visible, err := loc.IsVisible(waitCtx); err == nil && visible {
			return true, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, nil
}

// ResolveURL resolves ref against base. Absolute references are returned
// unchanged and an empty reference yields base.
func ResolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
