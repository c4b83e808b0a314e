package scenario

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/config"
)

// Status classifies a Result.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// Result is the record of one scenario run.
type Result struct {
	RunID    string           `json:"run_id"`
	Scenario string           `json:"scenario"`
	Status   Status           `json:"status"`
	Outcome  *schemas.Outcome `json:"outcome,omitempty"`
	Error    string           `json:"error,omitempty"`
	// Environment is set when the error came from session acquisition.
	Environment bool                      `json:"environment_error,omitempty"`
	Duration    time.Duration             `json:"duration"`
	Navigation  *browser.NavigationReport `json:"navigation,omitempty"`
	Screenshot  string                    `json:"screenshot,omitempty"`

	Err error `json:"-"`
}

// OK reports whether the run passed.
func (r Result) OK() bool { return r.Status == StatusPass }

// Runner executes scenarios, each in its own session.
type Runner struct {
	driver  browser.Driver
	session browser.SessionOptions
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(driver browser.Driver, session browser.SessionOptions, cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		driver:  driver,
		session: session,
		cfg:     cfg,
		logger:  logger.Named("runner"),
	}
}

// Run executes sc from a fresh session and always releases it. Exactly one of
// Outcome and Err is set on the returned Result.
func (r *Runner) Run(ctx context.Context, sc schemas.Scenario) Result {
	res := Result{RunID: uuid.NewString(), Scenario: sc.Name}
	logger := r.logger.With(zap.String("run_id", res.RunID), zap.String("scenario", sc.Name))
	start := time.Now()

	logger.Info("Scenario started.", zap.Int("steps", len(sc.Steps)), zap.Int("assertions", len(sc.Assertions)))
	err := browser.WithSession(ctx, r.driver, r.session, logger, func(ctx context.Context, s *browser.Session) (err error) {
		defer func() {
			if err != nil || (res.Outcome != nil && !res.Outcome.Passed()) {
				r.capture(ctx, logger, s, &res)
			}
		}()
		outcome, err := r.execute(ctx, logger, s, sc, &res)
		if err != nil {
			return err
		}
		res.Outcome = &outcome
		return nil
	})
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		res.Status = StatusError
		res.Err = err
		res.Error = err.Error()
		var envErr *browser.EnvironmentError
		res.Environment = errors.As(err, &envErr)
		logger.Error("Scenario errored.", zap.Error(err), zap.Duration("duration", res.Duration))
	case res.Outcome.Passed():
		res.Status = StatusPass
		logger.Info("Scenario passed.", zap.Duration("duration", res.Duration))
	default:
		res.Status = StatusFail
		logger.Info("Scenario failed.",
			zap.String("assertion", res.Outcome.AssertionID),
			zap.String("reason", res.Outcome.Reason),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}

func (r *Runner) execute(ctx context.Context, logger *zap.Logger, s *browser.Session, sc schemas.Scenario, res *Result) (schemas.Outcome, error) {
	t := r.cfg.Timeouts
	stabilizer := browser.NewStabilizer(browser.StabilizerConfig{
		CommitTimeout:    t.Navigation,
		ReadinessTimeout: t.Readiness,
	}, logger)

	page, err := s.ActivePage()
	if err != nil {
		return schemas.Outcome{}, err
	}
	startURL, err := ResolveURL(r.cfg.Target.BaseURL, sc.StartPath)
	if err != nil {
		return schemas.Outcome{}, err
	}
	report, err := stabilizer.Navigate(ctx, page, startURL)
	res.Navigation = &report
	if err != nil {
		return schemas.Outcome{}, err
	}

	executor := NewExecutor(ExecutorConfig{
		BaseURL:       r.cfg.Target.BaseURL,
		ActionTimeout: t.Action,
		Dwell:         t.Dwell,
		PollInterval:  t.PollInterval,
	}, s.Cursor(), stabilizer, logger)
	if err := executor.Run(ctx, sc.Steps); err != nil {
		return schemas.Outcome{}, err
	}

	page, err = s.ActivePage()
	if err != nil {
		return schemas.Outcome{}, err
	}
	outcome, err := NewEvaluator(t.Assertion, logger).Evaluate(ctx, page, sc.Assertions)
	if err != nil {
		return schemas.Outcome{}, err
	}

	if t.Hold > 0 {
		logger.Debug("Holding page open.", zap.Duration("hold", t.Hold))
		_ = sleep(ctx, t.Hold)
	}
	return outcome, nil
}

// capture saves a screenshot of the active page when enabled. Failures are
// logged; they never change the result.
func (r *Runner) capture(ctx context.Context, logger *zap.Logger, s *browser.Session, res *Result) {
	if !r.cfg.Artifacts.ScreenshotOnFailure {
		return
	}
	page, err := s.ActivePage()
	if err != nil {
		return
	}
	dir, err := homedir.Expand(r.cfg.Artifacts.Dir)
	if err != nil {
		logger.Warn("Invalid artifacts directory.", zap.Error(err))
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", res.Scenario, res.RunID))
	// The run context may already be canceled; the capture gets its own bound.
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeouts.Default)
	defer cancel()
	if err := page.Screenshot(captureCtx, path); err != nil {
		logger.Warn("Failed to capture screenshot.", zap.Error(err))
		return
	}
	res.Screenshot = path
	logger.Info("Screenshot captured.", zap.String("path", path))
}

// RunAll runs scenarios one after another. It stops early only when ctx is
// done.
func (r *Runner) RunAll(ctx context.Context, scenarios []schemas.Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.Run(ctx, sc))
	}
	return results
}
