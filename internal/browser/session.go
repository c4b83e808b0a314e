package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SessionOptions configures the browser and context of a session.
type SessionOptions struct {
	Launch  LaunchOptions
	Context ContextOptions
}

// Session owns the host, browser and isolated context of a single scenario
// run. It is never shared between runs.
type Session struct {
	id     string
	logger *zap.Logger

	host    Host
	browser Browser
	context Context
	cursor  *PageCursor

	releaseOnce sync.Once
	teardownErr error
}

// Acquire brings up a fresh host, browser, context and first page. On any
// failure the already acquired resources are released and an
// *EnvironmentError is returned.
func Acquire(ctx context.Context, driver Driver, opts SessionOptions, logger *zap.Logger) (_ *Session, err error) {
	id := uuid.NewString()
	s := &Session{
		id:     id,
		logger: logger.Named("session").With(zap.String("session_id", id), zap.String("driver", driver.Name())),
	}
	s.cursor = NewPageCursor(s.logger)

	defer func() {
		if err != nil {
			s.Release()
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, &EnvironmentError{Stage: StageStartHost, Err: err}
	}

	s.host, err = driver.Start(ctx)
	if err != nil {
		return nil, &EnvironmentError{Stage: StageStartHost, Err: err}
	}

	s.browser, err = s.host.Launch(ctx, opts.Launch)
	if err != nil {
		return nil, &EnvironmentError{Stage: StageLaunchBrowser, Err: err}
	}

	s.context, err = s.browser.NewContext(ctx, opts.Context)
	if err != nil {
		return nil, &EnvironmentError{Stage: StageOpenContext, Err: err}
	}
	// Subscribe before the first page exists so no page-opened event is missed.
	s.context.OnPage(s.cursor.Track)

	page, err := s.context.NewPage(ctx)
	if err != nil {
		return nil, &EnvironmentError{Stage: StageOpenPage, Err: err}
	}
	s.cursor.Track(page)

	s.logger.Info("Session acquired.",
		zap.String("engine", opts.Launch.Engine),
		zap.Bool("headless", opts.Launch.Headless),
		zap.Strings("args", opts.Launch.Args),
		zap.Int("viewport_width", opts.Context.ViewportWidth),
		zap.Int("viewport_height", opts.Context.ViewportHeight),
	)
	return s, nil
}

// WithSession acquires a session, runs fn, and releases the session on every
// exit path including panics.
func WithSession(ctx context.Context, driver Driver, opts SessionOptions, logger *zap.Logger, fn func(ctx context.Context, s *Session) error) error {
	s, err := Acquire(ctx, driver, opts, logger)
	if err != nil {
		return err
	}
	defer s.Release()
	return fn(ctx, s)
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// Cursor exposes the active page tracker.
func (s *Session) Cursor() *PageCursor { return s.cursor }

// ActivePage returns the most recently opened page that is still open.
func (s *Session) ActivePage() (Page, error) { return s.cursor.Active() }

// Release tears the session down innermost first: context, browser, host.
// It runs at most once; subsequent calls are no-ops. Close failures are
// logged and never returned.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		var errs error
		if s.context != nil {
			if err := s.context.Close(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to close context: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		}
		if s.host != nil {
			if err := s.host.Stop(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to stop automation host: %w", err))
			}
		}
		s.teardownErr = errs

		if errs != nil {
			s.logger.Warn("Session released with errors.", zap.Errors("errors", multierr.Errors(errs)))
			return
		}
		s.logger.Debug("Session released.")
	})
}

// TeardownErr returns the errors swallowed by Release, if any.
func (s *Session) TeardownErr() error { return s.teardownErr }
