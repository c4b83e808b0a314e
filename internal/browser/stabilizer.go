package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Readiness is the typed, non-fatal result of a best-effort readiness wait.
type Readiness int

const (
	ReadinessLoaded Readiness = iota
	ReadinessTimedOut
	ReadinessFailed
)

func (r Readiness) String() string {
	switch r {
	case ReadinessLoaded:
		return "loaded"
	case ReadinessTimedOut:
		return "timed_out"
	case ReadinessFailed:
		return "failed"
	default:
		return fmt.Sprintf("readiness(%d)", int(r))
	}
}

// MarshalText renders the readiness by name in reports.
func (r Readiness) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// FrameReadiness records how one frame fared during stabilization.
type FrameReadiness struct {
	Name      string        `json:"name,omitempty"`
	URL       string        `json:"url"`
	Main      bool          `json:"main"`
	Readiness Readiness     `json:"readiness"`
	Elapsed   time.Duration `json:"elapsed"`
	Err       error         `json:"-"`
}

// NavigationReport summarises a navigation. The first entry of Frames is
// always the main document.
type NavigationReport struct {
	URL    string           `json:"url"`
	Frames []FrameReadiness `json:"frames"`
}

// Settled reports whether every frame reached the target load state.
func (r NavigationReport) Settled() bool {
	for _, f := range r.Frames {
		if f.Readiness != ReadinessLoaded {
			return false
		}
	}
	return true
}

// Degraded returns the frames that did not reach the target load state.
func (r NavigationReport) Degraded() []FrameReadiness {
	var out []FrameReadiness
	for _, f := range r.Frames {
		if f.Readiness != ReadinessLoaded {
			out = append(out, f)
		}
	}
	return out
}

// StabilizerConfig bounds each phase of a navigation.
type StabilizerConfig struct {
	CommitTimeout    time.Duration
	ReadinessTimeout time.Duration
	// State is the load state waited for after commit. Defaults to domcontentloaded.
	State LoadState
}

// Stabilizer navigates with commit semantics and then waits, best effort, for
// the main document and every attached frame to become ready.
type Stabilizer struct {
	cfg    StabilizerConfig
	logger *zap.Logger
}

// NewStabilizer creates a Stabilizer.
func NewStabilizer(cfg StabilizerConfig, logger *zap.Logger) *Stabilizer {
	if cfg.State == "" {
		cfg.State = LoadStateDOMContentLoaded
	}
	return &Stabilizer{cfg: cfg, logger: logger.Named("stabilizer")}
}

// Navigate loads url in page. Only a failure to commit is returned as an
// error; readiness shortfalls are recorded in the report.
func (s *Stabilizer) Navigate(ctx context.Context, page Page, url string) (NavigationReport, error) {
	start := time.Now()
	if err := page.Goto(ctx, url, s.cfg.CommitTimeout); err != nil {
		return NavigationReport{URL: url}, fmt.Errorf("navigation to %s did not commit: %w", url, err)
	}
	s.logger.Debug("Navigation committed.", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))

	report := s.Settle(ctx, page)
	report.URL = url
	return report, nil
}

// Settle waits for the main document first, then for every child frame
// concurrently. Each wait has its own bound and none of them can fail the caller.
func (s *Stabilizer) Settle(ctx context.Context, page Page) NavigationReport {
	report := NavigationReport{URL: page.URL()}
	report.Frames = append(report.Frames, s.waitFrame(ctx, page.MainFrame(), true))

	frames := page.Frames()
	if len(frames) <= 1 {
		s.logReport(report)
		return report
	}

	children := frames[1:]
	results := make([]FrameReadiness, len(children))
	var g errgroup.Group
	for i, f := range children {
		g.Go(func() error {
			results[i] = s.waitFrame(ctx, f, false)
			return nil
		})
	}
	_ = g.Wait()

	report.Frames = append(report.Frames, results...)
	s.logReport(report)
	return report
}

func (s *Stabilizer) waitFrame(ctx context.Context, f Frame, main bool) FrameReadiness {
	start := time.Now()
	err := f.WaitForLoadState(ctx, s.cfg.State, s.cfg.ReadinessTimeout)
	res := FrameReadiness{
		Name:    f.Name(),
		URL:     f.URL(),
		Main:    main,
		Elapsed: time.Since(start),
		Err:     err,
	}
	switch {
	case err == nil:
		res.Readiness = ReadinessLoaded
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		res.Readiness = ReadinessTimedOut
	default:
		res.Readiness = ReadinessFailed
	}
	return res
}

func (s *Stabilizer) logReport(r NavigationReport) {
	degraded := r.Degraded()
	if len(degraded) == 0 {
		s.logger.Debug("Page settled.", zap.String("url", r.URL), zap.Int("frames", len(r.Frames)))
		return
	}
	for _, f := range degraded {
		// Non-fatal: the page may still be usable.
		s.logger.Debug("Frame readiness wait did not complete.",
			zap.String("frame_url", f.URL),
			zap.Bool("main", f.Main),
			zap.Stringer("readiness", f.Readiness),
			zap.Duration("elapsed", f.Elapsed),
			zap.Error(f.Err),
		)
	}
}
