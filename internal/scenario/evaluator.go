package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/browser"
)

// Evaluator turns a scenario's assertion table into an Outcome.
type Evaluator struct {
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// NewEvaluator creates an Evaluator. defaultTimeout bounds assertions that
// do not declare their own.
func NewEvaluator(defaultTimeout time.Duration, logger *zap.Logger) *Evaluator {
	return &Evaluator{defaultTimeout: defaultTimeout, logger: logger.Named("evaluator")}
}

// Evaluate checks each assertion in order against page. The first assertion
// whose target does not become visible in time yields a Fail outcome and the
// remaining assertions are not checked. Host errors other than timeouts are
// returned as *EvaluationError.
func (e *Evaluator) Evaluate(ctx context.Context, page browser.Page, assertions []schemas.Assertion) (schemas.Outcome, error) {
	for _, a := range assertions {
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = e.defaultTimeout
		}

		start := time.Now()
		err := page.Locator(a.Target).Nth(0).WaitVisible(ctx, timeout)
		switch {
		case err == nil:
			e.logger.Debug("Assertion held.", zap.String("assertion", a.ID), zap.Duration("elapsed", time.Since(start)))
		case errors.Is(err, browser.ErrTimeout):
			reason := FailureReason(a, timeout)
			e.logger.Info("Assertion failed.",
				zap.String("assertion", a.ID),
				zap.String("target", a.Target),
				zap.Duration("timeout", timeout),
				zap.String("reason", reason),
			)
			return schemas.Fail(a.ID, reason), nil
		default:
			return schemas.Outcome{}, &EvaluationError{AssertionID: a.ID, Err: err}
		}
	}
	return schemas.Pass(), nil
}

// FailureReason returns the business reason reported when a fails. When the
// assertion declares none, the reason names the expected text.
func FailureReason(a schemas.Assertion, timeout time.Duration) string {
	if a.FailureReason != "" {
		return a.FailureReason
	}
	return fmt.Sprintf("expected %q to be visible within %s", describeTarget(a.Target), timeout)
}

func describeTarget(target string) string {
	if text, ok := strings.CutPrefix(target, "text="); ok {
		return unquote(strings.TrimSpace(text))
	}
	return target
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
