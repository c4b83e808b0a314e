// internal/browser/cdpdriver/context_utils.go
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/uiprobe/internal/browser"
)

// combineContext derives from ctx1, which carries the chromedp target, and
// additionally cancels when ctx2, the caller's context, is done.
func combineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// opContext bounds a single operation against a target by timeout and by the
// caller's context.
func opContext(targetCtx, callerCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	combined, cancelCombined := combineContext(targetCtx, callerCtx)
	if timeout <= 0 {
		return combined, cancelCombined
	}
	bounded, cancelBounded := context.WithTimeout(combined, timeout)
	return bounded, func() {
		cancelBounded()
		cancelCombined()
	}
}

// classify turns the failure of an operation into the caller-facing error:
// the caller's own cancellation wins, an expired operation bound becomes
// browser.ErrTimeout, and anything else passes through.
func classify(callerCtx, opCtx context.Context, what string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if callerErr := callerCtx.Err(); callerErr != nil {
		return callerErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s exceeded %v: %w", what, timeout, browser.ErrTimeout)
	}
	return fmt.Errorf("%s: %w", what, err)
}
