package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/mocks"
)

// -- Test Helper Functions --

// visibilityPage is a browser.Page whose elements are either visible or
// never appear. It records the selectors that were waited on.
type visibilityPage struct {
	browser.Page

	visible map[string]bool
	mu      sync.Mutex
	waited  []string
}

func (p *visibilityPage) Locator(selector string) browser.Locator {
	return &visibilityLocator{page: p, selector: selector}
}

func (p *visibilityPage) waits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.waited...)
}

type visibilityLocator struct {
	browser.Locator

	page     *visibilityPage
	selector string
}

func (l *visibilityLocator) Nth(int) browser.Locator { return l }

func (l *visibilityLocator) WaitVisible(_ context.Context, timeout time.Duration) error {
	l.page.mu.Lock()
	l.page.waited = append(l.page.waited, l.selector)
	l.page.mu.Unlock()
	if l.page.visible[l.selector] {
		return nil
	}
	return fmt.Errorf("waiting for %s exceeded %v: %w", l.selector, timeout, browser.ErrTimeout)
}

// -- Outcome Tests --

func TestEvaluator_AllVisiblePasses(t *testing.T) {
	page := &visibilityPage{visible: map[string]bool{"text=Sorted by Name": true, "text=0 Projects": true}}
	eval := NewEvaluator(5*time.Second, zaptest.NewLogger(t))

	outcome, err := eval.Evaluate(context.Background(), page, []schemas.Assertion{
		{ID: "sort", Target: "text=Sorted by Name"},
		{ID: "count", Target: "text=0 Projects"},
	})

	require.NoError(t, err)
	assert.True(t, outcome.Passed())
	assert.Equal(t, "PASS", outcome.String())
	assert.Equal(t, []string{"text=Sorted by Name", "text=0 Projects"}, page.waits())
}

func TestEvaluator_FirstFailureShortCircuits(t *testing.T) {
	page := &visibilityPage{visible: map[string]bool{"text=A": true, "text=C": true}}
	eval := NewEvaluator(5*time.Second, zaptest.NewLogger(t))

	outcome, err := eval.Evaluate(context.Background(), page, []schemas.Assertion{
		{ID: "a", Target: "text=A"},
		{ID: "b", Target: "text=B", FailureReason: "the manual comment did not appear with the correct timestamp"},
		{ID: "c", Target: "text=C"},
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.Fail("b", "the manual comment did not appear with the correct timestamp"), outcome)
	assert.Equal(t, []string{"text=A", "text=B"}, page.waits(), "assertions after the first failure must not run")
}

func TestEvaluator_GeneratedReasonNamesExpectedText(t *testing.T) {
	page := &visibilityPage{visible: map[string]bool{}}
	eval := NewEvaluator(5*time.Second, zaptest.NewLogger(t))

	outcome, err := eval.Evaluate(context.Background(), page, []schemas.Assertion{
		{ID: "team", Target: "text=NB's Team", Timeout: 30 * time.Second},
	})

	require.NoError(t, err)
	assert.False(t, outcome.Passed())
	assert.Equal(t, `expected "NB's Team" to be visible within 30s`, outcome.Reason)
	assert.Equal(t, "team", outcome.AssertionID)
}

func TestEvaluator_TimeoutBounds(t *testing.T) {
	page := new(mocks.MockPage)
	declared := new(mocks.MockLocator)
	defaulted := new(mocks.MockLocator)
	page.On("Locator", "#declared").Return(declared)
	page.On("Locator", "#defaulted").Return(defaulted)
	declared.On("Nth", 0).Return(declared)
	defaulted.On("Nth", 0).Return(defaulted)
	declared.On("WaitVisible", mock.Anything, time.Second).Return(nil).Once()
	defaulted.On("WaitVisible", mock.Anything, 7*time.Second).Return(nil).Once()

	eval := NewEvaluator(7*time.Second, zaptest.NewLogger(t))
	outcome, err := eval.Evaluate(context.Background(), page, []schemas.Assertion{
		{ID: "declared", Target: "#declared", Timeout: time.Second},
		{ID: "defaulted", Target: "#defaulted"},
	})

	require.NoError(t, err)
	assert.True(t, outcome.Passed())
	declared.AssertExpectations(t)
	defaulted.AssertExpectations(t)
}

func TestEvaluator_HostErrorIsNotAFailure(t *testing.T) {
	page := new(mocks.MockPage)
	loc := new(mocks.MockLocator)
	page.On("Locator", "#x").Return(loc)
	loc.On("Nth", 0).Return(loc)
	cause := errors.New("target page, context or browser has been closed")
	loc.On("WaitVisible", mock.Anything, mock.Anything).Return(cause)

	eval := NewEvaluator(time.Second, zaptest.NewLogger(t))
	outcome, err := eval.Evaluate(context.Background(), page, []schemas.Assertion{{ID: "x", Target: "#x"}})

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "x", evalErr.AssertionID)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, outcome.Verdict)
}

func TestEvaluator_NoAssertionsPass(t *testing.T) {
	eval := NewEvaluator(time.Second, zaptest.NewLogger(t))
	outcome, err := eval.Evaluate(context.Background(), &visibilityPage{}, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Passed())
}

// TestEvaluator_ShortCircuitProperty checks that the outcome is decided by the
// first invisible target and that nothing after it is waited on.
func TestEvaluator_ShortCircuitProperty(t *testing.T) {
	eval := NewEvaluator(time.Second, zap.NewNop())

	rapid.Check(t, func(rt *rapid.T) {
		visibility := rapid.SliceOfN(rapid.Bool(), 1, 8).Draw(rt, "visibility")

		page := &visibilityPage{visible: make(map[string]bool)}
		assertions := make([]schemas.Assertion, len(visibility))
		for i, v := range visibility {
			target := fmt.Sprintf("#a%d", i)
			page.visible[target] = v
			assertions[i] = schemas.Assertion{ID: fmt.Sprintf("a%d", i), Target: target, FailureReason: fmt.Sprintf("reason %d", i)}
		}

		outcome, err := eval.Evaluate(context.Background(), page, assertions)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		firstHidden := -1
		for i, v := range visibility {
			if !v {
				firstHidden = i
				break
			}
		}

		if firstHidden < 0 {
			if !outcome.Passed() || len(page.waits()) != len(assertions) {
				rt.Fatalf("expected pass after %d waits, got %v after %d", len(assertions), outcome, len(page.waits()))
			}
			return
		}
		if outcome.AssertionID != assertions[firstHidden].ID || outcome.Reason != assertions[firstHidden].FailureReason {
			rt.Fatalf("expected failure of %s, got %v", assertions[firstHidden].ID, outcome)
		}
		if got := len(page.waits()); got != firstHidden+1 {
			rt.Fatalf("expected %d waits, got %d", firstHidden+1, got)
		}
	})
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "declared", FailureReason(schemas.Assertion{Target: "#x", FailureReason: "declared"}, time.Second))
	assert.Equal(t, `expected "Profile update successful" to be visible within 1s`,
		FailureReason(schemas.Assertion{Target: `text="Profile update successful"`}, time.Second))
	assert.Equal(t, `expected "xpath=//div[@id='toast']" to be visible within 5s`,
		FailureReason(schemas.Assertion{Target: "xpath=//div[@id='toast']"}, 5*time.Second))
}
