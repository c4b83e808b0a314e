// internal/browser/pwdriver/driver_test.go
package pwdriver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiprobe/internal/browser"
)

func TestMillis(t *testing.T) {
	assert.Equal(t, 5000.0, millis(5*time.Second))
	assert.Equal(t, 1.5, millis(1500*time.Microsecond))
}

func TestBound(t *testing.T) {
	t.Run("no deadline keeps the requested bound", func(t *testing.T) {
		ms, err := bound(context.Background(), 3*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 3000.0, ms)
	})

	t.Run("a closer deadline wins", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		ms, err := bound(ctx, 10*time.Second)
		require.NoError(t, err)
		assert.LessOrEqual(t, ms, 500.0)
		assert.Greater(t, ms, 0.0)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := bound(ctx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))

	timeout := translate(playwright.ErrTimeout)
	assert.ErrorIs(t, timeout, browser.ErrTimeout)
	assert.ErrorIs(t, timeout, playwright.ErrTimeout)

	other := errors.New("element is not attached to the DOM")
	assert.Same(t, other, translate(other))
}

func TestLoadState(t *testing.T) {
	assert.Equal(t, playwright.LoadStateLoad, loadState(browser.LoadStateLoad))
	assert.Equal(t, playwright.LoadStateDomcontentloaded, loadState(browser.LoadStateDOMContentLoaded))
	assert.Equal(t, playwright.LoadStateDomcontentloaded, loadState(""))
}

func TestDriver_Defaults(t *testing.T) {
	d := New(Options{}, zaptest.NewLogger(t))
	assert.Equal(t, "playwright", d.Name())
	assert.Equal(t, []string{"chromium"}, d.opts.Browsers)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&host{}).Launch(ctx, browser.LaunchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
