package scenario

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/mocks"
)

// -- Test Helper Functions --

type runnerFixture struct {
	driver  *mocks.MockDriver
	host    *mocks.MockHost
	browser *mocks.MockBrowser
	context *mocks.MockContext
	page    *mocks.MockPage
	cfg     *config.Config
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		driver:  new(mocks.MockDriver),
		host:    new(mocks.MockHost),
		browser: new(mocks.MockBrowser),
		context: new(mocks.MockContext),
		page:    newTestPage("page-1"),
		cfg:     config.NewDefaultConfig(),
	}
	f.cfg.Timeouts.Dwell = 0
	f.cfg.Artifacts.Dir = t.TempDir()

	f.driver.On("Start", mock.Anything).Return(f.host, nil)
	f.host.On("Launch", mock.Anything, mock.Anything).Return(f.browser, nil)
	f.browser.On("NewContext", mock.Anything, mock.Anything).Return(f.context, nil)
	f.context.On("OnPage", mock.Anything).Return()
	f.context.On("NewPage", mock.Anything).Return(f.page, nil)

	f.context.On("Close").Return(nil).Once()
	f.browser.On("Close").Return(nil).Once()
	f.host.On("Stop").Return(nil).Once()
	return f
}

func (f *runnerFixture) runner(t *testing.T) *Runner {
	return NewRunner(f.driver, browser.SessionOptions{}, f.cfg, zaptest.NewLogger(t))
}

func (f *runnerFixture) assertReleased(t *testing.T) {
	t.Helper()
	f.context.AssertNumberOfCalls(t, "Close", 1)
	f.browser.AssertNumberOfCalls(t, "Close", 1)
	f.host.AssertNumberOfCalls(t, "Stop", 1)
}

func searchScenario() schemas.Scenario {
	return schemas.Scenario{
		Name:      "project-search",
		StartPath: "/",
		Steps: []schemas.Step{
			{ID: "query", Action: schemas.ActionFill, Target: "xpath=html/body/div[3]/div[2]/div/input", Value: "NonexistentProjectXYZ"},
		},
		Assertions: []schemas.Assertion{
			{ID: "results", Target: "text=Search results for NonexistentProjectXYZ", Timeout: time.Second, FailureReason: "search returned nothing"},
		},
	}
}

// -- Runner Tests --

func TestRunner_Pass(t *testing.T) {
	f := newRunnerFixture(t)
	expectSettledNavigation(f.page, "http://localhost:8080/")
	input := expectLocator(f.page, "xpath=html/body/div[3]/div[2]/div/input", 0)
	input.On("Fill", mock.Anything, "NonexistentProjectXYZ", 5*time.Second).Return(nil).Once()
	results := expectLocator(f.page, "text=Search results for NonexistentProjectXYZ", 0)
	results.On("WaitVisible", mock.Anything, time.Second).Return(nil).Once()

	res := f.runner(t).Run(context.Background(), searchScenario())

	assert.Equal(t, StatusPass, res.Status)
	assert.True(t, res.OK())
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.Passed())
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.Navigation)
	assert.True(t, res.Navigation.Settled())
	f.assertReleased(t)
	f.page.AssertNotCalled(t, "Screenshot", mock.Anything, mock.Anything)
}

func TestRunner_FailCapturesScreenshot(t *testing.T) {
	f := newRunnerFixture(t)
	f.cfg.Artifacts.ScreenshotOnFailure = true
	expectSettledNavigation(f.page, "http://localhost:8080/")
	input := expectLocator(f.page, "xpath=html/body/div[3]/div[2]/div/input", 0)
	input.On("Fill", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	results := expectLocator(f.page, "text=Search results for NonexistentProjectXYZ", 0)
	results.On("WaitVisible", mock.Anything, mock.Anything).Return(browser.ErrTimeout)
	f.page.On("Screenshot", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(filepath.Base(p), "project-search-") && filepath.Ext(p) == ".png"
	})).Return(nil).Once()

	res := f.runner(t).Run(context.Background(), searchScenario())

	assert.Equal(t, StatusFail, res.Status)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, schemas.Fail("results", "search returned nothing"), *res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, filepath.Join(f.cfg.Artifacts.Dir, "project-search-"+res.RunID+".png"), res.Screenshot)
	f.assertReleased(t)
}

func TestRunner_StepErrorIsExecutionError(t *testing.T) {
	f := newRunnerFixture(t)
	expectSettledNavigation(f.page, "http://localhost:8080/")
	input := expectLocator(f.page, "xpath=html/body/div[3]/div[2]/div/input", 0)
	input.On("Fill", mock.Anything, mock.Anything, mock.Anything).Return(browser.ErrTimeout)

	res := f.runner(t).Run(context.Background(), searchScenario())

	assert.Equal(t, StatusError, res.Status)
	assert.Nil(t, res.Outcome, "an execution error never produces an outcome")
	var stepErr *StepError
	require.ErrorAs(t, res.Err, &stepErr)
	assert.False(t, res.Environment)
	assert.Contains(t, res.Error, "step 1 (query) failed")
	f.assertReleased(t)
	f.page.AssertNotCalled(t, "Locator", "text=Search results for NonexistentProjectXYZ")
}

func TestRunner_InitialNavigationFailure(t *testing.T) {
	f := newRunnerFixture(t)
	f.page.On("Goto", mock.Anything, "http://localhost:8080/", mock.Anything).Return(errors.New("net::ERR_CONNECTION_REFUSED"))

	res := f.runner(t).Run(context.Background(), searchScenario())

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "did not commit")
	f.assertReleased(t)
}

func TestRunner_EnvironmentFailure(t *testing.T) {
	driver := new(mocks.MockDriver)
	driver.On("Start", mock.Anything).Return(nil, errors.New("playwright driver not installed"))

	r := NewRunner(driver, browser.SessionOptions{}, config.NewDefaultConfig(), zaptest.NewLogger(t))
	res := r.Run(context.Background(), searchScenario())

	assert.Equal(t, StatusError, res.Status)
	assert.True(t, res.Environment)
	var envErr *browser.EnvironmentError
	require.ErrorAs(t, res.Err, &envErr)
	assert.Equal(t, browser.StageStartHost, envErr.Stage)
}

func TestRunner_RunAllStopsWhenCanceled(t *testing.T) {
	driver := new(mocks.MockDriver)
	r := NewRunner(driver, browser.SessionOptions{}, config.NewDefaultConfig(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.RunAll(ctx, []schemas.Scenario{searchScenario(), searchScenario()})
	assert.Empty(t, results)
	driver.AssertNotCalled(t, "Start", mock.Anything)
}
