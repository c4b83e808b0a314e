package browser

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is wrapped by drivers whenever a bounded wait expires. Callers
// distinguish "did not happen in time" from other failures with errors.Is.
var ErrTimeout = errors.New("browser: timed out")

// ErrNoActivePage is returned when every page of a session has been closed.
var ErrNoActivePage = errors.New("browser: no open page")

// LoadState is a document lifecycle milestone.
type LoadState string

const (
	LoadStateCommit           LoadState = "commit"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateLoad             LoadState = "load"
)

// -- Automation Host Capability Surface --

// Driver starts automation hosts. Each driver wraps one automation protocol.
type Driver interface {
	Name() string
	Start(ctx context.Context) (Host, error)
}

// LaunchOptions configures the browser process.
type LaunchOptions struct {
	Engine   string
	Headless bool
	Args     []string
	ExecPath string
	Timeout  time.Duration
}

// ContextOptions configures an isolated browsing context.
type ContextOptions struct {
	ViewportWidth  int
	ViewportHeight int
	// DefaultTimeout applies to every operation that is not given its own bound.
	DefaultTimeout time.Duration
}

// Host is a running automation host process.
type Host interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
	Stop() error
}

// Browser is a launched browser instance.
type Browser interface {
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated browsing context (own cookies, storage, pages).
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	// OnPage registers fn to be called for every page opened in this
	// context, including popups. fn may be invoked from driver goroutines.
	OnPage(fn func(Page))
	Close() error
}

// Page is a single tab.
type Page interface {
	// ID is stable for the lifetime of the page and unique within a context.
	ID() string
	URL() string
	IsClosed() bool
	// Goto navigates and returns as soon as the navigation commits.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	MainFrame() Frame
	// Frames returns the main frame followed by every attached child frame.
	Frames() []Frame
	Locator(selector string) Locator
	// ScrollViewport scrolls the page down by one viewport height.
	ScrollViewport(ctx context.Context) error
	Screenshot(ctx context.Context, path string) error
}

// Frame is a document within a page.
type Frame interface {
	Name() string
	URL() string
	WaitForLoadState(ctx context.Context, state LoadState, timeout time.Duration) error
}

// Locator lazily resolves elements of a page.
type Locator interface {
	Selector() string
	Nth(index int) Locator
	Click(ctx context.Context, timeout time.Duration) error
	Fill(ctx context.Context, value string, timeout time.Duration) error
	WaitVisible(ctx context.Context, timeout time.Duration) error
	IsVisible(ctx context.Context) (bool, error)
}
