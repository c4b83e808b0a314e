// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/uiprobe/internal/browser"
)

// -- Driver & Host Mocks --

// MockDriver mocks browser.Driver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Name() string {
	return "mock"
}

func (m *MockDriver) Start(ctx context.Context) (browser.Host, error) {
	args := m.Called(ctx)
	if h := args.Get(0); h != nil {
		return h.(browser.Host), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockHost mocks browser.Host.
type MockHost struct {
	mock.Mock
}

func (m *MockHost) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	args := m.Called(ctx, opts)
	if b := args.Get(0); b != nil {
		return b.(browser.Browser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockHost) Stop() error {
	return m.Called().Error(0)
}

// -- Browser & Context Mocks --

// MockBrowser mocks browser.Browser.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	args := m.Called(ctx, opts)
	if c := args.Get(0); c != nil {
		return c.(browser.Context), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowser) Close() error {
	return m.Called().Error(0)
}

// MockContext mocks browser.Context. Handlers registered through OnPage are
// retained so tests can simulate page-opened events with EmitPage.
type MockContext struct {
	mock.Mock

	mu       sync.Mutex
	handlers []func(browser.Page)
}

func (m *MockContext) NewPage(ctx context.Context) (browser.Page, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.(browser.Page), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContext) OnPage(fn func(browser.Page)) {
	m.mu.Lock()
	m.handlers = append(m.handlers, fn)
	m.mu.Unlock()
	m.Called(mock.Anything)
}

func (m *MockContext) Close() error {
	return m.Called().Error(0)
}

// EmitPage delivers a page-opened event to every registered handler.
func (m *MockContext) EmitPage(p browser.Page) {
	m.mu.Lock()
	handlers := append([]func(browser.Page){}, m.handlers...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(p)
	}
}

// -- Page, Frame & Locator Mocks --

// MockPage mocks browser.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) ID() string {
	return m.Called().String(0)
}

func (m *MockPage) URL() string {
	return m.Called().String(0)
}

func (m *MockPage) IsClosed() bool {
	return m.Called().Bool(0)
}

func (m *MockPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	return m.Called(ctx, url, timeout).Error(0)
}

func (m *MockPage) MainFrame() browser.Frame {
	return m.Called().Get(0).(browser.Frame)
}

func (m *MockPage) Frames() []browser.Frame {
	args := m.Called()
	if f := args.Get(0); f != nil {
		return f.([]browser.Frame)
	}
	return nil
}

func (m *MockPage) Locator(selector string) browser.Locator {
	return m.Called(selector).Get(0).(browser.Locator)
}

func (m *MockPage) ScrollViewport(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPage) Screenshot(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

// MockFrame mocks browser.Frame.
type MockFrame struct {
	mock.Mock
}

func (m *MockFrame) Name() string {
	return m.Called().String(0)
}

func (m *MockFrame) URL() string {
	return m.Called().String(0)
}

func (m *MockFrame) WaitForLoadState(ctx context.Context, state browser.LoadState, timeout time.Duration) error {
	return m.Called(ctx, state, timeout).Error(0)
}

// MockLocator mocks browser.Locator.
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) Selector() string {
	return m.Called().String(0)
}

func (m *MockLocator) Nth(index int) browser.Locator {
	return m.Called(index).Get(0).(browser.Locator)
}

func (m *MockLocator) Click(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockLocator) Fill(ctx context.Context, value string, timeout time.Duration) error {
	return m.Called(ctx, value, timeout).Error(0)
}

func (m *MockLocator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockLocator) IsVisible(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// -- Compile-time interface checks --

var (
	_ browser.Driver  = (*MockDriver)(nil)
	_ browser.Host    = (*MockHost)(nil)
	_ browser.Browser = (*MockBrowser)(nil)
	_ browser.Context = (*MockContext)(nil)
	_ browser.Page    = (*MockPage)(nil)
	_ browser.Frame   = (*MockFrame)(nil)
	_ browser.Locator = (*MockLocator)(nil)
)
