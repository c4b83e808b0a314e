package browser

import (
	"sync"

	"go.uber.org/zap"
)

// PageCursor tracks the pages of a session in the order they were opened and
// resolves the active one. It is fed exclusively by page-opened events, so a
// popup or new tab becomes active as soon as the host reports it.
//
// Events arrive on driver goroutines while steps read sequentially, hence the lock.
type PageCursor struct {
	mu     sync.RWMutex
	pages  []Page
	seen   map[string]struct{}
	logger *zap.Logger
}

// NewPageCursor creates an empty cursor.
func NewPageCursor(logger *zap.Logger) *PageCursor {
	return &PageCursor{
		seen:   make(map[string]struct{}),
		logger: logger.Named("cursor"),
	}
}

// Track records a newly opened page. Repeated notifications for the same page
// are ignored, so a page never moves back to the front.
func (c *PageCursor) Track(p Page) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[p.ID()]; ok {
		return
	}
	c.seen[p.ID()] = struct{}{}
	c.pages = append(c.pages, p)
	c.logger.Debug("Page opened.", zap.String("page_id", p.ID()), zap.Int("open_pages", len(c.pages)))
}

// Active returns the most recently opened page that is still open.
func (c *PageCursor) Active() (Page, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.pages) - 1; i >= 0; i-- {
		if !c.pages[i].IsClosed() {
			return c.pages[i], nil
		}
	}
	return nil, ErrNoActivePage
}

// Len returns the number of pages seen so far, open or closed.
func (c *PageCursor) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}
