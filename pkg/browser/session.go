package browser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightSession is the Session of a browser attached over CDP.
type PlaywrightSession struct {
	mu      sync.Mutex
	browser playwright.Browser
	context playwright.BrowserContext
	tabs    map[TabID]playwright.Page
	order   []TabID
	nextID  int
	active  TabID
	main    TabID
	timeout float64
}

func newPlaywrightSession(b playwright.Browser, c playwright.BrowserContext, opts AttachOptions) (*PlaywrightSession, error) {
	s := &PlaywrightSession{
		browser: b,
		context: c,
		tabs:    make(map[TabID]playwright.Page),
		timeout: float64(opts.Timeout.Milliseconds()),
	}
	s.sync()
	if len(s.order) == 0 {
		p, err := c.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to open a tab: %w", err)
		}
		s.adopt(p)
	}

	s.main = s.order[0]
	if opts.MainURLContains != "" {
		for _, id := range s.order {
			if strings.Contains(s.tabs[id].URL(), opts.MainURLContains) {
				s.main = id
				break
			}
		}
	}
	s.active = s.main
	s.tabs[s.main].SetDefaultTimeout(s.timeout)
	return s, nil
}

func (s *PlaywrightSession) adopt(p playwright.Page) TabID {
	s.nextID++
	id := TabID(fmt.Sprintf("tab-%d", s.nextID))
	s.tabs[id] = p
	s.order = append(s.order, id)
	return id
}

// sync reconciles the tab table with the context's open pages. Callers hold s.mu
// or have exclusive access.
func (s *PlaywrightSession) sync() {
	open := s.context.Pages()

	kept := s.order[:0]
	for _, id := range s.order {
		p := s.tabs[id]
		if p.IsClosed() {
			delete(s.tabs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept

	for _, p := range open {
		known := false
		for _, id := range s.order {
			if s.tabs[id] == p {
				known = true
				break
			}
		}
		if !known && !p.IsClosed() {
			s.adopt(p)
		}
	}
}

// Page returns the active tab.
func (s *PlaywrightSession) Page() (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sync()
	p, ok := s.tabs[s.active]
	if !ok {
		return nil, fmt.Errorf("active tab %s: %w", s.active, ErrSessionLost)
	}
	return &page{pw: p, timeout: msDuration(s.timeout)}, nil
}

// Tabs lists the open tabs.
func (s *PlaywrightSession) Tabs() ([]TabID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.browser.IsConnected() {
		return nil, fmt.Errorf("browser disconnected: %w", ErrSessionLost)
	}
	s.sync()
	out := make([]TabID, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Active returns the active tab id.
func (s *PlaywrightSession) Active() TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Main returns the tab that held the roster when the session was attached.
func (s *PlaywrightSession) Main() TabID {
	return s.main
}

// Switch makes id the active tab.
func (s *PlaywrightSession) Switch(id TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sync()
	p, ok := s.tabs[id]
	if !ok {
		return fmt.Errorf("tab %s: %w", id, ErrSessionLost)
	}
	p.SetDefaultTimeout(s.timeout)
	if err := p.BringToFront(); err != nil {
		return classify("bring to front", err)
	}
	s.active = id
	return nil
}

// CloseTab closes a tab. Closing an unknown tab is a no-op.
func (s *PlaywrightSession) CloseTab(id TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.tabs[id]
	if !ok {
		return nil
	}
	if err := p.Close(); err != nil {
		return classify("close tab", err)
	}
	s.sync()
	if s.active == id {
		s.active = s.main
	}
	return nil
}

// Close disconnects from the browser. The operator's Chrome keeps running.
func (s *PlaywrightSession) Close() error {
	if err := s.browser.Close(); err != nil {
		return fmt.Errorf("failed to disconnect from browser: %w", err)
	}
	return nil
}
