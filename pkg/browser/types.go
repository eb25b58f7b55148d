package browser

import (
	"context"
	"errors"
	"time"
)

// Strategy names a selector engine.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
	StrategyText  Strategy = "text"
	StrategyID    Strategy = "id"
)

// Selector is a strategy plus query pair.
type Selector struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`
	Query    string   `yaml:"query" json:"query"`
}

// CSS returns a CSS selector.
func CSS(query string) Selector { return Selector{Strategy: StrategyCSS, Query: query} }

// XPath returns an XPath selector.
func XPath(query string) Selector { return Selector{Strategy: StrategyXPath, Query: query} }

// Text returns a visible-text selector.
func Text(query string) Selector { return Selector{Strategy: StrategyText, Query: query} }

// ID returns an element id selector.
func ID(query string) Selector { return Selector{Strategy: StrategyID, Query: query} }

// String renders the selector in Playwright's engine=query syntax.
func (s Selector) String() string {
	strategy := s.Strategy
	if strategy == "" {
		strategy = StrategyCSS
	}
	return string(strategy) + "=" + s.Query
}

// State is the element state a lookup waits for.
type State string

const (
	StateAttached State = "attached"
	StateVisible  State = "visible"
)

var (
	// ErrNotFound means no element matched within the allowed time.
	ErrNotFound = errors.New("element not found")

	// ErrStale means an element was detached or re-rendered after it was found.
	ErrStale = errors.New("element is stale")

	// ErrSessionLost means the tab or the browser session is gone.
	ErrSessionLost = errors.New("browser session lost")
)

// Element is a located control on a page.
type Element interface {
	Click() error
	Fill(value string) error
	Value() (string, error)
	IsChecked() (bool, error)
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	Text() (string, error)
	Attribute(name string) (string, error)
	OuterHTML() (string, error)

	// QueryAll finds descendants of this element without waiting.
	QueryAll(sel Selector) ([]Element, error)
}

// Page is the active browser tab.
type Page interface {
	// WaitFor waits up to timeout for the first element matching sel to reach
	// state. It returns ErrNotFound when the timeout expires.
	WaitFor(ctx context.Context, sel Selector, state State, timeout time.Duration) (Element, error)

	// QueryAll returns every element currently matching sel.
	QueryAll(sel Selector) ([]Element, error)

	// Content returns the page HTML.
	Content() (string, error)

	// Text returns the rendered text of the page body.
	Text() (string, error)

	URL() string
	Goto(url string) error
	Reload() error
	Back() error

	// Evaluate runs a JavaScript function expression with a single argument.
	Evaluate(script string, arg any) (any, error)

	Screenshot(path string) error

	// Download runs trigger and saves the file it causes the page to download
	// into dir, returning the saved path.
	Download(ctx context.Context, trigger func() error, dir string, timeout time.Duration) (string, error)
}

// TabID identifies a tab within a session.
type TabID string

// Session is the tab set of the attached browser.
type Session interface {
	// Page returns the active tab. It fails with ErrSessionLost when the
	// active tab has been closed.
	Page() (Page, error)

	// Tabs lists the open tabs in opening order.
	Tabs() ([]TabID, error)

	Active() TabID
	Main() TabID
	Switch(id TabID) error
	CloseTab(id TabID) error
}

// Default values for driver operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 15 * time.Second
	DefaultDownloadTimeout = 20 * time.Second
	DefaultCDPURL          = "http://localhost:9222"
)
