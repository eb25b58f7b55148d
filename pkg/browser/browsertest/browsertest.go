// Package browsertest provides a scripted in-memory browser for tests.
//
// Pages hold elements keyed by selector; a lookup succeeds only for selectors a
// test registered. Elements record the interactions performed on them and can
// run hooks to simulate navigation, re-renders, or new tabs.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
)

// Element is a fake control.
type Element struct {
	mu sync.Mutex

	TextValue string
	HTML      string
	Attrs     map[string]string
	Input     string
	Checked   bool
	Hidden    bool
	Disabled  bool

	// ToggleOnClick flips Checked on every click.
	ToggleOnClick bool

	// StaleFor makes the next n interactions fail with browser.ErrStale.
	StaleFor int

	// OnClick runs after a successful click.
	OnClick func() error

	// ClickErr is returned by every click when set.
	ClickErr error

	Clicks int
	Fills  []string

	children map[string][]*Element
}

// NewElement returns a visible, enabled element with the given text.
func NewElement(text string) *Element {
	return &Element{TextValue: text, Attrs: map[string]string{}}
}

// Add registers a descendant element for scoped lookups.
func (e *Element) Add(sel browser.Selector, child *Element) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.children == nil {
		e.children = make(map[string][]*Element)
	}
	e.children[sel.String()] = append(e.children[sel.String()], child)
	return child
}

func (e *Element) stale() error {
	if e.StaleFor > 0 {
		e.StaleFor--
		return fmt.Errorf("fake: %w", browser.ErrStale)
	}
	return nil
}

func (e *Element) Click() error {
	e.mu.Lock()
	if err := e.stale(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.ClickErr != nil {
		e.mu.Unlock()
		return e.ClickErr
	}
	e.Clicks++
	if e.ToggleOnClick {
		e.Checked = !e.Checked
	}
	hook := e.OnClick
	e.mu.Unlock()

	if hook != nil {
		return hook()
	}
	return nil
}

func (e *Element) Fill(value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.stale(); err != nil {
		return err
	}
	e.Input = value
	e.Fills = append(e.Fills, value)
	return nil
}

func (e *Element) Value() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Input, e.stale()
}

func (e *Element) IsChecked() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Checked, e.stale()
}

func (e *Element) IsVisible() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Hidden, nil
}

func (e *Element) IsEnabled() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Disabled, nil
}

func (e *Element) Text() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.TextValue, e.stale()
}

func (e *Element) Attribute(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Attrs[name], nil
}

func (e *Element) OuterHTML() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.HTML, e.stale()
}

func (e *Element) QueryAll(sel browser.Selector) ([]browser.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return toElements(e.children[sel.String()]), nil
}

// ClickCount returns the number of successful clicks.
func (e *Element) ClickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Clicks
}

func toElements(els []*Element) []browser.Element {
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out
}

// Page is a fake tab.
type Page struct {
	mu sync.Mutex

	elements map[string][]*Element
	html     string
	body     string
	url      string
	closed   bool

	// Script answers Evaluate calls. Unset means Evaluate returns nil.
	Script func(script string, arg any) (any, error)

	// DownloadData is written to the file produced by Download.
	DownloadData []byte
	DownloadName string

	Visited     []string
	Screenshots []string
	Reloads     int
	Backs       int
	Lookups     []string

	// OnReload and OnBack run after the navigation is recorded.
	OnReload func()
	OnBack   func()
}

// NewPage returns an empty page at url.
func NewPage(url string) *Page {
	return &Page{url: url, elements: make(map[string][]*Element)}
}

// Add registers an element under a selector.
func (p *Page) Add(sel browser.Selector, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[sel.String()] = append(p.elements[sel.String()], el)
	return el
}

// Remove unregisters every element under a selector.
func (p *Page) Remove(sel browser.Selector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, sel.String())
}

// Has reports whether a selector has registered elements.
func (p *Page) Has(sel browser.Selector) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.elements[sel.String()]) > 0
}

// SetHTML sets the value returned by Content.
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// SetText sets the value returned by Text.
func (p *Page) SetText(body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.body = body
}

// SetURL changes the current URL without recording a visit.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Close marks the page closed.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// IsClosed reports whether Close was called.
func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Looked reports how many lookups used the given selector.
func (p *Page) Looked(sel browser.Selector) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.Lookups {
		if l == sel.String() {
			n++
		}
	}
	return n
}

func (p *Page) lost() error {
	if p.closed {
		return fmt.Errorf("fake page closed: %w", browser.ErrSessionLost)
	}
	return nil
}

func (p *Page) WaitFor(ctx context.Context, sel browser.Selector, state browser.State, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.lost(); err != nil {
		return nil, err
	}
	p.Lookups = append(p.Lookups, sel.String())
	for _, el := range p.elements[sel.String()] {
		el.mu.Lock()
		hidden := el.Hidden
		el.mu.Unlock()
		if state == browser.StateVisible && hidden {
			continue
		}
		return el, nil
	}
	return nil, fmt.Errorf("fake wait for %s: %w", sel, browser.ErrNotFound)
}

func (p *Page) QueryAll(sel browser.Selector) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.lost(); err != nil {
		return nil, err
	}
	p.Lookups = append(p.Lookups, sel.String())
	return toElements(p.elements[sel.String()]), nil
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, p.lost()
}

func (p *Page) Text() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.body, p.lost()
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Goto(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.lost(); err != nil {
		return err
	}
	p.url = url
	p.Visited = append(p.Visited, url)
	return nil
}

func (p *Page) Reload() error {
	p.mu.Lock()
	if err := p.lost(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.Reloads++
	hook := p.OnReload
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (p *Page) Back() error {
	p.mu.Lock()
	if err := p.lost(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.Backs++
	hook := p.OnBack
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (p *Page) Evaluate(script string, arg any) (any, error) {
	p.mu.Lock()
	if err := p.lost(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	hook := p.Script
	p.mu.Unlock()
	if hook == nil {
		return nil, nil
	}
	return hook(script, arg)
}

func (p *Page) Screenshot(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.lost(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("fake-png"), 0600); err != nil {
		return err
	}
	p.Screenshots = append(p.Screenshots, path)
	return nil
}

func (p *Page) Download(ctx context.Context, trigger func() error, dir string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := trigger(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DownloadData == nil {
		return "", fmt.Errorf("fake download: %w", browser.ErrNotFound)
	}
	name := p.DownloadName
	if name == "" {
		name = "download.pdf"
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, p.DownloadData, 0600)
}

// Session is a fake tab set.
type Session struct {
	mu     sync.Mutex
	pages  map[browser.TabID]*Page
	order  []browser.TabID
	active browser.TabID
	main   browser.TabID
	nextID int
}

// NewSession returns a session whose main and active tab is main.
func NewSession(main *Page) *Session {
	s := &Session{pages: make(map[browser.TabID]*Page)}
	s.main = s.open(main)
	s.active = s.main
	return s
}

func (s *Session) open(p *Page) browser.TabID {
	s.nextID++
	id := browser.TabID(fmt.Sprintf("tab-%d", s.nextID))
	s.pages[id] = p
	s.order = append(s.order, id)
	return id
}

// Open adds a tab as a page would with window.open. The active tab is unchanged.
func (s *Session) Open(p *Page) browser.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open(p)
}

// Lookup returns the fake page behind a tab.
func (s *Session) Lookup(id browser.TabID) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[id]
}

// MainPage returns the fake page of the main tab.
func (s *Session) MainPage() *Page {
	return s.Lookup(s.main)
}

func (s *Session) Page() (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[s.active]
	if !ok || p.IsClosed() {
		return nil, fmt.Errorf("fake active tab %s: %w", s.active, browser.ErrSessionLost)
	}
	return p, nil
}

func (s *Session) Tabs() ([]browser.TabID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]browser.TabID, 0, len(s.order))
	for _, id := range s.order {
		if !s.pages[id].IsClosed() {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Session) Active() browser.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) Main() browser.TabID {
	return s.main
}

func (s *Session) Switch(id browser.TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok || p.IsClosed() {
		return fmt.Errorf("fake tab %s: %w", id, browser.ErrSessionLost)
	}
	s.active = id
	return nil
}

func (s *Session) CloseTab(id browser.TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return nil
	}
	p.Close()
	delete(s.pages, id)
	kept := s.order[:0]
	for _, t := range s.order {
		if t != id {
			kept = append(kept, t)
		}
	}
	s.order = kept
	if s.active == id {
		s.active = s.main
	}
	return nil
}

var (
	_ browser.Element = (*Element)(nil)
	_ browser.Page    = (*Page)(nil)
	_ browser.Session = (*Session)(nil)
)
