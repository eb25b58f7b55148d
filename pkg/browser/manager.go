package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// AttachOptions configures Manager.Attach.
type AttachOptions struct {
	// CDPURL is the remote debugging endpoint of the operator's Chrome.
	CDPURL string

	// MainURLContains selects the main tab by URL substring. The first tab is
	// used when empty or when nothing matches.
	MainURLContains string

	// Timeout is the default timeout for page operations.
	Timeout time.Duration

	// ConnectTimeout bounds the CDP handshake.
	ConnectTimeout time.Duration
}

// Manager owns the Playwright driver and the single attached session.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	session     *PlaywrightSession
	initialized bool
}

// NewManager creates a manager. Call Initialize before Attach.
func NewManager() *Manager {
	return &Manager{}
}

// Initialize installs (if needed) and starts the Playwright driver. Browsers
// are not downloaded: the session attaches to an existing Chrome.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright driver: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// Attach connects to the operator's Chrome over CDP and adopts its first context.
func (m *Manager) Attach(opts AttachOptions) (*PlaywrightSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if m.session != nil {
		return nil, fmt.Errorf("already attached to a browser")
	}

	if opts.CDPURL == "" {
		opts.CDPURL = DefaultCDPURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	b, err := m.playwright.Chromium.ConnectOverCDP(opts.CDPURL, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: millis(opts.ConnectTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chrome at %s (start it with --remote-debugging-port): %w", opts.CDPURL, err)
	}

	contexts := b.Contexts()
	if len(contexts) == 0 {
		b.Close()
		return nil, fmt.Errorf("chrome at %s has no browser context; log in first", opts.CDPURL)
	}

	session, err := newPlaywrightSession(b, contexts[0], opts)
	if err != nil {
		b.Close()
		return nil, err
	}
	m.session = session
	return session, nil
}

// Shutdown disconnects the session and stops the driver.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		_ = m.session.Close()
		m.session = nil
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
