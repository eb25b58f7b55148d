package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/locator"
)

// cleanup returns the browser to the roster tab and hides the client's row.
// It runs on every exit path of Process, including a cancelled ctx, so it
// works on a context of its own.
func (s *Sequencer) cleanup(ctx context.Context, c *Client) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultCleanupTimeout)
	defer cancel()

	restoreErr := s.restore(cctx, c)
	if restoreErr != nil {
		s.logger.Errorf("%s: restoring the roster tab failed: %v", c.Record.FullName, restoreErr)
	}

	if s.hider != nil {
		if err := s.hider.Hide(cctx, c.Record.Row, c.Record.FullName); err != nil {
			s.logger.Errorf("%s: hiding roster row %d failed: %v", c.Record.FullName, c.Record.Row, err)
			if restoreErr == nil && errors.Is(err, browser.ErrSessionLost) {
				restoreErr = err
			}
		}
	}

	if errors.Is(restoreErr, browser.ErrSessionLost) {
		return restoreErr
	}
	return nil
}

// restore puts the session back on its main tab according to how the
// renewal flow opened. A missing main tab is browser.ErrSessionLost.
func (s *Sequencer) restore(ctx context.Context, c *Client) error {
	main := s.session.Main()

	switch c.Topology {
	case TopologySameTab:
		if err := s.session.Switch(main); err != nil {
			return fmt.Errorf("main tab: %w", err)
		}
		page, err := s.session.Page()
		if err != nil {
			return err
		}
		if err := page.Back(); err != nil {
			s.logger.Warnf("navigating back failed: %v", err)
		}
		if err := locator.Sleep(ctx, s.cfg.SettleDelay); err != nil {
			return err
		}
		if !s.onRoster(ctx, page) {
			if s.cfg.ListURL == "" {
				return fmt.Errorf("roster not displayed after navigating back")
			}
			s.logger.Infof("returning to the roster at %s", s.cfg.ListURL)
			if err := page.Goto(s.cfg.ListURL); err != nil {
				return fmt.Errorf("reopen roster: %w", err)
			}
		}
		return nil

	default:
		tabs, err := s.session.Tabs()
		if err != nil {
			return err
		}
		found := false
		for _, id := range tabs {
			if id == main {
				found = true
				continue
			}
			if err := s.session.CloseTab(id); err != nil {
				s.logger.Warnf("closing tab %s failed: %v", id, err)
			}
		}
		if !found {
			return fmt.Errorf("main tab %s is gone: %w", main, browser.ErrSessionLost)
		}
		return s.session.Switch(main)
	}
}

func (s *Sequencer) onRoster(ctx context.Context, page browser.Page) bool {
	if s.cfg.ListURL != "" && strings.HasPrefix(page.URL(), s.cfg.ListURL) {
		return true
	}
	ok, err := s.resolver.Present(ctx, s.optional(ControlRosterListMarker))
	return err == nil && ok
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ScreenshotName returns the diagnostic file name for a client.
func ScreenshotName(stamp, fullName, attemptID string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(fullName, "_"), "_")
	if name == "" {
		name = "client"
	}
	return fmt.Sprintf("%s_%s_%s.png", stamp, name, attemptID)
}

// screenshot captures the active tab. Failures are logged only.
func (s *Sequencer) screenshot(c *Client) {
	if s.cfg.ScreenshotDir == "" {
		return
	}
	page, err := s.session.Page()
	if err != nil {
		s.logger.Warnf("%s: no page to capture: %v", c.Record.FullName, err)
		return
	}
	name := ScreenshotName(s.now().Format("20060102_150405"), c.Record.FullName, c.Record.AttemptID)
	path := filepath.Join(s.cfg.ScreenshotDir, name)
	if err := page.Screenshot(path); err != nil {
		s.logger.Warnf("%s: screenshot failed: %v", c.Record.FullName, err)
		return
	}
	s.logger.Infof("%s: saved screenshot %s", c.Record.FullName, path)
}
