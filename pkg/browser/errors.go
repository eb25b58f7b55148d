package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

var staleMarkers = []string{
	"not attached to the dom",
	"element is detached",
	"execution context was destroyed",
	"cannot find context with specified id",
	"node is detached",
}

var lostMarkers = []string{
	"target page, context or browser has been closed",
	"browser has been closed",
	"browser has disconnected",
	"connection closed",
}

// classify maps a Playwright error onto the package sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale) || errors.Is(err, ErrSessionLost) {
		return err
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%s: %w: %v", op, ErrSessionLost, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", op, ErrStale, err)
		}
	}
	for _, marker := range lostMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", op, ErrSessionLost, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
