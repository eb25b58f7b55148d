package locator

import (
	"fmt"

	"github.com/entrhq/renewbot/pkg/browser"
)

// Check is an action that ticks a checkbox unless it already is, and fails
// when the click does not register.
func Check(el browser.Element) error {
	checked, err := el.IsChecked()
	if err != nil {
		return err
	}
	if checked {
		return nil
	}
	if err := el.Click(); err != nil {
		return err
	}
	checked, err = el.IsChecked()
	if err != nil {
		return err
	}
	if !checked {
		return fmt.Errorf("checkbox did not become checked")
	}
	return nil
}

// Select is an action for radio-style options. It clicks the option unless it
// reports itself as selected; styled buttons that never report a checked
// state are clicked without verification.
func Select(el browser.Element) error {
	if checked, err := el.IsChecked(); err == nil && checked {
		return nil
	}
	return el.Click()
}
