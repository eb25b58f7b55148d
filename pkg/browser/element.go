package browser

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// element adapts a Playwright element handle.
type element struct {
	handle  playwright.ElementHandle
	timeout float64
}

func (e *element) Click() error {
	err := e.handle.Click(playwright.ElementHandleClickOptions{Timeout: playwright.Float(e.timeout)})
	if err == nil {
		return nil
	}
	// Overlays and sticky headers intercept pointer clicks on this site; a
	// DOM click reaches the control anyway.
	if _, jsErr := e.handle.Evaluate("el => el.click()"); jsErr == nil {
		return nil
	}
	return classify("click", err)
}

func (e *element) Fill(value string) error {
	return classify("fill", e.handle.Fill(value, playwright.ElementHandleFillOptions{Timeout: playwright.Float(e.timeout)}))
}

func (e *element) Value() (string, error) {
	v, err := e.handle.InputValue(playwright.ElementHandleInputValueOptions{Timeout: playwright.Float(e.timeout)})
	return v, classify("input value", err)
}

func (e *element) IsChecked() (bool, error) {
	v, err := e.handle.IsChecked()
	if err != nil {
		// Custom checkbox widgets expose their state through aria-checked.
		if attr, attrErr := e.handle.GetAttribute("aria-checked"); attrErr == nil && attr != "" {
			return attr == "true", nil
		}
	}
	return v, classify("is checked", err)
}

func (e *element) IsVisible() (bool, error) {
	v, err := e.handle.IsVisible()
	return v, classify("is visible", err)
}

func (e *element) IsEnabled() (bool, error) {
	v, err := e.handle.IsEnabled()
	return v, classify("is enabled", err)
}

func (e *element) Text() (string, error) {
	v, err := e.handle.InnerText()
	return strings.TrimSpace(v), classify("inner text", err)
}

func (e *element) Attribute(name string) (string, error) {
	v, err := e.handle.GetAttribute(name)
	return v, classify("get attribute", err)
}

func (e *element) OuterHTML() (string, error) {
	v, err := e.handle.Evaluate("el => el.outerHTML")
	if err != nil {
		return "", classify("outer html", err)
	}
	html, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("outer html: unexpected result type %T", v)
	}
	return html, nil
}

func (e *element) QueryAll(sel Selector) ([]Element, error) {
	handles, err := e.handle.QuerySelectorAll(sel.String())
	if err != nil {
		return nil, classify("query", err)
	}
	return wrapHandles(handles, e.timeout), nil
}

func wrapHandles(handles []playwright.ElementHandle, timeout float64) []Element {
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &element{handle: h, timeout: timeout})
	}
	return out
}
