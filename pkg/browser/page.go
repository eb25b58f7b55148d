package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// page adapts a Playwright page.
type page struct {
	pw      playwright.Page
	timeout time.Duration
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *page) live() error {
	if p.pw.IsClosed() {
		return fmt.Errorf("page closed: %w", ErrSessionLost)
	}
	return nil
}

func (p *page) WaitFor(ctx context.Context, sel Selector, state State, timeout time.Duration) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.live(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = p.timeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	waitState := playwright.WaitForSelectorState(state)
	handle, err := p.pw.WaitForSelector(sel.String(), playwright.PageWaitForSelectorOptions{
		State:   &waitState,
		Timeout: millis(timeout),
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("wait for %s", sel), err)
	}
	if handle == nil {
		return nil, fmt.Errorf("wait for %s: %w", sel, ErrNotFound)
	}
	return &element{handle: handle, timeout: float64(p.timeout.Milliseconds())}, nil
}

func (p *page) QueryAll(sel Selector) ([]Element, error) {
	if err := p.live(); err != nil {
		return nil, err
	}
	handles, err := p.pw.QuerySelectorAll(sel.String())
	if err != nil {
		return nil, classify(fmt.Sprintf("query %s", sel), err)
	}
	return wrapHandles(handles, float64(p.timeout.Milliseconds())), nil
}

func (p *page) Content() (string, error) {
	if err := p.live(); err != nil {
		return "", err
	}
	html, err := p.pw.Content()
	return html, classify("content", err)
}

func (p *page) Text() (string, error) {
	if err := p.live(); err != nil {
		return "", err
	}
	text, err := p.pw.InnerText("body", playwright.PageInnerTextOptions{Timeout: millis(p.timeout)})
	return text, classify("body text", err)
}

func (p *page) URL() string {
	return p.pw.URL()
}

func (p *page) Goto(url string) error {
	_, err := p.pw.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   millis(p.timeout),
	})
	return classify("goto", err)
}

func (p *page) Reload() error {
	_, err := p.pw.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   millis(p.timeout),
	})
	return classify("reload", err)
}

func (p *page) Back() error {
	_, err := p.pw.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   millis(p.timeout),
	})
	return classify("back", err)
}

func (p *page) Evaluate(script string, arg any) (any, error) {
	if err := p.live(); err != nil {
		return nil, err
	}
	var (
		v   interface{}
		err error
	)
	if arg == nil {
		v, err = p.pw.Evaluate(script)
	} else {
		v, err = p.pw.Evaluate(script, arg)
	}
	return v, classify("evaluate", err)
}

func (p *page) Screenshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	_, err := p.pw.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
	return classify("screenshot", err)
}

func (p *page) Download(ctx context.Context, trigger func() error, dir string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	download, err := p.pw.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{Timeout: millis(timeout)})
	if err != nil {
		return "", classify("download", err)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	name := download.SuggestedFilename()
	if name == "" {
		name = fmt.Sprintf("download-%d", time.Now().UnixNano())
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := download.SaveAs(path); err != nil {
		return "", classify("save download", err)
	}
	return path, nil
}
