package workflow

import "github.com/atotto/clipboard"

// Clipboard reads the text the page's Copy control placed on the clipboard.
type Clipboard interface {
	ReadAll() (string, error)
}

// SystemClipboard is the operating system clipboard.
type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error) {
	return clipboard.ReadAll()
}
