package workflow

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ValidateLetter checks that path is a readable PDF and returns its page count.
func ValidateLetter(path string) (int, error) {
	if err := api.ValidateFile(path, nil); err != nil {
		return 0, fmt.Errorf("letter %s is not a valid PDF: %w", path, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("letter %s has no pages", path)
	}
	return pages, nil
}
