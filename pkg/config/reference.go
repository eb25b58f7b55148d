package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultReferenceFile is the name searched for when the operator points at
// a folder instead of a file.
const DefaultReferenceFile = "ListsCompiled.txt"

// smallReferenceFile is the size under which a reference file is accepted
// with a warning.
const smallReferenceFile = 100

var (
	// ErrNoReferenceFile is returned when no path was given
	ErrNoReferenceFile = errors.New("no file selected")
)

// ReferenceFile describes a validated reference file.
type ReferenceFile struct {
	Path   string
	Size   int64
	Sheets []string

	// Warning is set for files that are usable but suspicious
	Warning string
}

// CheckReferenceFile validates the operator's reference file. The path must
// name a readable, non-empty regular file; a workbook must also open and hold
// at least one sheet.
func CheckReferenceFile(path string) (ReferenceFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ReferenceFile{}, ErrNoReferenceFile
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ReferenceFile{}, fmt.Errorf("file not found: %s", path)
		}
		return ReferenceFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return ReferenceFile{}, fmt.Errorf("path is not a file: %s", path)
	}
	if info.Size() == 0 {
		return ReferenceFile{}, fmt.Errorf("file is empty: %s", path)
	}

	ref := ReferenceFile{Path: path, Size: info.Size()}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return ReferenceFile{}, fmt.Errorf("failed to open workbook %s: %w", path, err)
		}
		defer f.Close()
		ref.Sheets = f.GetSheetList()
		if len(ref.Sheets) == 0 {
			return ReferenceFile{}, fmt.Errorf("workbook has no sheets: %s", path)
		}
	default:
		if err := readable(path); err != nil {
			return ReferenceFile{}, err
		}
		if ref.Size < smallReferenceFile {
			ref.Warning = fmt.Sprintf("file is small (%d bytes)", ref.Size)
		}
	}

	return ref, nil
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("access denied: %s", path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// FindReferenceFile looks for name in dir, ignoring case. It returns the
// absolute path, or "" when there is no such file.
func FindReferenceFile(dir, name string) string {
	if name == "" {
		name = DefaultReferenceFile
	}

	exact := filepath.Join(dir, name)
	if info, err := os.Stat(exact); err == nil && info.Mode().IsRegular() {
		abs, _ := filepath.Abs(exact)
		return abs
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(entry.Name(), name) {
			abs, _ := filepath.Abs(filepath.Join(dir, entry.Name()))
			return abs
		}
	}
	return ""
}
