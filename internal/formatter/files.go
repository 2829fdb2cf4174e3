package formatter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/tdx/internal/shared"
)

// FileInfo describes one CSV file in the exports directory.
type FileInfo struct {
	Name     string
	Path     string
	Size     int64
	Kind     Kind
	Modified time.Time
}

// ListCSVFiles returns the CSV files in dir, newest first.
//
// Files whose header cannot be classified are listed with [KindUnknown].
// A missing directory yields no files and no error.
func ListCSVFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, e.Name())
		kind, _ := SniffFile(path)
		files = append(files, FileInfo{
			Name:     e.Name(),
			Path:     path,
			Size:     info.Size(),
			Kind:     kind,
			Modified: info.ModTime(),
		})
	}

	slices.SortFunc(files, func(a, b FileInfo) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return files, nil
}

// LatestImportable returns the newest file in dir that can be imported
// (tracks, albums or artists).
func LatestImportable(dir string) (*FileInfo, error) {
	files, err := ListCSVFiles(dir)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if f.Kind.Importable() {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("%w in %s", shared.ErrNoExports, dir)
}
