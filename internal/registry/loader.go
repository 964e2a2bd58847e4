// Package registry discovers model files on disk. Only GGUF files are
// recognized; the filename doubles as the model ID.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ktulhu/internal/common/fsutil"
	"ktulhu/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := types.Model{ID: name, Path: filepath.Join(abs, name)}
		if info, err := e.Info(); err == nil {
			m.SizeMB = info.Size() / (1 << 20)
		}
		models = append(models, m)
	}
	return models, nil
}
