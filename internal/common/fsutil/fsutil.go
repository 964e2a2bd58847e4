// Package fsutil has the small path helpers shared by the model
// registry and the serve command.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves a leading '~' against the current user's home
// directory. Paths without one pass through untouched, so model and
// store locations from config files work in both spellings.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists reports whether path can be stat'd. Errors other than
// not-exist (permissions, for instance) count as existing so the
// caller surfaces them on open instead of misreporting a missing file.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
