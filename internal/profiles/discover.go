// Package profiles finds the auth profiles workers run under and, for remote
// backends, stages them onto the local filesystem first.
package profiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"slotd/pkg/types"
)

// Discover lists *.json files in dir as profiles, sorted by file name. The
// profile name is the file stem; the path is absolute.
func Discover(dir string) ([]types.Profile, error) {
	base, err := ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, hydrationError{msg: "profile directory does not exist: " + abs}
		}
		return nil, fmt.Errorf("stat profile dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, hydrationError{msg: "profile path is not a directory: " + abs}
	}
	// ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.Profile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, types.Profile{Name: strings.TrimSuffix(name, ".json"), Path: filepath.Join(abs, name)})
	}
	return out, nil
}

// ExpandHome expands a leading '~' to the user's home directory.
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

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
