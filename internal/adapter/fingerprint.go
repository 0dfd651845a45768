package adapter

import (
	"fmt"
	"os"
	"path/filepath"
)

// Fingerprint identifies an input snapshot as "name|size|mtime", with
// mtime in whole Unix seconds. An in-place edit that keeps both size and
// mtime yields the same fingerprint.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%s|%d|%d", filepath.Base(path), info.Size(), info.ModTime().Unix()), nil
}
