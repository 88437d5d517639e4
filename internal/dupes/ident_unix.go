//go:build unix

package dupes

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// dirIdentity returns a stable identity for a directory so revisits via
// links or bind mounts are detected. Device and inode identify a directory
// regardless of the path it was reached through.
func dirIdentity(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return filepath.Clean(path), nil
	}
	return fmt.Sprintf("%d:%d", st.Dev, st.Ino), nil
}
