//go:build !unix

package dupes

import "path/filepath"

// dirIdentity returns a stable identity for a directory. Without dev:ino
// the resolved absolute path is the best available key; it catches
// junction cycles on Windows since EvalSymlinks resolves reparse points.
func dirIdentity(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
