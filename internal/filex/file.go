package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir resolves dir against the working directory, creates it with
// owner-only permissions if missing and returns the absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}
