package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath returns the default results database location.
// On Unix: ~/.axelrod/results.db
// On Windows: %USERPROFILE%\.axelrod\results.db
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".axelrod", "results.db"), nil
}

// ResolvePath returns path, or DefaultPath when path is empty.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultPath()
}
