package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindEnvFile looks for DefaultEnvFile in startDir and its parents. The
// search stops at the first directory holding a .git entry, at the user's
// home directory, or at the filesystem root. It returns "" when no file
// was found.
func FindEnvFile(startDir string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	currentDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		envPath := filepath.Join(currentDir, DefaultEnvFile)
		if info, err := os.Stat(envPath); err == nil && !info.IsDir() {
			return envPath, nil
		}

		if currentDir == homeDir {
			break
		}
		if _, err := os.Stat(filepath.Join(currentDir, ".git")); err == nil {
			break
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}
	return "", nil
}
