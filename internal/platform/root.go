package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigFileName is the per-project configuration file looked up by FindConfig.
const ConfigFileName = ".inkwell.yaml"

// ErrNoConfig is returned by FindConfig when no configuration file exists
// between startDir and the filesystem root.
var ErrNoConfig = errors.New("config file not found")

// FindConfig looks upwards from startDir for ConfigFileName and returns its
// absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", ErrNoConfig
}
