package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix marks half-written files so directory scans can skip them.
const tempPrefix = ".inkwell-tmp-"

// writeAtomic replaces filename with data. The bytes go to a temp file in the
// same directory which is synced and renamed over the target, so a reader
// sees either the old draft or the new one, never a torn write.
func writeAtomic(filename string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(name, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(name, filename); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", filename, err)
	}
	return nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(filepath.Base(name), tempPrefix)
}
