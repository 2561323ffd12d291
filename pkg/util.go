package pkg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// PathExists reports whether path exists and is a directory (isDir) or a
// regular file (!isDir).
func PathExists(path string, isDir bool) (bool, error) {
	stat, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return stat.IsDir() == isDir, nil
}

// EnvOr returns the value of the environment variable key, or def when unset or empty.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
