package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions is the allow-list of source containers, lower case
// and without the dot.
var SupportedExtensions = []string{"mp4", "m4v", "mov", "mkv", "avi", "wmv", "flv", "webm"}

// IsSupported reports whether name carries a supported container extension.
func IsSupported(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, v := range SupportedExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// ValidateSource checks that path exists, is a regular file and has a
// supported extension. It never starts a subprocess.
func ValidateSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedFormat, path)
	}
	if !IsSupported(path) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return nil
}
