// Package diskspace checks free space on the filesystem holding the match
// database before a batch writes to it.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/draftsight/collector/internal/constants"
)

// DefaultMinFree is the free space a batch requires by default.
const DefaultMinFree int64 = constants.DefaultMinFreeMB * MB

// MB is one mebibyte.
const MB int64 = 1024 * 1024

// InsufficientSpaceError indicates that free space dropped below the minimum.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB free, have %.2f MB",
		e.Path, requiredMB, availableMB)
}

// Check returns an InsufficientSpaceError when the filesystem holding path
// has less than minFree bytes available. path need not exist yet; its
// closest existing parent is measured. When free space cannot be
// determined, Check returns nil and writes fail naturally instead.
func Check(path string, minFree int64) error {
	if minFree <= 0 {
		return nil
	}
	available, ok := Available(path)
	if !ok {
		return nil
	}
	if available < minFree {
		return &InsufficientSpaceError{
			Path:           path,
			RequiredBytes:  minFree,
			AvailableBytes: available,
		}
	}
	return nil
}

// Available returns the bytes available to the current user on the
// filesystem holding path, and false when that cannot be determined.
func Available(path string) (int64, bool) {
	dir := existingDir(path)
	if dir == "" {
		return 0, false
	}
	return available(dir)
}

// IsInsufficientSpaceError reports whether err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}

// existingDir walks up from path to the first directory that exists.
func existingDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	for current := abs; ; {
		if info, err := os.Stat(current); err == nil && info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}
