package diskspace

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	// the database file and its directory don't exist yet
	dbPath := filepath.Join(dir, "data", "nested", "matches.db")

	t.Run("SmallMinimum", func(t *testing.T) {
		if err := Check(dbPath, 1024); err != nil {
			t.Errorf("Expected no error for a 1KB minimum, got: %v", err)
		}
	})

	t.Run("ZeroMinimumDisablesCheck", func(t *testing.T) {
		if err := Check(dbPath, 0); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
	})

	t.Run("HugeMinimum", func(t *testing.T) {
		if _, ok := Available(dbPath); !ok {
			t.Skip("Could not determine available space")
		}
		err := Check(dbPath, 1<<62)
		if err == nil {
			t.Fatal("Expected InsufficientSpaceError for a 4EB minimum")
		}
		if !IsInsufficientSpaceError(err) {
			t.Errorf("Expected InsufficientSpaceError, got: %T", err)
		}
		if !IsInsufficientSpaceError(fmt.Errorf("batch: %w", err)) {
			t.Error("wrapped error not recognized")
		}
	})
}

func TestAvailable(t *testing.T) {
	space, ok := Available(t.TempDir())
	if !ok {
		t.Skip("Could not determine available space")
	}
	if space <= 0 {
		t.Errorf("Expected positive available space, got %d", space)
	}
	t.Logf("Available space in temp dir: %.2f GB", float64(space)/(1024*1024*1024))
}

func TestInsufficientSpaceErrorMessage(t *testing.T) {
	err := &InsufficientSpaceError{
		Path:           "/data/matches.db",
		RequiredBytes:  256 * 1024 * 1024,
		AvailableBytes: 10 * 1024 * 1024,
	}
	want := "insufficient disk space for /data/matches.db: need 256.00 MB free, have 10.00 MB"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
