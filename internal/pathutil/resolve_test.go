package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	// t.TempDir may itself sit behind a symlink (macOS /var)
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Empty", func(t *testing.T) {
		got, err := ResolveAbsolutePath("")
		if err != nil || got != "" {
			t.Errorf("ResolveAbsolutePath(\"\") = %q, %v", got, err)
		}
	})

	t.Run("MissingComponents", func(t *testing.T) {
		got, err := ResolveAbsolutePath(filepath.Join(dir, "data", "matches.db"))
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(realDir, "data", "matches.db"); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("SymlinkedDirectory", func(t *testing.T) {
		target := filepath.Join(dir, "target")
		if err := os.Mkdir(target, 0o755); err != nil {
			t.Fatal(err)
		}
		link := filepath.Join(dir, "link")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		got, err := ResolveAbsolutePath(filepath.Join(link, "matches.db"))
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(realDir, "target", "matches.db"); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("HomeExpansion", func(t *testing.T) {
		t.Setenv("HOME", dir)
		t.Setenv("USERPROFILE", dir)
		got, err := ResolveAbsolutePath("~/draftsight/matches.db")
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(realDir, "draftsight", "matches.db"); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}
