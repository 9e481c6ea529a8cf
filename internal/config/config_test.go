package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDir_RespectsXDGConfigHome(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	t.Cleanup(func() { os.Setenv("XDG_CONFIG_HOME", original) })
	os.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "unitreplay") {
		t.Errorf("Dir() = %q", dir)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	if err != nil {
		t.Fatalf("LoadSettings() on missing file = %v, want nil", err)
	}
	if s.DBPath != "" || s.FrameworkVersion != "" {
		t.Errorf("LoadSettings() = %+v, want zero values", s)
	}
}

func TestLoadSettings_ParsesKnownKeys(t *testing.T) {
	dir := t.TempDir()
	content := `# unitreplay settings
db_path = /var/tmp/events.db

framework_version=2
unknown_key = ignored
malformed line
= empty-key
`
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}
	if s.DBPath != "/var/tmp/events.db" {
		t.Errorf("DBPath = %q", s.DBPath)
	}
	if s.FrameworkVersion != "2" {
		t.Errorf("FrameworkVersion = %q", s.FrameworkVersion)
	}
}

func TestLoadTrackedPaths(t *testing.T) {
	dir := t.TempDir()
	content := `# files snapshotted with every event
/etc/app/app.conf
relative/path/skipped
/var/lib/app/data/../state.json

`
	if err := os.WriteFile(filepath.Join(dir, "tracked"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := LoadTrackedPaths(dir)
	if err != nil {
		t.Fatalf("LoadTrackedPaths() error: %v", err)
	}
	want := []string{"/etc/app/app.conf", "/var/lib/app/state.json"}
	if len(paths) != len(want) {
		t.Fatalf("LoadTrackedPaths() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestLoadTrackedPaths_MissingFile(t *testing.T) {
	paths, err := LoadTrackedPaths(t.TempDir())
	if err != nil {
		t.Fatalf("LoadTrackedPaths() on missing file = %v, want nil", err)
	}
	if len(paths) != 0 {
		t.Errorf("LoadTrackedPaths() = %v, want empty", paths)
	}
}
