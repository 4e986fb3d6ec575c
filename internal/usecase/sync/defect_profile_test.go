package sync

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefectProfileDefaultsWithoutPath(t *testing.T) {
	profile, err := LoadDefectProfile("")
	if err != nil {
		t.Fatalf("LoadDefectProfile() error = %v", err)
	}
	if profile.DefaultPriority != "High" {
		t.Fatalf("default priority = %q, want High", profile.DefaultPriority)
	}
	if profile.LinkType != "Relates" {
		t.Fatalf("link type = %q, want Relates", profile.LinkType)
	}
	if profile.PriorityFor("error") != "Highest" {
		t.Fatalf("PriorityFor(error) = %q, want Highest", profile.PriorityFor("error"))
	}
	if profile.PriorityFor("unknown-status") != "High" {
		t.Fatalf("PriorityFor(unknown-status) = %q, want default", profile.PriorityFor("unknown-status"))
	}
}

func TestLoadDefectProfileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	content := `
version = 1
default_priority = "Medium"
labels = ["qa-automation"]

[priorities]
failed = "Critical"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	profile, err := LoadDefectProfile(path)
	if err != nil {
		t.Fatalf("LoadDefectProfile() error = %v", err)
	}
	if profile.DefaultPriority != "Medium" {
		t.Fatalf("default priority = %q, want Medium", profile.DefaultPriority)
	}
	if profile.PriorityFor("failed") != "Critical" {
		t.Fatalf("PriorityFor(failed) = %q, want Critical", profile.PriorityFor("failed"))
	}
	// Unset fields fall back to the defaults.
	if profile.LinkType != "Relates" {
		t.Fatalf("link type = %q, want Relates", profile.LinkType)
	}
	if len(profile.Labels) != 1 || profile.Labels[0] != "qa-automation" {
		t.Fatalf("labels = %v", profile.Labels)
	}
}

func TestLoadDefectProfileRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte("version = 2\n"), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	if _, err := LoadDefectProfile(path); err == nil {
		t.Fatal("LoadDefectProfile() accepted an unsupported version")
	}
}
