package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_StartsEmptyWithoutFile(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if got := s.URLFor("1"); got != "" {
		t.Errorf("expected no URL for screen 1, got %q", got)
	}
	if got := s.URLFor("2"); got != "" {
		t.Errorf("expected no URL for screen 2, got %q", got)
	}
}

func TestStore_SetAndGet(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetURL("1", "http://kiosk/page"); err != nil {
		t.Fatalf("SetURL failed: %v", err)
	}
	if got := s.URLFor("1"); got != "http://kiosk/page" {
		t.Errorf("URLFor(1) = %q", got)
	}
	if got := s.URLFor("2"); got != "" {
		t.Errorf("screen 2 must stay unset, got %q", got)
	}
}

func TestStore_UnknownScreenRejected(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetURL("3", "http://x"); err == nil {
		t.Error("expected error for unknown screen id")
	}
}

func TestStore_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.SetURL("2", "http://kiosk/other"); err != nil {
		t.Fatal(err)
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := s2.URLFor("2"); got != "http://kiosk/other" {
		t.Errorf("state must survive restart, got %q", got)
	}
}

func TestStore_LoadsExistingFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"hdmi1":"http://a","hdmi2":null}`), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.URLFor("1"); got != "http://a" {
		t.Errorf("URLFor(1) = %q", got)
	}
	if got := s.URLFor("2"); got != "" {
		t.Errorf("null hdmi2 must read as unset, got %q", got)
	}
}

func TestStore_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{broken`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path); err == nil {
		t.Error("expected error for malformed state file")
	}
}

func TestStore_SubscribersNotified(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	var seen []DesiredState
	s.Subscribe(func(st DesiredState) { seen = append(seen, st) })

	if err := s.SetURL("1", "http://kiosk/page"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(seen))
	}
	if seen[0].HDMI1 == nil || *seen[0].HDMI1 != "http://kiosk/page" {
		t.Errorf("notification carried wrong state: %+v", seen[0])
	}
}
