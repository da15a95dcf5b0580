package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFile(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("LoadFrom(missing): %v", err)
	}
	if s.GetTemplateDir() != "." {
		t.Errorf("GetTemplateDir = %q, want .", s.GetTemplateDir())
	}
	if s.GetWorkers() != 1 {
		t.Errorf("GetWorkers = %d, want 1", s.GetWorkers())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	in := &Settings{
		DefaultUsername: "ops",
		TemplateDir:     "/srv/templates",
		OutputDir:       "/srv/out",
		Workers:         8,
	}
	if err := in.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	out, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if out.GetTemplateDir() != "/srv/templates" {
		t.Errorf("GetTemplateDir = %q", out.GetTemplateDir())
	}
	if out.GetWorkers() != 8 {
		t.Errorf("GetWorkers = %d", out.GetWorkers())
	}
}

func TestLoadFromMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom(malformed) did not fail")
	}
}
