package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		dir := writeConfig(t, `
provider: google
model: gemini-2.0-flash
target_lang: ru
source_lang: en
batch_size: 25
concurrency: 2
timeout_seconds: 90
`)
		f, err := Load(dir)
		if err != nil {
			t.Fatal(err)
		}
		if f == nil {
			t.Fatal("config not loaded")
		}
		if f.Provider != "google" || f.Model != "gemini-2.0-flash" {
			t.Errorf("provider/model = %q/%q", f.Provider, f.Model)
		}
		if f.TargetLang != "ru" || f.SourceLang != "en" {
			t.Errorf("langs = %q/%q", f.TargetLang, f.SourceLang)
		}
		if f.BatchSize != 25 || f.Concurrency != 2 {
			t.Errorf("batch/concurrency = %d/%d", f.BatchSize, f.Concurrency)
		}
		if f.Timeout() != 90*time.Second {
			t.Errorf("timeout = %v", f.Timeout())
		}
	})

	t.Run("missing file returns nil", func(t *testing.T) {
		f, err := Load(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if f != nil {
			t.Fatalf("got %#v, want nil", f)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := writeConfig(t, "provider: [unterminated")
		if _, err := Load(dir); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("negative batch size", func(t *testing.T) {
		dir := writeConfig(t, "batch_size: -1")
		if _, err := Load(dir); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("empty file gives zero values", func(t *testing.T) {
		dir := writeConfig(t, "")
		f, err := Load(dir)
		if err != nil {
			t.Fatal(err)
		}
		if f == nil {
			t.Fatal("empty file should still load")
		}
		if f.Provider != "" || f.BatchSize != 0 || f.Timeout() != 0 {
			t.Errorf("unexpected values: %#v", f)
		}
	})
}
