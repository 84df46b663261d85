// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mfpusage.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
printers:
  - url: 10.0.1.20
  - url: http://10.0.1.21/
    alias: library
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Username != "admin" || cfg.Password != "admin" {
		t.Errorf("credentials = %s/%s, want admin/admin defaults", cfg.Username, cfg.Password)
	}
	if cfg.TimeoutSeconds != 30 || cfg.RetryCount != 2 || cfg.PauseSeconds != 0.5 {
		t.Errorf("timing defaults = %d/%d/%v", cfg.TimeoutSeconds, cfg.RetryCount, cfg.PauseSeconds)
	}
	if cfg.UserNum != 85 {
		t.Errorf("UserNum = %d, want 85", cfg.UserNum)
	}
	if cfg.ListenAddr != ":8292" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}

	// URL normalization: scheme added, trailing slash trimmed.
	if cfg.Printers[0].URL != "http://10.0.1.20" {
		t.Errorf("printer 0 = %q", cfg.Printers[0].URL)
	}
	if cfg.Printers[1].URL != "http://10.0.1.21" {
		t.Errorf("printer 1 = %q", cfg.Printers[1].URL)
	}
}

func TestLoadZeroRetries(t *testing.T) {
	path := writeConfig(t, `
printers:
  - url: 10.0.1.20
retry_count: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	// An explicit zero disables retries; only an absent key gets the default.
	if cfg.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", cfg.RetryCount)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MFP_USER", "svc-print")
	t.Setenv("MFP_PASS", "secret")
	path := writeConfig(t, `
printers:
  - url: 10.0.1.20
username: fromfile
password: fromfile
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Username != "svc-print" || cfg.Password != "secret" {
		t.Errorf("credentials = %s/%s, want env overrides", cfg.Username, cfg.Password)
	}
}

func TestLoadRejectsEmptyFleet(t *testing.T) {
	path := writeConfig(t, "export_dir: ./exports\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted a config without printers")
	}
}

func TestAlias(t *testing.T) {
	cfg := &Config{Printers: []Printer{
		{URL: "http://10.0.1.20", Alias: "office"},
		{URL: "http://10.0.1.21"},
	}}
	if got := cfg.Alias("http://10.0.1.20"); got != "office" {
		t.Errorf("Alias = %q", got)
	}
	if got := cfg.Alias("10.0.1.20"); got != "office" {
		t.Errorf("Alias without scheme = %q", got)
	}
	if got := cfg.Alias("http://10.0.1.21"); got != "http://10.0.1.21" {
		t.Errorf("Alias fallback = %q", got)
	}
}

func TestResolvePrinters(t *testing.T) {
	cfg := &Config{Printers: []Printer{
		{URL: "http://10.0.1.20", Alias: "office"},
		{URL: "http://10.0.1.21", Alias: "library"},
	}}

	if got := cfg.ResolvePrinters("all"); len(got) != 2 {
		t.Errorf("all = %d printers, want 2", len(got))
	}
	if got := cfg.ResolvePrinters(""); len(got) != 2 {
		t.Errorf("empty = %d printers, want 2", len(got))
	}

	got := cfg.ResolvePrinters("10.0.1.21")
	if len(got) != 1 || got[0].Alias != "library" {
		t.Errorf("single match = %+v", got)
	}

	got = cfg.ResolvePrinters("Library")
	if len(got) != 1 || got[0].URL != "http://10.0.1.21" {
		t.Errorf("alias match = %+v", got)
	}

	got = cfg.ResolvePrinters("10.0.1.20, 10.0.1.99")
	if len(got) != 2 {
		t.Fatalf("list = %d printers, want 2", len(got))
	}
	// Unknown addresses pass through for ad-hoc scraping.
	if got[1].URL != "http://10.0.1.99" || got[1].Alias != "" {
		t.Errorf("pass-through = %+v", got[1])
	}
}
