package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "chat_id": 0}},
		"scheduler": {"enabled": true, "schedule": "0 */6 * * *", "run_timeout": "10m"},
		"crawl": {"providers": ["elsevier", "wiley"], "rate_per_sec": 1, "timeout": "20s", "insecure_retry": true},
		"export": {"path": "data.json", "pretty": true}
	}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Schedule != "0 */6 * * *" {
		t.Fatalf("schedule = %q", cfg.Scheduler.Schedule)
	}
	if len(cfg.Crawl.Providers) != 2 {
		t.Fatalf("providers = %v", cfg.Crawl.Providers)
	}
	if !cfg.Crawl.InsecureRetry {
		t.Fatal("insecure_retry not decoded")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 10m "); err != nil || d != 10*time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty should be 0, got %v, %v", d, err)
	}
	for _, raw := range []string{"-10m", "10 minutes", "soon"} {
		if _, err := ParseDurationField("x", raw); err == nil {
			t.Errorf("ParseDurationField(%q) should fail", raw)
		}
	}
	if d, err := ParseDurationOrDefault("x", "", 20*time.Second); err != nil || d != 20*time.Second {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}

func TestLoadAppliesOverrideBeforeValidate(t *testing.T) {
	t.Parallel()
	// No export.path in the file: only the override makes this valid.
	path := writeConfig(t, "config.json", `{
		"logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "chat_id": 0}},
		"scheduler": {"enabled": false},
		"crawl": {"insecure_retry": false},
		"export": {"path": ""}
	}`)

	m := NewManager(path)
	if _, err := m.Load(); err == nil {
		t.Fatal("Load without override should fail validation")
	}

	m.SetOverride(func(cfg *Config) { cfg.Export.Path = "out/data.json" })
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load with override: %v", err)
	}
	if cfg.Export.Path != "out/data.json" {
		t.Fatalf("export.path = %q", cfg.Export.Path)
	}
	// A re-parse (what Watch does on file change) keeps the override.
	cfg2, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg2.Export.Path != "out/data.json" {
		t.Fatalf("reparsed export.path = %q", cfg2.Export.Path)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
  console: true
  file: {enabled: false, path: ""}
  telegram: {enabled: false, chat_id: 0}
scheduler:
  enabled: true
  schedule: 6h
crawl:
  providers: [mdpi]
  mdpi_journals: [foods, nutrients]
  insecure_retry: false
export:
  path: data.json
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Schedule != "6h" {
		t.Fatalf("schedule = %q", cfg.Scheduler.Schedule)
	}
	if len(cfg.Crawl.MDPIJournals) != 2 {
		t.Fatalf("mdpi_journals = %v", cfg.Crawl.MDPIJournals)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "chat_id": 0}},
		"scheduler": {"enabled": true},
		"crawl": {"insecure_retry": false},
		"export": {"path": "data.json"},
		"no_such_key": 1
	}`)

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cfg := &Config{Export: ExportConfig{Path: "data.json"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Export.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing export.path")
	}

	cfg.Export.Path = "data.json"
	cfg.Scheduler.RunTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid duration")
	}

	cfg.Scheduler.RunTimeout = ""
	cfg.Notify = &NotifyConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for notify without token")
	}

	cfg.Notify = nil
	cfg.Crawl.SelectorSites = []SelectorSite{{Name: "X", URL: "https://x"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for selector site without list_selector")
	}
}
