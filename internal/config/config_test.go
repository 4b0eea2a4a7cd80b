package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger { return zap.NewNop() }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deepresearch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Fatalf("http.port = %d", cfg.HTTP.Port)
	}
	if cfg.Pipeline.MaxRetries != 1 || cfg.Pipeline.MaxDocuments != 20 {
		t.Fatalf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.LLM.Timeout != 120*time.Second {
		t.Fatalf("llm.timeout = %v", cfg.LLM.Timeout)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9090
pipeline:
  max_retries: 2
  extra_blocked_hosts:
    - spam.example.net
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Fatalf("http.port = %d", cfg.HTTP.Port)
	}
	if cfg.Pipeline.MaxRetries != 2 {
		t.Fatalf("pipeline.max_retries = %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Search.Engine != "google" {
		t.Fatalf("search.engine = %q", cfg.Search.Engine)
	}

	rc := cfg.ResearchConfig()
	found := false
	for _, h := range rc.BlockedHosts {
		if h == "spam.example.net" {
			found = true
		}
	}
	if !found {
		t.Fatalf("extra blocked host not merged: %v", rc.BlockedHosts)
	}
	// The built-in blocklist stays intact underneath the extras.
	if len(rc.BlockedHosts) < 8 {
		t.Fatalf("default blocklist lost: %v", rc.BlockedHosts)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
auth:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("auth enabled without secret must be rejected")
	}

	path = writeConfig(t, `
http:
  port: 99999
`)
	if _, err := Load(path); err == nil {
		t.Fatal("out-of-range port must be rejected")
	}
}

func TestWatcherReloadsDynamicSubset(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)
	w, err := NewWatcher(path, Dynamic{LogLevel: "info"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	changes := make(chan Dynamic, 1)
	w.OnChange(func(d Dynamic) { changes <- d })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(`
logging:
  level: debug
pipeline:
  extra_blocked_hosts:
    - spam.example.net
`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-changes:
		if d.LogLevel != "debug" {
			t.Fatalf("log level = %q", d.LogLevel)
		}
		if len(d.ExtraBlockedHosts) != 1 || d.ExtraBlockedHosts[0] != "spam.example.net" {
			t.Fatalf("blocked hosts = %v", d.ExtraBlockedHosts)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
	if w.Current().LogLevel != "debug" {
		t.Fatalf("Current() = %+v", w.Current())
	}
}

func TestWatcherKeepsLastGoodValuesOnParseFailure(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	w, err := NewWatcher(path, Dynamic{LogLevel: "info"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("logging: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to observe the write.
	time.Sleep(300 * time.Millisecond)
	if w.Current().LogLevel != "info" {
		t.Fatalf("malformed file replaced good values: %+v", w.Current())
	}
}
