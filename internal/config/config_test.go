package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	t.Setenv("MIRA_TEST_KEY", "sk-test")
	cfg, err := Parse([]byte(`
source:
  input: clip.mp4
  format: ""
  rotation: 90
analyzer:
  kind: text
  backend: openai
  min_interval_ms: 500
openai:
  api_key: ${MIRA_TEST_KEY}
mqtt:
  enabled: true
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Source.Input != "clip.mp4" || cfg.Source.Format != "" || cfg.Source.Rotation != 90 {
		t.Errorf("source=%+v", cfg.Source)
	}
	if cfg.Source.Width != 640 {
		t.Errorf("width default lost: %d", cfg.Source.Width)
	}
	if cfg.Analyzer.MinInterval() != 500*time.Millisecond {
		t.Errorf("min interval=%v", cfg.Analyzer.MinInterval())
	}
	if cfg.Analyzer.FrameRateWindow != 8 || cfg.Analyzer.BusyPolicy != "drop" {
		t.Errorf("analyzer=%+v", cfg.Analyzer)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key=%q", cfg.OpenAI.APIKey)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "localhost:1883" {
		t.Errorf("mqtt=%+v", cfg.MQTT)
	}
	if cfg.Storage.JSON.BatchSize != BatchSize || cfg.Embeddings.Workers != MaxWorkers {
		t.Errorf("batch=%d workers=%d", cfg.Storage.JSON.BatchSize, cfg.Embeddings.Workers)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Source.Rotation = 45
	cfg.Analyzer.Kind = "luminosity"
	cfg.Analyzer.Backend = "ollama"
	cfg.Analyzer.PlaneOrder = "sideways"
	cfg.Analyzer.BusyPolicy = "queue"
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"source.rotation", "analyzer.backend", "sideways", "queue", "log.level"} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in %q", want, msg)
		}
	}
}

func TestValidateBackendKeys(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"gemini without key", func(c *Config) { c.Analyzer.Backend = "gemini" }, true},
		{"gemini with key", func(c *Config) { c.Analyzer.Backend = "gemini"; c.Gemini.APIKey = "k" }, false},
		{"tesseract labels", func(c *Config) { c.Analyzer.Backend = "tesseract" }, true},
		{"tesseract text", func(c *Config) { c.Analyzer.Kind = "text"; c.Analyzer.Backend = "tesseract" }, false},
		{"openai embeddings", func(c *Config) { c.Embeddings.Provider = "openai" }, true},
		{"postgres without host", func(c *Config) { c.Storage.Postgres.Enabled = true; c.Storage.Postgres.Host = "" }, true},
		{"postgres url", func(c *Config) {
			c.Storage.Postgres.Enabled = true
			c.Storage.Postgres.URL = "postgres://x"
		}, false},
		{"bad session id", func(c *Config) { c.Session.ID = "a/b" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mira.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	level, _ := ParseLevel(cfg.Log.Level)
	if level != slog.LevelDebug {
		t.Errorf("level=%v", level)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
