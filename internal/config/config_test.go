package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected missing file, got exists for %s", path)
	}
	if cfg.Workflow.ItemDelayMS != defaultItemDelayMS {
		t.Fatalf("defaults not applied: %+v", cfg.Workflow)
	}
	if cfg.MeshGen.MinPollSeconds != defaultMinPollSeconds || cfg.MeshGen.MaxPollSeconds != defaultMaxPollSeconds {
		t.Fatalf("meshgen defaults not applied: %+v", cfg.MeshGen)
	}
}

func TestLoadOverridesAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
output_dir = "~/sprites"

[workflow]
item_delay_ms = 250

[meshgen]
api_key = "secret"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected file to exist")
	}
	if cfg.Workflow.ItemDelayMS != 250 {
		t.Fatalf("override lost: %+v", cfg.Workflow)
	}
	if cfg.MeshGen.APIKey != "secret" {
		t.Fatalf("api key lost: %+v", cfg.MeshGen)
	}
	home, _ := os.UserHomeDir()
	if !strings.HasPrefix(cfg.Paths.OutputDir, home) {
		t.Fatalf("tilde not expanded: %q", cfg.Paths.OutputDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative item delay", func(c *Config) { c.Workflow.ItemDelayMS = -1 }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"poll window inverted", func(c *Config) { c.MeshGen.MaxPollSeconds = 1 }},
		{"zero capture size", func(c *Config) { c.Capture.Width = 0 }},
		{"missing registry path", func(c *Config) { c.Paths.RegistryPath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize: %v", err)
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample must load cleanly: exists=%v err=%v", exists, err)
	}
}
