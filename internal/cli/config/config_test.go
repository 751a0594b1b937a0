package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	// Check defaults
	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host 'localhost', got %s", cfg.Server.Host)
	}

	if cfg.Build.Output != "dist/bundle.js" {
		t.Errorf("expected default output 'dist/bundle.js', got %s", cfg.Build.Output)
	}

	if cfg.Cache.Backend != CacheMemory {
		t.Errorf("expected default cache backend 'memory', got %s", cfg.Cache.Backend)
	}

	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("expected default cache ttl 24h, got %s", cfg.Cache.TTL)
	}

	if cfg.ProjectRoot != "." {
		t.Errorf("expected project root '.', got %s", cfg.ProjectRoot)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	// Write config file
	configContent := `
package_file: web/package.json
build:
  entry: src/main.js
  output: public/app.js
  max_jobs: 4
walker:
  command: neuron-walk
  args: ["--json"]
cache:
  backend: redis
  redis_url: redis://localhost:6379/0
  ttl: 1h
server:
  port: 8080
  host: 0.0.0.0
log:
  level: debug
  format: json
`
	os.WriteFile(filepath.Join(tmpDir, "neuron.yml"), []byte(configContent), 0644)

	cfg, err := LoadFrom(tmpDir)
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.PackageFile != "web/package.json" {
		t.Errorf("expected package file 'web/package.json', got %s", cfg.PackageFile)
	}

	if cfg.Build.Entry != "src/main.js" || cfg.Build.Output != "public/app.js" || cfg.Build.MaxJobs != 4 {
		t.Errorf("unexpected build config: %+v", cfg.Build)
	}

	if cfg.Walker.Command != "neuron-walk" || len(cfg.Walker.Args) != 1 || cfg.Walker.Args[0] != "--json" {
		t.Errorf("unexpected walker config: %+v", cfg.Walker)
	}

	if cfg.Cache.Backend != CacheRedis || cfg.Cache.TTL != time.Hour {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "neuron.yml"), []byte("server:\n  port: 8080\n"), 0644)

	t.Setenv("NEURON_SERVER_PORT", "9090")
	t.Setenv("NEURON_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(tmpDir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected env port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected env log level 'warn', got %s", cfg.Log.Level)
	}
}

func TestLoadRelativeProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "neuron.yml"), []byte("project_root: app\n"), 0644)

	cfg, err := LoadFrom(tmpDir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ProjectRoot != filepath.Join(tmpDir, "app") {
		t.Errorf("expected project root %s, got %s", filepath.Join(tmpDir, "app"), cfg.ProjectRoot)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "disk" }, true},
		{"redis without url", func(c *Config) { c.Cache.Backend = CacheRedis }, true},
		{"redis with url", func(c *Config) {
			c.Cache.Backend = CacheRedis
			c.Cache.RedisURL = "redis://localhost:6379"
		}, false},
		{"no cache", func(c *Config) { c.Cache.Backend = CacheNone }, false},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative jobs", func(c *Config) { c.Build.MaxJobs = -1 }, true},
		{"both walker sources", func(c *Config) {
			c.Walker.Manifest = "tree.yml"
			c.Walker.Command = "walk"
		}, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "neuron.yml"), []byte("cache:\n  backend: disk\n"), 0644)

	if _, err := LoadFrom(tmpDir); err == nil {
		t.Error("expected validation error for unknown cache backend")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default()
	cfg.ProjectRoot = tmpDir
	cfg.Walker.Manifest = "tree.yml"
	cfg.Server.Port = 4000

	if err := Save(filepath.Join(tmpDir, FileName), cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadFrom(tmpDir)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if loaded.Walker.Manifest != "tree.yml" || loaded.Server.Port != 4000 {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
	if loaded.Cache.TTL != 24*time.Hour {
		t.Errorf("expected ttl 24h after round trip, got %s", loaded.Cache.TTL)
	}
}

func TestGetProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte(`{}`), 0644)
	nested := filepath.Join(tmpDir, "src", "lib")
	os.MkdirAll(nested, 0755)

	root, err := GetProjectRoot(nested)
	if err != nil {
		t.Fatalf("GetProjectRoot() error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("expected %s, got %s", tmpDir, root)
	}

	if !InProject(tmpDir) {
		t.Error("expected InProject() to be true")
	}
	if InProject(nested) {
		t.Error("expected InProject() to be false for nested dir")
	}
}
