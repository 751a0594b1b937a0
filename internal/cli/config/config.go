package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file written by neuron init
const FileName = "neuron.yml"

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config represents the neuron configuration
type Config struct {
	ProjectRoot string       `mapstructure:"project_root" yaml:"project_root,omitempty"`
	PackageFile string       `mapstructure:"package_file" yaml:"package_file"`
	Build       BuildConfig  `mapstructure:"build" yaml:"build"`
	Walker      WalkerConfig `mapstructure:"walker" yaml:"walker"`
	Cache       CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Server      ServerConfig `mapstructure:"server" yaml:"server"`
	Log         LogConfig    `mapstructure:"log" yaml:"log"`
}

// BuildConfig represents build configuration
type BuildConfig struct {
	Entry   string `mapstructure:"entry" yaml:"entry,omitempty"`
	Output  string `mapstructure:"output" yaml:"output"`
	MaxJobs int    `mapstructure:"max_jobs" yaml:"max_jobs,omitempty"`
}

// WalkerConfig says where the walked dependency tree comes from: a manifest
// file already on disk, or a command printing one.
type WalkerConfig struct {
	Manifest string   `mapstructure:"manifest" yaml:"manifest,omitempty"`
	Command  string   `mapstructure:"command" yaml:"command,omitempty"`
	Args     []string `mapstructure:"args" yaml:"args,omitempty"`
}

// CacheConfig represents artifact cache configuration
type CacheConfig struct {
	Backend  string        `mapstructure:"backend" yaml:"backend"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// ServerConfig represents dev server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		PackageFile: "package.json",
		Build:       BuildConfig{Output: "dist/bundle.js"},
		Cache:       CacheConfig{Backend: CacheMemory, TTL: 24 * time.Hour},
		Server:      ServerConfig{Port: 3000, Host: "localhost"},
		Log:         LogConfig{Level: "info", Format: "console"},
	}
}

// Load loads the configuration from neuron.yml or neuron.yaml in the
// current directory
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads the configuration from dir. Environment variables prefixed
// with NEURON_ override file values (NEURON_SERVER_PORT for server.port).
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	// Set defaults
	d := Default()
	v.SetDefault("project_root", "")
	v.SetDefault("package_file", d.PackageFile)
	v.SetDefault("build.entry", "")
	v.SetDefault("build.output", d.Build.Output)
	v.SetDefault("build.max_jobs", 0)
	v.SetDefault("walker.manifest", "")
	v.SetDefault("walker.command", "")
	v.SetDefault("walker.args", []string{})
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Set config name and paths
	v.SetConfigName("neuron")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	// Enable environment variable support
	v.SetEnvPrefix("NEURON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.ProjectRoot == "" {
		config.ProjectRoot = dir
	} else if !filepath.IsAbs(config.ProjectRoot) {
		config.ProjectRoot = filepath.Join(dir, config.ProjectRoot)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Save writes cfg as YAML to path
func Save(path string, cfg *Config) error {
	out := *cfg
	out.ProjectRoot = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// InProject checks if dir holds a neuron project
func InProject(dir string) bool {
	for _, name := range []string{"neuron.yml", "neuron.yaml", "package.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// GetProjectRoot walks up from dir to the first directory holding a
// neuron config file, or a package.json as fallback
func GetProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if InProject(dir) {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", fmt.Errorf("not in a neuron project (no neuron.yml or package.json found)")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if cfg.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory, redis or none, got: %s", cfg.Cache.Backend)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}
	if cfg.Build.MaxJobs < 0 {
		return fmt.Errorf("build.max_jobs must not be negative, got: %d", cfg.Build.MaxJobs)
	}
	if cfg.Walker.Manifest != "" && cfg.Walker.Command != "" {
		return fmt.Errorf("walker.manifest and walker.command are mutually exclusive")
	}

	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got: %s", cfg.Log.Format)
	}
	return nil
}
