package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/conduit-lang/neuron/internal/cli/config"
	"github.com/conduit-lang/neuron/internal/cli/ui"
	"github.com/conduit-lang/neuron/internal/compiler/cache"
	"github.com/conduit-lang/neuron/internal/logging"
	"github.com/conduit-lang/neuron/internal/metrics"
	"github.com/conduit-lang/neuron/internal/tooling/build"
)

// Flags shared by every command
var (
	projectDir = "."
	noColor    bool
)

func colorsOff() bool {
	return noColor || color.NoColor
}

// loadConfig reads neuron.yml from the project directory
func loadConfig() (*config.Config, error) {
	return config.LoadFrom(projectDir)
}

// newLogger builds the command logger on w. Verbose forces debug level.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) (*zap.Logger, error) {
	lc := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if verbose {
		lc.Level = "debug"
	}
	logger, err := logging.NewWriter(lc, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// newStore opens the artifact cache the config names. An unreachable
// Redis falls back to the in-memory store with a warning on w.
func newStore(ctx context.Context, cfg *config.Config, w io.Writer) (cache.Store, func() error, error) {
	storeCfg := cache.DefaultStoreConfig()
	storeCfg.DefaultTTL = cfg.Cache.TTL

	switch cfg.Cache.Backend {
	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cfg.Cache.RedisURL, storeCfg)
		if err != nil {
			fmt.Fprint(w, ui.Warning(
				fmt.Sprintf("Redis cache unavailable (%v), using the in-memory cache", err),
				[]string{"Check cache.redis_url in neuron.yml", "Disable caching with cache.backend: none"},
				colorsOff()))
			return cache.NewMemoryStoreWithConfig(storeCfg), func() error { return nil }, nil
		}
		return store, store.Close, nil
	case config.CacheNone:
		return cache.NoopStore{}, func() error { return nil }, nil
	default:
		return cache.NewMemoryStoreWithConfig(storeCfg), func() error { return nil }, nil
	}
}

// buildOptions maps the project config onto build options
func buildOptions(cfg *config.Config) *build.BuildOptions {
	opts := build.DefaultBuildOptions()
	opts.ProjectRoot = cfg.ProjectRoot
	opts.PackageFile = cfg.PackageFile
	opts.Entry = cfg.Build.Entry
	opts.OutputPath = cfg.Build.Output
	opts.ManifestPath = cfg.Walker.Manifest
	opts.WalkerCommand = cfg.Walker.Command
	opts.WalkerArgs = cfg.Walker.Args
	if cfg.Build.MaxJobs > 0 {
		opts.MaxJobs = cfg.Build.MaxJobs
	}
	opts.UseCache = cfg.Cache.Backend != config.CacheNone
	opts.CacheTTL = cfg.Cache.TTL
	return opts
}

// openSystem wires a build system from cfg. The returned func releases the
// cache backend. Warnings go to w.
func openSystem(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector, w io.Writer) (*build.System, func() error, error) {
	store, closeStore, err := newStore(ctx, cfg, w)
	if err != nil {
		return nil, nil, err
	}

	sys, err := build.NewSystem(buildOptions(cfg),
		build.WithStore(store),
		build.WithMetrics(collector),
		build.WithLogger(logger))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return sys, closeStore, nil
}
