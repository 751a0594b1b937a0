package build

import (
	"context"
	goerrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/neuron/compiler/errors"
	"github.com/conduit-lang/neuron/internal/compiler/cache"
	"github.com/conduit-lang/neuron/internal/compiler/codegen"
	"github.com/conduit-lang/neuron/internal/compiler/pkgmeta"
	"github.com/conduit-lang/neuron/internal/compiler/walker"
	"github.com/conduit-lang/neuron/internal/metrics"
)

// BuildOptions configures the build process
type BuildOptions struct {
	ProjectRoot   string
	PackageFile   string // relative to ProjectRoot unless absolute
	Entry         string // defaults to the package's main module
	OutputPath    string // empty keeps the bundle in memory only
	ManifestPath  string
	WalkerCommand string
	WalkerArgs    []string
	MaxJobs       int
	Verbose       bool
	UseCache      bool
	CacheTTL      time.Duration
	ProgressFunc  func(current, total int, message string)
}

// DefaultBuildOptions returns sensible defaults
func DefaultBuildOptions() *BuildOptions {
	return &BuildOptions{
		ProjectRoot: ".",
		PackageFile: "package.json",
		OutputPath:  "dist/bundle.js",
		MaxJobs:     runtime.NumCPU(),
		UseCache:    true,
		CacheTTL:    24 * time.Hour,
	}
}

// BuildResult contains information about the build
type BuildResult struct {
	BuildID    string                 `json:"build_id"`
	Success    bool                   `json:"success"`
	OutputPath string                 `json:"output_path,omitempty"`
	Duration   time.Duration          `json:"duration_ns"`
	Modules    int                    `json:"modules"`
	Locals     int                    `json:"locals"`
	CacheHit   bool                   `json:"cache_hit"`
	Skipped    bool                   `json:"skipped,omitempty"`
	Code       string                 `json:"-"`
	Errors     []errors.CompilerError `json:"errors,omitempty"`
}

// Option customizes a System
type Option func(*System)

// WithWalker replaces the walker derived from the options
func WithWalker(w walker.Walker) Option {
	return func(s *System) { s.walker = w }
}

// WithStore sets the artifact cache backend
func WithStore(store cache.Store) Option {
	return func(s *System) { s.store = store }
}

// WithMetrics records builds on c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *System) { s.metrics = c }
}

// WithLogger sets the build logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *System) { s.logger = logger }
}

// System coordinates one project's builds. Builds are serialized; the
// dependency graph keeps its own lock so watchers may query it at any time.
type System struct {
	options  *BuildOptions
	walker   walker.Walker
	store    cache.Store
	hasher   *cache.FileHasher
	depGraph *cache.DependencyGraph
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu   sync.Mutex
	last *BuildResult
}

// NewSystem creates a new build system
func NewSystem(opts *BuildOptions, options ...Option) (*System, error) {
	if opts == nil {
		opts = DefaultBuildOptions()
	}

	root, err := filepath.Abs(opts.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid project root: %w", err)
	}
	opts.ProjectRoot = root
	if opts.PackageFile == "" {
		opts.PackageFile = "package.json"
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = runtime.NumCPU()
	}

	s := &System{
		options:  opts,
		hasher:   cache.NewFileHasher(),
		depGraph: cache.NewDependencyGraph(),
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.walker == nil {
		switch {
		case opts.ManifestPath != "":
			s.walker = &walker.ManifestWalker{Path: s.abs(opts.ManifestPath)}
		case opts.WalkerCommand != "":
			s.walker = &walker.CommandWalker{Command: opts.WalkerCommand, Args: opts.WalkerArgs, Dir: root}
		default:
			return nil, fmt.Errorf("no walker configured: set a manifest path or a walker command")
		}
	}
	if s.store == nil {
		if opts.UseCache {
			s.store = cache.NewMemoryStore()
		} else {
			s.store = cache.NoopStore{}
		}
	}

	return s, nil
}

// DependencyGraph returns the local file graph of the last walk
func (s *System) DependencyGraph() *cache.DependencyGraph {
	return s.depGraph
}

// Options returns the resolved build options
func (s *System) Options() *BuildOptions {
	return s.options
}

// Last returns the most recent build result, nil before the first build
func (s *System) Last() *BuildResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// PackagePath returns the absolute path of the package file
func (s *System) PackagePath() string {
	return s.abs(s.options.PackageFile)
}

// Build performs a full build: load the package, walk the tree, load
// missing sources, then assemble unless the cache already holds the
// artifact for identical inputs.
func (s *System) Build(ctx context.Context) (*BuildResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startTime := time.Now()
	result := &BuildResult{BuildID: uuid.NewString()}
	logger := s.logger.With(zap.String("build_id", result.BuildID))

	finish := func(status string) {
		result.Duration = time.Since(startTime)
		s.metrics.RecordBuild(status, result.Duration, result.Modules, len(result.Code))
		s.last = result
	}

	const totalSteps = 5
	s.progress(1, totalSteps, "Loading package metadata")

	pkgData, err := os.ReadFile(s.PackagePath())
	if err != nil {
		finish(metrics.StatusFailure)
		return nil, fmt.Errorf("failed to read package file: %w", err)
	}
	pkg, err := pkgmeta.Parse(pkgData)
	if err != nil {
		finish(metrics.StatusFailure)
		return nil, err
	}

	entry := s.options.Entry
	if entry == "" {
		entry = pkg.MainPath()
	}
	entry = s.abs(entry)

	s.progress(2, totalSteps, "Walking dependency tree")
	logger.Debug("walking", zap.String("entry", entry))

	nodes, err := s.walker.Walk(ctx, entry)
	if err != nil {
		if s.diagnose(result, err) {
			finish(metrics.StatusFailure)
			return result, nil
		}
		finish(metrics.StatusFailure)
		return nil, fmt.Errorf("walk failed: %w", err)
	}

	s.progress(3, totalSteps, fmt.Sprintf("Loading %d sources", len(nodes)))
	if err := s.loadSources(ctx, nodes); err != nil {
		if s.diagnose(result, err) {
			finish(metrics.StatusFailure)
			return result, nil
		}
		finish(metrics.StatusFailure)
		return nil, err
	}

	s.depGraph.BuildFromNodes(nodes)
	result.Modules = countLocal(nodes)

	key := s.hasher.HashBuild(pkgData, nodes)
	status := metrics.StatusSuccess

	s.progress(4, totalSteps, "Assembling bundle")
	if s.options.UseCache {
		if cached, err := s.store.Get(ctx, key); err == nil {
			if artifact, err := cache.DecodeArtifact(cached); err == nil {
				result.Code = artifact.Code
				result.Locals = artifact.Locals
				result.CacheHit = true
				status = metrics.StatusCached
				logger.Debug("cache hit", zap.String("key", key))
			} else {
				logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
			}
		} else if !cache.IsCacheMiss(err) {
			logger.Warn("cache lookup failed", zap.Error(err))
		}
	}

	if !result.CacheHit {
		bundle, err := codegen.NewAssembler(pkg, s.options.ProjectRoot, logger).Assemble(nodes)
		if err != nil {
			if s.diagnose(result, err) {
				finish(metrics.StatusFailure)
				return result, nil
			}
			finish(metrics.StatusFailure)
			return nil, fmt.Errorf("assembly failed: %w", err)
		}
		result.Code = bundle.Code
		result.Locals = bundle.Locals

		if s.options.UseCache {
			s.storeArtifact(ctx, logger, key, cache.Artifact{Code: bundle.Code, Locals: bundle.Locals})
		}
	}

	s.progress(5, totalSteps, "Writing bundle")
	if s.options.OutputPath != "" {
		out := s.abs(s.options.OutputPath)
		if err := writeBundle(out, result.Code); err != nil {
			finish(metrics.StatusFailure)
			return nil, fmt.Errorf("failed to write bundle: %w", err)
		}
		result.OutputPath = out
	}

	result.Success = true
	finish(status)

	logger.Info("build finished",
		zap.Int("modules", result.Modules),
		zap.Bool("cache_hit", result.CacheHit),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *System) storeArtifact(ctx context.Context, logger *zap.Logger, key string, artifact cache.Artifact) {
	data, err := artifact.Encode()
	if err == nil {
		err = s.store.Set(ctx, key, data, s.options.CacheTTL)
	}
	if err != nil {
		logger.Warn("cache store failed", zap.Error(err))
	}
}

// IncrementalBuild rebuilds when any changed file belongs to the last
// walk or is the package file. Unrelated changes yield a skipped result.
func (s *System) IncrementalBuild(ctx context.Context, changedFiles []string) (*BuildResult, error) {
	if !s.Affects(changedFiles) {
		return &BuildResult{Success: true, Skipped: true}, nil
	}
	return s.Build(ctx)
}

// AffectedEntries returns the entry files of the last walk that reach any
// of paths, in first-seen order.
func (s *System) AffectedEntries(paths []string) []string {
	seen := make(map[string]bool)
	var entries []string
	for _, p := range paths {
		p = s.abs(p)
		for _, candidate := range []string{filepath.ToSlash(p), p} {
			for _, e := range s.depGraph.AffectedEntries(candidate) {
				if !seen[e] {
					seen[e] = true
					entries = append(entries, e)
				}
			}
		}
	}
	return entries
}

// Affects reports whether a change to any of paths invalidates the bundle.
// Before the first walk every change does.
func (s *System) Affects(paths []string) bool {
	if s.depGraph.Size() == 0 {
		return true
	}
	pkgPath := s.PackagePath()
	for _, p := range paths {
		p = s.abs(p)
		if p == pkgPath || s.depGraph.Contains(filepath.ToSlash(p)) || s.depGraph.Contains(p) {
			return true
		}
	}
	return false
}

// loadSources reads the code of local nodes the walker left empty, using
// up to MaxJobs workers. Node order is untouched.
func (s *System) loadSources(ctx context.Context, nodes []*walker.Node) error {
	var pending []*walker.Node
	for _, n := range nodes {
		if !n.Foreign && !n.HasCode {
			pending = append(pending, n)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	jobs := make(chan *walker.Node, len(pending))
	results := make(chan error, len(pending))

	numWorkers := s.options.MaxJobs
	if numWorkers > len(pending) {
		numWorkers = len(pending)
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for node := range jobs {
				if err := ctx.Err(); err != nil {
					results <- err
					continue
				}
				data, err := os.ReadFile(filepath.FromSlash(node.Path))
				if err != nil {
					results <- errors.NewCompilerError("walker", errors.ErrMalformedSourceCode,
						fmt.Sprintf("cannot read source: %v", err),
						errors.SourceLocation{File: node.Path}, errors.Fatal).WithCause(err)
					continue
				}
				node.Code = string(data)
				node.HasCode = true
				results <- nil
			}
		}()
	}

	for _, node := range pending {
		jobs <- node
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var first error
	for err := range results {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// diagnose records a compiler error on the result and reports whether err
// was one
func (s *System) diagnose(result *BuildResult, err error) bool {
	var ce errors.CompilerError
	if !goerrors.As(err, &ce) {
		return false
	}
	result.Errors = append(result.Errors, ce)
	s.logger.Debug("build failed",
		zap.String("code", ce.Code),
		zap.String("module", ce.Location.File))
	return true
}

func (s *System) progress(current, total int, message string) {
	if s.options.ProgressFunc != nil {
		s.options.ProgressFunc(current, total, message)
	}
	if s.options.Verbose {
		s.logger.Info(message, zap.Int("step", current), zap.Int("steps", total))
	}
}

func (s *System) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.options.ProjectRoot, p)
}

func countLocal(nodes []*walker.Node) int {
	n := 0
	for _, node := range nodes {
		if !node.Foreign {
			n++
		}
	}
	return n
}

// writeBundle writes through a temporary file and renames it into place so
// readers never observe a partial bundle.
func writeBundle(path, code string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(code), 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
