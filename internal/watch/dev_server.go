package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/conduit-lang/neuron/internal/metrics"
	"github.com/conduit-lang/neuron/internal/tooling/build"
)

// Dev server routes
const (
	BundlePath  = "/bundle.js"
	ReloadPath  = "/neuron/reload"
	ClientPath  = "/neuron/client.js"
	StatusPath  = "/status"
	MetricsPath = "/metrics"
)

// reloadClient reconnects to the reload socket and refreshes the page after
// each successful rebuild
const reloadClient = `(function(){
  function connect(){
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + ReloadPath + `");
    ws.onmessage = function(e){
      var msg = JSON.parse(e.data);
      if (msg.type === "success") { location.reload(); }
      if (msg.type === "error") { console.error("[neuron]", msg.errors); }
    };
    ws.onclose = function(){ setTimeout(connect, 1000); };
  }
  connect();
})();
`

// DevServerConfig holds configuration for the dev server
type DevServerConfig struct {
	Host           string
	Port           int
	Profiling      bool
	WatchPatterns  []string
	IgnorePatterns []string
}

// DefaultDevServerConfig returns the default dev server configuration
func DefaultDevServerConfig() *DevServerConfig {
	return &DevServerConfig{
		Host: "localhost",
		Port: 3000,
		WatchPatterns: []string{
			"*.js",
			"*.mjs",
			"*.cjs",
			"*.json",
			"*.yml",
			"*.yaml",
		},
		IgnorePatterns: []string{
			"*.swp",
			"*.swo",
			"*~",
			".DS_Store",
		},
	}
}

// DevServer rebuilds the bundle on change, serves the latest good bundle
// and pushes build outcomes to live-reload clients
type DevServer struct {
	system       *build.System
	watcher      *FileWatcher
	reloadServer *ReloadServer
	metrics      *metrics.Collector
	logger       *zap.Logger
	httpServer   *http.Server
	config       *DevServerConfig

	buildMutex sync.Mutex

	stateMutex sync.RWMutex
	isBuilding bool
	lastGood   *build.BuildResult
	lastError  *build.BuildResult

	wg sync.WaitGroup
}

// NewDevServer creates a development server around system
func NewDevServer(system *build.System, config *DevServerConfig, collector *metrics.Collector, logger *zap.Logger) (*DevServer, error) {
	if config == nil {
		config = DefaultDevServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ds := &DevServer{
		system:       system,
		reloadServer: NewReloadServer(collector, logger),
		metrics:      collector,
		logger:       logger,
		config:       config,
	}

	var err error
	ds.watcher, err = NewFileWatcher(system.Options().ProjectRoot,
		config.WatchPatterns, config.IgnorePatterns, ds.handleFileChange, logger)
	if err != nil {
		ds.reloadServer.Close()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return ds, nil
}

// Addr returns the listen address
func (ds *DevServer) Addr() string {
	return net.JoinHostPort(ds.config.Host, strconv.Itoa(ds.config.Port))
}

// Start performs the initial build, then starts watching and serving.
// A failing initial build does not stop the server so fixes get picked up.
func (ds *DevServer) Start(ctx context.Context) error {
	ds.logger.Info("starting dev server", zap.String("addr", ds.Addr()))

	ds.rebuild(ctx, nil)

	if err := ds.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	listener, err := net.Listen("tcp", ds.Addr())
	if err != nil {
		ds.watcher.Stop()
		return fmt.Errorf("failed to listen on %s: %w", ds.Addr(), err)
	}

	ds.httpServer = &http.Server{
		Handler:           ds.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ds.wg.Add(1)
	go func() {
		defer ds.wg.Done()
		if err := ds.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			ds.logger.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down
func (ds *DevServer) Stop(ctx context.Context) error {
	var firstErr error
	if ds.httpServer != nil {
		if err := ds.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := ds.watcher.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	ds.reloadServer.Close()
	ds.wg.Wait()
	return firstErr
}

// Router returns the dev server's HTTP routes
func (ds *DevServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(BundlePath, ds.handleBundle)
	r.Get(ReloadPath, ds.reloadServer.HandleWebSocket)
	r.Get(ClientPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(reloadClient))
	})
	r.Get(StatusPath, ds.handleStatus)
	if ds.metrics != nil {
		r.Method(http.MethodGet, MetricsPath, ds.metrics.Handler())
	}
	if ds.config.Profiling {
		registerProfiling(r)
	}

	return r
}

// handleFileChange rebuilds when a change touches the bundle
func (ds *DevServer) handleFileChange(files []string) error {
	if !ds.system.Affects(files) {
		ds.logger.Debug("change outside the bundle", zap.Strings("files", files))
		return nil
	}
	ds.rebuild(context.Background(), files)
	return nil
}

// rebuild runs one build and publishes its outcome. Builds never overlap.
func (ds *DevServer) rebuild(ctx context.Context, files []string) {
	ds.buildMutex.Lock()
	defer ds.buildMutex.Unlock()

	ds.setBuilding(true)
	defer ds.setBuilding(false)

	var (
		result *build.BuildResult
		err    error
	)
	if files != nil {
		ds.reloadServer.NotifyBuilding(files)
		ds.logger.Info("rebuilding",
			zap.Strings("files", files),
			zap.Strings("entries", ds.system.AffectedEntries(files)))
		result, err = ds.system.IncrementalBuild(ctx, files)
	} else {
		result, err = ds.system.Build(ctx)
	}
	if err != nil {
		ds.logger.Error("rebuild failed", zap.Error(err))
		ds.reloadServer.NotifyErrors("", []*ErrorInfo{{Message: err.Error()}})
		return
	}

	if result.Skipped {
		return
	}

	if !result.Success {
		infos := make([]*ErrorInfo, 0, len(result.Errors))
		for _, e := range result.Errors {
			infos = append(infos, ErrorInfoFrom(e))
			ds.logger.Warn("build error",
				zap.String("build_id", result.BuildID),
				zap.String("code", e.Code),
				zap.String("module", e.Location.File),
				zap.String("message", e.Message))
		}
		ds.stateMutex.Lock()
		ds.lastError = result
		ds.stateMutex.Unlock()
		ds.reloadServer.NotifyErrors(result.BuildID, infos)
		return
	}

	ds.stateMutex.Lock()
	ds.lastGood = result
	ds.lastError = nil
	ds.stateMutex.Unlock()

	ds.logger.Info("rebuilt bundle",
		zap.String("build_id", result.BuildID),
		zap.Int("modules", result.Modules),
		zap.Bool("cache_hit", result.CacheHit),
		zap.Duration("duration", result.Duration))
	ds.reloadServer.NotifySuccess(result)
}

func (ds *DevServer) setBuilding(v bool) {
	ds.stateMutex.Lock()
	ds.isBuilding = v
	ds.stateMutex.Unlock()
}

func (ds *DevServer) handleBundle(w http.ResponseWriter, r *http.Request) {
	ds.stateMutex.RLock()
	result := ds.lastGood
	ds.stateMutex.RUnlock()

	if result == nil {
		http.Error(w, "no successful build yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Neuron-Build", result.BuildID)
	w.Write([]byte(result.Code))
}

// Status is the /status response body
type Status struct {
	Building  bool               `json:"building"`
	Clients   int                `json:"clients"`
	LastGood  *build.BuildResult `json:"last_good,omitempty"`
	LastError *build.BuildResult `json:"last_error,omitempty"`
	Runtime   map[string]any     `json:"runtime"`
}

func (ds *DevServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ds.stateMutex.RLock()
	status := Status{
		Building:  ds.isBuilding,
		Clients:   ds.reloadServer.ConnectionCount(),
		LastGood:  ds.lastGood,
		LastError: ds.lastError,
		Runtime:   runtimeStats(),
	}
	ds.stateMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		ds.logger.Debug("failed to write status", zap.Error(err))
	}
}
