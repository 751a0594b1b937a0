package watch

import (
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// ProfilingPath is where the dev server mounts pprof when enabled
const ProfilingPath = "/debug/pprof"

// registerProfiling mounts the pprof endpoints on router. Profiles expose
// process internals, so the dev server only mounts them on request.
func registerProfiling(router chi.Router) {
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	router.Route(ProfilingPath, func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)

		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
}

// runtimeStats reports goroutine and memory figures for /status
func runtimeStats() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc":       m.Alloc,
			"total_alloc": m.TotalAlloc,
			"sys":         m.Sys,
			"num_gc":      m.NumGC,
		},
	}
}
