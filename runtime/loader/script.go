package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Script is the executable content of a fetched file. Running it
// registers the definitions the file carries.
type Script func(r *Registry)

// Fetcher retrieves the script behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Script, error)
}

// Catalog serves scripts from memory by URL
type Catalog map[string]Script

// Fetch implements Fetcher
func (c Catalog) Fetch(_ context.Context, url string) (Script, error) {
	script, ok := c[url]
	if !ok {
		return nil, fmt.Errorf("no script registered for %s", url)
	}
	return script, nil
}

// Decoder turns a fetched body into a script
type Decoder func(body []byte) (Script, error)

// HTTPFetcher downloads scripts and decodes them with Decode
type HTTPFetcher struct {
	Client *http.Client
	Decode Decoder
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Script, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return f.Decode(body)
}

type completion struct {
	url    string
	script Script
	err    error
}

// load queues cb until inst's definition registers. Only the first
// request for a definition goes on to fetch.
func (r *Registry) load(inst *Instance, cb func()) {
	def := inst.Definition
	def.facade = inst.facade
	def.async = inst.async
	if def.loadClosed {
		return
	}
	def.loadQueue = append(def.loadQueue, cb)
	if len(def.loadQueue) < 2 {
		r.loadByModule(def)
	}
}

// loadByModule fetches the file backing def. A package is fetched once per
// session unless the module is a facade or async entry. The loaded list
// records the package id, or the module id for facades.
func (r *Registry) loadByModule(def *Definition) {
	if def.downloaded {
		return
	}
	def.downloaded = true

	if contains(r.pkgs, def.Package) {
		if !def.facade && !def.async {
			return
		}
	} else {
		r.pkgs = append(r.pkgs, def.Package)
	}

	evidence := def.Package
	if def.facade {
		evidence = def.ID
	}
	if contains(r.loaded, evidence) {
		if !def.async {
			return
		}
	} else {
		r.loaded = append(r.loaded, evidence)
	}

	url, err := r.URL(moduleFile(def))
	if err != nil {
		r.logger.Warn("cannot resolve module url", zap.String("module", def.ID), zap.Error(err))
		return
	}
	r.fetch(url)
}

// moduleFile is the id a definition's file is stored under. A main module
// is built into pkg/name.js; any other module is stored by id.
func moduleFile(def *Definition) string {
	if !def.Main {
		return def.ID
	}
	name := def.Name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return def.Package + "/" + name + ".js"
}

// URL maps an id to the URL it is fetched from
func (r *Registry) URL(id string) (string, error) {
	if r.resolve != nil {
		return r.resolve(id), nil
	}
	if r.path == "" {
		return "", fmt.Errorf("neuron: config path must be specified")
	}
	return r.path + versionToDir(id), nil
}

// versionToDir replaces the version separator with a slash:
// "a@1.0.0/a.js" -> "a/1.0.0/a.js", "@s/a@1.0.0/a.js" -> "@s/a/1.0.0/a.js".
func versionToDir(id string) string {
	offset := 0
	if strings.HasPrefix(id, "@") {
		offset = 1
	}
	i := strings.Index(id[offset:], "@")
	if i < 0 {
		return id
	}
	i += offset
	return id[:i] + "/" + id[i+1:]
}

func (r *Registry) fetch(url string) {
	r.inflight++
	r.logger.Debug("fetching script", zap.String("url", url))
	go func() {
		script, err := r.fetcher.Fetch(r.ctx, url)
		r.posts <- completion{url: url, script: script, err: err}
	}()
}

func (r *Registry) complete(c completion) {
	r.inflight--
	if c.err != nil {
		// dependents stay pending; there is no retry
		r.logger.Warn("script fetch failed", zap.String("url", c.url), zap.Error(c.err))
		return
	}
	c.script(r)
}

// Pending returns the number of fetches not yet completed
func (r *Registry) Pending() int {
	return r.inflight
}

// RunUntilIdle processes fetch completions until none are in flight
func (r *Registry) RunUntilIdle(ctx context.Context) error {
	for r.inflight > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.posts:
			r.complete(c)
		}
	}
	return nil
}

// Run processes fetch completions until ctx is done
func (r *Registry) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.posts:
			r.complete(c)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
