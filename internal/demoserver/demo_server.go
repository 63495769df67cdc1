// Package demoserver serves a small website whose pages can be switched
// between versions at runtime, so a monitor pointed at it sees visual
// changes on demand.
package demoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/sightline/internal/logging"
)

// DemoServer is a simple HTTP server with switchable page versions.
type DemoServer struct {
	cfg      Config
	logger   logging.Logger
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	mu       sync.RWMutex
	router   chi.Router
}

// PageInfo describes one page in /demo/get-versions.
type PageInfo struct {
	Path              string `json:"path"`
	Description       string `json:"description"`
	CurrentVersion    int    `json:"current_version"`
	AvailableVersions []int  `json:"available_versions"`
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config) *DemoServer {
	if cfg.InitialVersion < 1 {
		cfg.InitialVersion = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("demoserver")
	}

	pageMap := make(map[string]PageDefinition)
	versions := make(map[string]int)
	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
		versions[p.Path] = min(cfg.InitialVersion, p.MaxVersion())
	}

	s := &DemoServer{
		cfg:      cfg,
		logger:   logger.With(logging.Field{Key: "component", Value: "demoserver"}),
		pages:    pageMap,
		versions: versions,
	}
	s.routes()
	return s
}

func (s *DemoServer) routes() {
	r := chi.NewRouter()

	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}

	// Control panel for version switching
	r.Get("/demo/control", s.controlPanelHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	r.Get("/demo/get-versions", s.getVersionsHandler)
	r.Post("/demo/bump-all", s.bumpAllVersionsHandler)
	r.Post("/demo/reset", s.resetVersionsHandler)

	s.router = r
}

// Handler returns the demo site's HTTP handler.
func (s *DemoServer) Handler() http.Handler {
	return s.router
}

// Start serves the demo site until ctx is cancelled.
func (s *DemoServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo server listening",
			logging.Field{Key: "addr", Value: "http://localhost" + srv.Addr},
			logging.Field{Key: "control_panel", Value: "http://localhost" + srv.Addr + "/demo/control"})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Version returns the current version of path.
func (s *DemoServer) Version(path string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[path]
	return v, ok
}

// SetVersion switches path to version. Unknown paths are ignored.
func (s *DemoServer) SetVersion(path string, version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[path]; !ok {
		return false
	}
	s.versions[path] = version
	s.logger.Info("page version set",
		logging.Field{Key: "path", Value: path},
		logging.Field{Key: "version", Value: version})
	return true
}

// pageHandler returns a handler for a specific page path.
func (s *DemoServer) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		pageDef, ok := s.pages[path]
		version := s.versions[path]
		s.mu.RUnlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		// Get the specific version, fall back to closest available
		pageVersion, _, ok := pageDef.Resolve(version)
		if !ok {
			http.NotFound(w, r)
			return
		}

		accepted := false
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			accepted = true
		}

		body, err := pageVersion.Render(accepted)
		if err != nil {
			s.logger.Error("render page failed",
				logging.Field{Key: "path", Value: path},
				logging.Field{Key: "error", Value: err.Error()})
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// controlPanelHandler serves the control panel for version management.
func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Pages []PageInfo
	}{
		Pages: s.pageInfos(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanelTemplate.Execute(w, data); err != nil {
		s.logger.Warn("control panel render failed", logging.Field{Key: "error", Value: err.Error()})
	}
}

// setVersionHandler sets the version for a specific page.
func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil || version < 1 {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}
	if !s.SetVersion(path, version) {
		http.Error(w, "Unknown page", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"path":    path,
		"version": version,
	})
}

// getVersionsHandler returns the current versions of all pages.
func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.pageInfos())
}

// bumpAllVersionsHandler increments the version of all pages, capped at
// each page's newest version.
func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = min(s.versions[path]+1, s.pages[path].MaxVersion())
	}
	s.mu.Unlock()
	s.logger.Info("all page versions bumped")

	writeJSON(w, map[string]any{
		"success": true,
		"message": "All versions bumped",
	})
}

// resetVersionsHandler resets all pages to version 1.
func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = 1
	}
	s.mu.Unlock()
	s.logger.Info("all page versions reset")

	writeJSON(w, map[string]any{
		"success": true,
		"message": "All versions reset to 1",
	})
}

func (s *DemoServer) pageInfos() []PageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]PageInfo, 0, len(s.pages))
	for path, pageDef := range s.pages {
		pages = append(pages, PageInfo{
			Path:              path,
			Description:       pageDef.Description,
			CurrentVersion:    s.versions[path],
			AvailableVersions: pageDef.VersionNumbers(),
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var controlPanelTemplate = template.Must(template.New("control").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Demo Site Control Panel</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; max-width: 1000px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        h1 { color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px; }
        .page-card { background: white; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .page-header { display: flex; justify-content: space-between; align-items: center; }
        .page-path { font-size: 1.2em; font-weight: bold; color: #007bff; text-decoration: none; }
        .page-desc { color: #666; margin: 5px 0; }
        .version-btn { padding: 8px 16px; border: none; border-radius: 4px; cursor: pointer; }
        .version-btn.active { background: #007bff; color: white; }
        .version-btn.inactive { background: #e9ecef; color: #333; }
        .global-btn { padding: 10px 20px; margin-right: 10px; border: none; border-radius: 4px; cursor: pointer; color: white; }
        .bump-btn { background: #28a745; }
        .reset-btn { background: #dc3545; }
    </style>
</head>
<body>
    <h1>Demo Site Control Panel</h1>
    <p>Switch page versions to make the monitored pages change. Point a sightline site at any page below; use <code>#accept-cookies</code> as the cookie selector for the home page.</p>
    <button class="global-btn bump-btn" onclick="post('/demo/bump-all')">Bump All Versions</button>
    <button class="global-btn reset-btn" onclick="post('/demo/reset')">Reset All to v1</button>

    {{range .Pages}}
    <div class="page-card">
        <div class="page-header">
            <a href="{{.Path}}" target="_blank" class="page-path">{{.Path}}</a>
            <span>Current: v{{.CurrentVersion}}</span>
        </div>
        <div class="page-desc">{{.Description}}</div>
        {{$page := .}}
        {{range .AvailableVersions}}
        <button class="version-btn {{if eq $page.CurrentVersion .}}active{{else}}inactive{{end}}"
                onclick="post('/demo/set-version', 'path=' + encodeURIComponent({{$page.Path}}) + '&version=' + {{.}})">v{{.}}</button>
        {{end}}
    </div>
    {{end}}

    <script>
        function post(url, body) {
            fetch(url, {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: body || ''
            }).then(function () { location.reload(); });
        }
    </script>
</body>
</html>`))
