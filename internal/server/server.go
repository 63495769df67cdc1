package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/model"
	"github.com/raysh454/sightline/internal/monitor"
	"github.com/raysh454/sightline/internal/registry"
	"github.com/raysh454/sightline/internal/shotstore"
	"github.com/raysh454/sightline/internal/tracker"
)

// Server is the HTTP + WebSocket surface of sightline: the dashboard page,
// the endpoints its script calls, the JSON API and the event stream.
type Server struct {
	cfg      Config
	monitor  *monitor.Monitor
	store    *shotstore.Store
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer builds a Server around a running Monitor. Screenshots are served
// from the store root.
func NewServer(cfg Config, mon *monitor.Monitor, store *shotstore.Store) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		monitor: mon,
		store:   store,
		router:  chi.NewRouter(),
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/add-site", s.optionsHandler("POST"))
	r.Options("/remove-site/{job_id}", s.optionsHandler("DELETE"))
	r.Options("/edit-site/{site_name}", s.optionsHandler("POST"))
	r.Options("/dismiss-alert/{site_name}", s.optionsHandler("POST"))
	r.Options("/api/sites", s.optionsHandler("GET"))
	r.Options("/api/sites/{site_name}", s.optionsHandler("GET"))
	r.Options("/api/sites/{site_name}/capture", s.optionsHandler("POST"))
	r.Options("/api/jobs", s.optionsHandler("GET"))

	// Dashboard
	r.Get("/", s.handleDashboard)
	r.Get("/js/dashboard.js", s.handleDashboardScript)
	r.Get(model.ScreenshotURLPrefix+"*", s.handleScreenshot)

	// Endpoints called by the dashboard script
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/add-site", s.handleAddSite)
		r.Delete("/remove-site/{job_id}", s.handleRemoveSite)
		r.Post("/edit-site/{site_name}", s.handleEditSite)
		r.Post("/dismiss-alert/{site_name}", s.handleDismissAlert)
		r.Post("/api/sites/{site_name}/capture", s.handleTriggerCapture)
	})

	// Read-only API
	r.Get("/api/sites", s.handleListSites)
	r.Get("/api/sites/{site_name}", s.handleGetSite)
	r.Get("/api/jobs", s.handleListJobs)

	// Event stream
	r.Get("/ws/events", s.handleEventsWS)

	// API docs
	r.Get("/swagger/*", swaggerHandler())
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			if len(bodyBytes) > 0 {
				fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	if strings.HasPrefix(r.URL.Path, model.ScreenshotURLPrefix) {
		s.logger.Debug("http_request", fields...)
	} else {
		s.logger.Info("http_request", fields...)
	}

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeStatus(w http.ResponseWriter, status string) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: status})
}

// fail maps err onto an HTTP status and writes the error payload.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, model.ErrInvalidSite):
		status = http.StatusBadRequest
	case errors.Is(err, registry.ErrSiteNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tracker.ErrNoChanges):
		status = http.StatusBadRequest
		msg = "No changes logged"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(op, logging.Field{Key: "error", Value: err.Error()})
	} else {
		s.logger.Warn(op, logging.Field{Key: "error", Value: err.Error()})
	}
	writeError(w, status, msg)
}

// --- HTTP handlers ---

// Sites

// handleAddSite schedules a new site.
//
//	@Summary	Add a monitored site
//	@Tags		sites
//	@Accept		json
//	@Produce	json
//	@Param		site	body		model.MonitoredSite	true	"Site to monitor"
//	@Success	200		{object}	StatusResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/add-site [post]
func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var body model.MonitoredSite
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding add site body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	site, err := s.monitor.AddSite(r.Context(), body)
	if err != nil {
		s.fail(w, "adding site", err)
		return
	}
	s.logger.Info("scheduled site",
		logging.Field{Key: "site", Value: site.SiteName},
		logging.Field{Key: "job_id", Value: site.JobID()},
		logging.Field{Key: "interval_minutes", Value: site.IntervalMinutes})
	writeStatus(w, model.StatusScheduled)
}

// handleRemoveSite unschedules a site. Unknown job ids still answer "removed".
//
//	@Summary	Remove a monitored site
//	@Tags		sites
//	@Produce	json
//	@Param		job_id	path		string	true	"Job id (site_<name>)"
//	@Success	200		{object}	StatusResponse
//	@Router		/remove-site/{job_id} [delete]
func (s *Server) handleRemoveSite(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	if err := s.monitor.RemoveSite(r.Context(), jobID); err != nil {
		s.fail(w, "removing site", err)
		return
	}
	s.logger.Info("removed site", logging.Field{Key: "job_id", Value: jobID})
	writeStatus(w, model.StatusRemoved)
}

// handleEditSite replaces the settings of an existing site.
//
//	@Summary	Edit a monitored site
//	@Tags		sites
//	@Accept		json
//	@Produce	json
//	@Param		site_name	path		string					true	"Site name"
//	@Param		edit		body		model.EditSiteRequest	true	"New settings"
//	@Success	200			{object}	StatusResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/edit-site/{site_name} [post]
func (s *Server) handleEditSite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site_name")

	var body model.EditSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding edit site body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	site, err := s.monitor.EditSite(r.Context(), name, body)
	if err != nil {
		s.fail(w, "editing site", err)
		return
	}
	s.logger.Info("updated site", logging.Field{Key: "site", Value: site.SiteName})
	writeStatus(w, model.StatusUpdated)
}

// handleDismissAlert marks the newest change of a site as seen.
//
//	@Summary	Dismiss the change alert of a site
//	@Tags		alerts
//	@Produce	json
//	@Param		site_name	path		string	true	"Site name"
//	@Success	200			{object}	StatusResponse
//	@Failure	400			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/dismiss-alert/{site_name} [post]
func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site_name")

	ts, err := s.monitor.DismissAlert(r.Context(), name)
	if err != nil {
		s.fail(w, "dismissing alert", err)
		return
	}
	s.logger.Info("dismissed alert", logging.Field{Key: "site", Value: name}, logging.Field{Key: "last_dismissed", Value: ts})
	writeStatus(w, model.StatusDismissed)
}

// handleTriggerCapture queues an immediate capture.
//
//	@Summary	Capture a site now
//	@Tags		sites
//	@Produce	json
//	@Param		site_name	path		string	true	"Site name"
//	@Success	202			{object}	CaptureQueuedResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/api/sites/{site_name}/capture [post]
func (s *Server) handleTriggerCapture(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site_name")

	started, err := s.monitor.TriggerCapture(r.Context(), name)
	if err != nil {
		s.fail(w, "triggering capture", err)
		return
	}
	s.logger.Info("queued capture", logging.Field{Key: "site", Value: name}, logging.Field{Key: "started", Value: started})
	writeJSON(w, http.StatusAccepted, CaptureQueuedResponse{Status: model.StatusQueued, Started: started})
}

// handleListSites returns every dashboard row.
//
//	@Summary	List monitored sites
//	@Tags		sites
//	@Produce	json
//	@Success	200	{array}	model.SiteView
//	@Router		/api/sites [get]
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	views, err := s.monitor.Dashboard(r.Context())
	if err != nil {
		s.fail(w, "listing sites", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleGetSite returns one dashboard row.
//
//	@Summary	Get a monitored site
//	@Tags		sites
//	@Produce	json
//	@Param		site_name	path		string	true	"Site name"
//	@Success	200			{object}	model.SiteView
//	@Failure	404			{object}	ErrorResponse
//	@Router		/api/sites/{site_name} [get]
func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site_name")

	view, err := s.monitor.SiteView(r.Context(), name)
	if err != nil {
		s.fail(w, "getting site", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListJobs returns the scheduler's jobs.
//
//	@Summary	List scheduled jobs
//	@Tags		jobs
//	@Produce	json
//	@Success	200	{array}	scheduler.JobInfo
//	@Router		/api/jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.monitor.Jobs()
	writeJSON(w, http.StatusOK, jobs)
}

// Screenshots

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	abs, err := s.store.Abs(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	// no directory listings
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
