package server

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/model"
)

//go:embed templates/dashboard.html
var dashboardHTML string

//go:embed static/dashboard.js
var dashboardJS []byte

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"latestChange": latestChange,
	"newestFirst":  newestFirst,
}).Parse(dashboardHTML))

func latestChange(v model.SiteView) *model.ChangeEvent {
	c, ok := v.LatestChange()
	if !ok {
		return nil
	}
	return &c
}

func newestFirst(changes []model.ChangeEvent) []model.ChangeEvent {
	out := make([]model.ChangeEvent, len(changes))
	for i, c := range changes {
		out[len(changes)-1-i] = c
	}
	return out
}

// handleDashboard renders the dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	views, err := s.monitor.Dashboard(r.Context())
	if err != nil {
		s.logger.Error("loading dashboard", logging.Field{Key: "error", Value: err.Error()})
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	page := dashboardPage{Sites: views, AuthEnabled: s.cfg.AuthPasswordHash != ""}
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		s.logger.Error("rendering dashboard", logging.Field{Key: "error", Value: err.Error()})
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDashboardScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	_, _ = w.Write(dashboardJS)
}
