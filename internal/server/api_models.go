package server

import "github.com/raysh454/sightline/internal/model"

// StatusResponse is returned by every mutating endpoint on success.
type StatusResponse struct {
	Status string `json:"status" example:"scheduled"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"No changes logged"`
}

// CaptureQueuedResponse answers POST /api/sites/{site_name}/capture.
type CaptureQueuedResponse struct {
	Status string `json:"status" example:"queued"`

	// Started is false when a capture of the site was already running.
	Started bool `json:"started"`
}

// dashboardPage is the data rendered by the dashboard template.
type dashboardPage struct {
	Sites       []model.SiteView
	AuthEnabled bool
}
