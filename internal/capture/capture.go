package capture

import (
	"context"
	"time"

	"github.com/raysh454/sightline/internal/model"
)

// Capturer renders a page in a browser and screenshots it.
// Implementations must be safe for concurrent use.
type Capturer interface {
	Capture(ctx context.Context, req *Request) (*Shot, error)

	Close() error
}

// Request describes one capture.
type Request struct {
	URL      string
	Viewport model.Viewport

	// CookieAcceptSelector is clicked, when present, before the settle wait.
	CookieAcceptSelector string

	// Wait is how long to let the page settle after load and cookie handling.
	Wait time.Duration
}

// RequestFor builds a capture request from a monitored site.
func RequestFor(site model.MonitoredSite) *Request {
	return &Request{
		URL:                  site.URL,
		Viewport:             site.Viewport,
		CookieAcceptSelector: site.CookieAcceptSelector,
		Wait:                 time.Duration(site.WaitTime) * time.Second,
	}
}

// Shot is the result of a capture.
type Shot struct {
	// PNG is the viewport screenshot.
	PNG []byte

	// HTML is the rendered document, used for visible-text diffs.
	HTML []byte

	TakenAt time.Time
}
