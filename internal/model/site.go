package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Defaults applied to optional MonitoredSite fields.
const (
	DefaultViewportWidth  = 1366
	DefaultViewportHeight = 768
	DefaultWaitTime       = 2
)

// JobIDPrefix is prepended to a site name to build its scheduler job id.
const JobIDPrefix = "site_"

// ErrInvalidSite is wrapped by every MonitoredSite validation failure.
var ErrInvalidSite = errors.New("invalid site")

// Viewport is the browser window size used for a capture.
// On the wire it is a two element array: [width, height].
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport returns the 1366x768 viewport used when none is given.
func DefaultViewport() Viewport {
	return Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
}

// IsZero reports whether neither dimension is set.
func (v Viewport) IsZero() bool {
	return v.Width == 0 && v.Height == 0
}

// String renders the viewport the way the edit form expects it: "w,h".
func (v Viewport) String() string {
	return fmt.Sprintf("%d,%d", v.Width, v.Height)
}

func (v Viewport) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{v.Width, v.Height})
}

func (v *Viewport) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Viewport{}
		return nil
	}
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("viewport must be [width, height]: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("viewport must have 2 elements, got %d", len(pair))
	}
	v.Width, v.Height = pair[0], pair[1]
	return nil
}

// ParseViewport parses "width,height" (spaces allowed around either number).
func ParseViewport(s string) (Viewport, error) {
	w, h, ok := strings.Cut(s, ",")
	if !ok {
		return Viewport{}, fmt.Errorf("viewport %q: expected width,height", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return Viewport{}, fmt.Errorf("viewport width %q: %w", w, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return Viewport{}, fmt.Errorf("viewport height %q: %w", h, err)
	}
	if width <= 0 || height <= 0 {
		return Viewport{}, fmt.Errorf("viewport %q: dimensions must be positive", s)
	}
	return Viewport{Width: width, Height: height}, nil
}

// MonitoredSite is a URL under periodic screenshot monitoring.
// SiteName is its external identifier: alerts, history and edits address it by name.
type MonitoredSite struct {
	// URL is the page to capture.
	URL string `json:"url"`

	// SiteName identifies the site and names its screenshot directory.
	SiteName string `json:"site_name"`

	// IntervalMinutes is the capture cadence.
	IntervalMinutes int `json:"interval_minutes"`

	// Viewport is the browser window size, default 1366x768.
	Viewport Viewport `json:"viewport"`

	// CookieAcceptSelector is an optional CSS selector clicked to dismiss a cookie banner.
	CookieAcceptSelector string `json:"cookie_accept_selector,omitempty"`

	// WaitTime is the number of seconds to wait after load before capturing, default 2.
	WaitTime int `json:"wait_time"`
}

// JobID returns the scheduler job id for a site name.
func JobID(siteName string) string {
	return JobIDPrefix + siteName
}

// SiteNameFromJobID strips the job id prefix. ok is false when the prefix is missing.
func SiteNameFromJobID(jobID string) (name string, ok bool) {
	return strings.CutPrefix(jobID, JobIDPrefix)
}

// JobID returns the scheduler job id for this site.
func (s MonitoredSite) JobID() string {
	return JobID(s.SiteName)
}

// ApplyDefaults fills optional fields that were left empty.
func (s *MonitoredSite) ApplyDefaults() {
	s.URL = strings.TrimSpace(s.URL)
	s.SiteName = strings.TrimSpace(s.SiteName)
	s.CookieAcceptSelector = strings.TrimSpace(s.CookieAcceptSelector)
	if s.Viewport.Width <= 0 {
		s.Viewport.Width = DefaultViewportWidth
	}
	if s.Viewport.Height <= 0 {
		s.Viewport.Height = DefaultViewportHeight
	}
	if s.WaitTime <= 0 {
		s.WaitTime = DefaultWaitTime
	}
}

// Validate checks required fields. Call ApplyDefaults first.
func (s MonitoredSite) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidSite)
	}
	if err := ValidateSiteName(s.SiteName); err != nil {
		return err
	}
	if s.IntervalMinutes <= 0 {
		return fmt.Errorf("%w: interval_minutes must be positive", ErrInvalidSite)
	}
	if s.Viewport.Width <= 0 || s.Viewport.Height <= 0 {
		return fmt.Errorf("%w: viewport dimensions must be positive", ErrInvalidSite)
	}
	if s.WaitTime < 0 {
		return fmt.Errorf("%w: wait_time must not be negative", ErrInvalidSite)
	}
	return nil
}

// ValidateSiteName rejects names that cannot serve as a directory name and URL segment.
func ValidateSiteName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: site_name is required", ErrInvalidSite)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: site_name %q is reserved", ErrInvalidSite, name)
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' {
			continue
		}
		return fmt.Errorf("%w: site_name %q may only contain letters, digits, '-', '_' and '.'", ErrInvalidSite, name)
	}
	return nil
}

// EditSiteRequest is the body of POST /edit-site/{site_name}.
type EditSiteRequest struct {
	URL                  string   `json:"url"`
	IntervalMinutes      int      `json:"interval_minutes"`
	Viewport             Viewport `json:"viewport"`
	CookieAcceptSelector string   `json:"cookie_accept_selector"`
	WaitTime             int      `json:"wait_time"`
}

// Apply returns a copy of site with the edit applied.
func (e EditSiteRequest) Apply(site MonitoredSite) MonitoredSite {
	site.URL = e.URL
	site.IntervalMinutes = e.IntervalMinutes
	site.Viewport = e.Viewport
	site.CookieAcceptSelector = e.CookieAcceptSelector
	site.WaitTime = e.WaitTime
	return site
}

// StatusResponse is the small JSON envelope every mutating endpoint answers with.
// Exactly one of Status or Error is set.
type StatusResponse struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Status values returned by the backend.
const (
	StatusScheduled = "scheduled"
	StatusRemoved   = "removed"
	StatusUpdated   = "updated"
	StatusDismissed = "dismissed"
	StatusQueued    = "queued"
)
