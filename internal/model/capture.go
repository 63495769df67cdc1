package model

import (
	"path"
	"time"
)

// TimestampLayout names capture files and orders captures: 20060102_150405.
const TimestampLayout = "20060102_150405"

// ScreenshotURLPrefix is where the server exposes the screenshot tree.
const ScreenshotURLPrefix = "/static/screenshots/"

// FormatTimestamp renders t in TimestampLayout using local time, matching file names.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string in local time.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// ScreenshotURL maps a path relative to the screenshot root to its public URL.
func ScreenshotURL(relPath string) string {
	return ScreenshotURLPrefix + path.Clean(relPath)
}

// Capture is the metadata of one stored screenshot.
type Capture struct {
	// ID is a unique capture identifier.
	ID string `json:"id"`

	// Site is the site name the capture belongs to.
	Site string `json:"site"`

	// Timestamp is the capture time in TimestampLayout.
	Timestamp string `json:"timestamp"`

	// Path is the screenshot path relative to the screenshot root, e.g. "shop/20250101_120000.png".
	Path string `json:"path"`

	// URL is the address that was captured.
	URL string `json:"url"`

	// MSE is the mean squared error against the previous capture (0 for the first one).
	MSE float64 `json:"mse"`

	// Significant is true when MSE exceeded the change threshold.
	Significant bool `json:"is_significant_change"`

	// Text is the visible text of the rendered page, used for text diffs.
	Text string `json:"-"`

	CapturedAt time.Time `json:"captured_at"`
}

// PublicURL returns the dashboard URL of the screenshot.
func (c Capture) PublicURL() string {
	return ScreenshotURL(c.Path)
}

// DiffChunk is one added or removed run of visible text.
type DiffChunk struct {
	Type    string `json:"type"` // "added" | "removed"
	Content string `json:"content"`
}

// ChangeEvent records a significant visual change between two captures.
type ChangeEvent struct {
	ID        string `json:"id"`
	Site      string `json:"site"`
	Timestamp string `json:"timestamp"`

	// Prev and Curr are public URLs of the preserved before/after screenshots.
	Prev string `json:"prev"`
	Curr string `json:"curr"`

	MSE      float64     `json:"mse"`
	TextDiff []DiffChunk `json:"text_diff,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SiteView is one dashboard row: the site plus everything rendered next to it.
type SiteView struct {
	MonitoredSite

	JobID string `json:"job_id"`

	// Images are public URLs of the most recent captures, newest first.
	Images []string `json:"images"`

	// ChangeDetected is true when the newest capture was a significant change.
	ChangeDetected bool `json:"change_detected"`

	// Changes is the site's change log, oldest first.
	Changes []ChangeEvent `json:"changes"`

	// LastDismissed is the timestamp of the newest change the operator dismissed.
	LastDismissed string `json:"last_dismissed,omitempty"`

	// AlertActive is true when a change newer than LastDismissed exists.
	AlertActive bool `json:"alert_active"`
}

// LatestChange returns the newest change, if any.
func (v SiteView) LatestChange() (ChangeEvent, bool) {
	if len(v.Changes) == 0 {
		return ChangeEvent{}, false
	}
	return v.Changes[len(v.Changes)-1], true
}
