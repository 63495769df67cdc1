// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/raysh454/sightline/internal/capture"
	"github.com/raysh454/sightline/internal/logging"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ErrorCount returns the number of recorded error messages.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── Capturer ──────────────────────────────────────────────────────────

// DummyCapturer implements capture.Capturer.
// Each call returns the next entry of Shots; once exhausted the last entry
// repeats. With no Shots configured it returns a 4x4 white PNG.
// Set FailURLs[url] = true to force an error for a specific URL.
type DummyCapturer struct {
	Shots         [][]byte
	HTML          []string
	ResponseDelay time.Duration
	FailURLs      map[string]bool

	mu       sync.Mutex
	Requests []*capture.Request
	calls    int
	closed   bool
}

func (d *DummyCapturer) Capture(ctx context.Context, req *capture.Request) (*capture.Shot, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Requests = append(d.Requests, req)
	i := d.calls
	d.calls++

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, errors.New("dummy capture fail for " + req.URL)
	}

	shot := &capture.Shot{TakenAt: time.Now()}
	switch {
	case len(d.Shots) == 0:
		shot.PNG = SolidPNG(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	case i < len(d.Shots):
		shot.PNG = d.Shots[i]
	default:
		shot.PNG = d.Shots[len(d.Shots)-1]
	}
	switch {
	case len(d.HTML) == 0:
		shot.HTML = []byte("<html><body><p>" + req.URL + "</p></body></html>")
	case i < len(d.HTML):
		shot.HTML = []byte(d.HTML[i])
	default:
		shot.HTML = []byte(d.HTML[len(d.HTML)-1])
	}
	return shot, nil
}

// Calls returns how many captures were requested.
func (d *DummyCapturer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *DummyCapturer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *DummyCapturer) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// ─── Images ────────────────────────────────────────────────────────────

// SolidPNG encodes a w x h PNG filled with c.
func SolidPNG(w, h int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// ─── Dashboard view ────────────────────────────────────────────────────

// RecordingView implements dashboard.View by recording every call.
type RecordingView struct {
	mu          sync.Mutex
	Alerts      []string
	Diagnostics []string
	Reloads     int

	// Events is the interleaved call log: "alert:<msg>", "diagnostic:<msg>", "reload".
	Events []string
}

func (v *RecordingView) Alert(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Alerts = append(v.Alerts, msg)
	v.Events = append(v.Events, "alert:"+msg)
}

func (v *RecordingView) Diagnostic(msg string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		msg += ": " + err.Error()
	}
	v.Diagnostics = append(v.Diagnostics, msg)
	v.Events = append(v.Events, "diagnostic:"+msg)
}

func (v *RecordingView) Reload(context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Reloads++
	v.Events = append(v.Events, "reload")
}
