package server_test

import (
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/model"
	"github.com/raysh454/sightline/internal/monitor"
	"github.com/raysh454/sightline/internal/registry"
	"github.com/raysh454/sightline/internal/server"
	"github.com/raysh454/sightline/internal/shotstore"
	"github.com/raysh454/sightline/internal/testutil"
	"github.com/raysh454/sightline/internal/tracker"
)

var (
	white = testutil.SolidPNG(8, 8, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	black = testutil.SolidPNG(8, 8, color.RGBA{A: 255})
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances one minute per call so capture timestamps never collide.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type fixture struct {
	srv *server.Server
	mon *monitor.Monitor
}

func newFixture(t *testing.T, capturer *testutil.DummyCapturer, passwordHash string) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := &testutil.DummyLogger{}

	db, err := registry.OpenDatabase(filepath.Join(dir, "sightline.db"))
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := registry.NewRegistry(db, logger)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tr, err := tracker.NewSQLiteTracker(db, logger)
	if err != nil {
		t.Fatalf("NewSQLiteTracker: %v", err)
	}
	store, err := shotstore.New(filepath.Join(dir, "screenshots"))
	if err != nil {
		t.Fatalf("shotstore.New: %v", err)
	}
	if capturer == nil {
		capturer = &testutil.DummyCapturer{}
	}

	mon := monitor.New(config.DefaultConfig().Monitor, reg, tr, store, capturer, logger)
	clock := &stepClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)}
	mon.SetClock(clock.Now)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mon.Close(ctx)
	})

	srv := server.NewServer(server.Config{
		ListenAddr:       ":0",
		AuthPasswordHash: passwordHash,
		PingInterval:     time.Second,
		Logger:           logger,
	}, mon, store)
	return &fixture{srv: srv, mon: mon}
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, code int, status string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeJSON(t, rec, &body)
	if body["status"] != status {
		t.Errorf("expected status %q, got %v", status, body)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, code int, contains string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if !strings.Contains(body["error"], contains) {
		t.Errorf("expected error containing %q, got %q", contains, body["error"])
	}
}

const addShop = `{"url":"https://shop.example.com","site_name":"shop","interval_minutes":30,"viewport":[1366,768],"cookie_accept_selector":"","wait_time":2}`

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "GET", "/api/sites", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_Options_Preflight(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "OPTIONS", "/dismiss-alert/shop", "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST" {
		t.Errorf("Allow-Methods = %q", got)
	}
}

// ─── Sites ─────────────────────────────────────────────────────────────

func TestServer_AddSite_Scheduled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	expectStatus(t, doJSON(t, f.srv, "POST", "/add-site", addShop), http.StatusOK, "scheduled")

	rec := doJSON(t, f.srv, "GET", "/api/sites", "")
	var views []model.SiteView
	decodeJSON(t, rec, &views)
	if len(views) != 1 {
		t.Fatalf("expected 1 site, got %d", len(views))
	}
	if views[0].JobID != "site_shop" || views[0].URL != "https://shop.example.com/" {
		t.Errorf("unexpected view %+v", views[0])
	}

	jobs := f.mon.Jobs()
	if len(jobs) != 1 || jobs[0].ID != "site_shop" || jobs[0].Interval != 30*time.Minute {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

func TestServer_AddSite_InvalidJSON(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	expectError(t, doJSON(t, f.srv, "POST", "/add-site", `{invalid}`), http.StatusBadRequest, "invalid JSON")
}

func TestServer_AddSite_MissingURL(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "POST", "/add-site", `{"site_name":"shop","interval_minutes":5}`)

	expectError(t, rec, http.StatusBadRequest, "url")
	if len(f.mon.Jobs()) != 0 {
		t.Error("invalid site should not be scheduled")
	}
}

func TestServer_RemoveSite(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)

	expectStatus(t, doJSON(t, f.srv, "DELETE", "/remove-site/site_shop", ""), http.StatusOK, "removed")

	var views []model.SiteView
	decodeJSON(t, doJSON(t, f.srv, "GET", "/api/sites", ""), &views)
	if len(views) != 0 {
		t.Errorf("expected no sites, got %d", len(views))
	}
	if len(f.mon.Jobs()) != 0 {
		t.Errorf("expected no jobs, got %+v", f.mon.Jobs())
	}
}

func TestServer_RemoveSite_UnknownStillRemoved(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	expectStatus(t, doJSON(t, f.srv, "DELETE", "/remove-site/site_nope", ""), http.StatusOK, "removed")
}

func TestServer_EditSite(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)

	rec := doJSON(t, f.srv, "POST", "/edit-site/shop",
		`{"url":"https://shop.example.com/new","interval_minutes":10,"viewport":[800,600],"cookie_accept_selector":"#ok","wait_time":5}`)
	expectStatus(t, rec, http.StatusOK, "updated")

	var view model.SiteView
	decodeJSON(t, doJSON(t, f.srv, "GET", "/api/sites/shop", ""), &view)
	if view.IntervalMinutes != 10 || view.Viewport != (model.Viewport{Width: 800, Height: 600}) || view.WaitTime != 5 {
		t.Errorf("edit not applied: %+v", view)
	}
	if view.CookieAcceptSelector != "#ok" {
		t.Errorf("cookie selector = %q", view.CookieAcceptSelector)
	}
}

func TestServer_EditSite_Unknown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "POST", "/edit-site/nope",
		`{"url":"https://x.example","interval_minutes":10,"viewport":[800,600],"wait_time":2}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_EditSite_BadViewport(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)

	rec := doJSON(t, f.srv, "POST", "/edit-site/shop", `{"url":"https://x.example","viewport":[1]}`)

	expectError(t, rec, http.StatusBadRequest, "invalid JSON")
}

func TestServer_GetSite_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	expectError(t, doJSON(t, f.srv, "GET", "/api/sites/nope", ""), http.StatusNotFound, "not found")
}

// ─── Alerts ────────────────────────────────────────────────────────────

func TestServer_DismissAlert_NoChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)

	rec := doJSON(t, f.srv, "POST", "/dismiss-alert/shop", "")

	expectError(t, rec, http.StatusBadRequest, "No changes logged")
}

func TestServer_DismissAlert_UnknownSite(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "POST", "/dismiss-alert/nope", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_DismissAlert_ClearsAlert(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &testutil.DummyCapturer{Shots: [][]byte{white, black}}, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.mon.RunCapture(ctx, "shop"); err != nil {
			t.Fatalf("RunCapture: %v", err)
		}
	}

	var view model.SiteView
	decodeJSON(t, doJSON(t, f.srv, "GET", "/api/sites/shop", ""), &view)
	if !view.AlertActive || !view.ChangeDetected || len(view.Changes) != 1 {
		t.Fatalf("expected an active alert, got %+v", view)
	}

	expectStatus(t, doJSON(t, f.srv, "POST", "/dismiss-alert/shop", ""), http.StatusOK, "dismissed")

	decodeJSON(t, doJSON(t, f.srv, "GET", "/api/sites/shop", ""), &view)
	if view.AlertActive {
		t.Error("alert still active after dismissal")
	}
	if view.LastDismissed != view.Changes[0].Timestamp {
		t.Errorf("last_dismissed = %q, want %q", view.LastDismissed, view.Changes[0].Timestamp)
	}
}

// ─── Captures ──────────────────────────────────────────────────────────

func TestServer_TriggerCapture(t *testing.T) {
	t.Parallel()
	capturer := &testutil.DummyCapturer{}
	f := newFixture(t, capturer, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)

	rec := doJSON(t, f.srv, "POST", "/api/sites/shop/capture", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body server.CaptureQueuedResponse
	decodeJSON(t, rec, &body)
	if body.Status != "queued" || !body.Started {
		t.Errorf("unexpected response %+v", body)
	}

	deadline := time.Now().Add(2 * time.Second)
	for capturer.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if capturer.Calls() == 0 {
		t.Error("capture never ran")
	}
}

func TestServer_TriggerCapture_Unknown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "POST", "/api/sites/nope/capture", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_ServesScreenshots(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)
	if _, err := f.mon.RunCapture(context.Background(), "shop"); err != nil {
		t.Fatalf("RunCapture: %v", err)
	}

	var view model.SiteView
	decodeJSON(t, doJSON(t, f.srv, "GET", "/api/sites/shop", ""), &view)
	if len(view.Images) != 1 {
		t.Fatalf("expected 1 image, got %v", view.Images)
	}

	rec := doJSON(t, f.srv, "GET", view.Images[0], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}

	for _, path := range []string{"/static/screenshots/shop", "/static/screenshots/shop/missing.png"} {
		if rec := doJSON(t, f.srv, "GET", path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, rec.Code)
		}
	}
}

// ─── Dashboard ─────────────────────────────────────────────────────────

func TestServer_Dashboard_RendersSites(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &testutil.DummyCapturer{Shots: [][]byte{white, black}}, "")
	doJSON(t, f.srv, "POST", "/add-site", addShop)
	for i := 0; i < 2; i++ {
		if _, err := f.mon.RunCapture(context.Background(), "shop"); err != nil {
			t.Fatalf("RunCapture: %v", err)
		}
	}

	rec := doJSON(t, f.srv, "GET", "/", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	page := rec.Body.String()
	for _, want := range []string{
		`id="history-shop"`,
		`style="display: none"`,
		`class="alert"`,
		`id="lightbox"`,
		`id="lightbox-img"`,
		`id="edit-viewport"`,
		`data-viewport="1366,768"`,
		`/static/screenshots/shop/changes/`,
		`/js/dashboard.js`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestServer_Dashboard_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "GET", "/", "")

	if !strings.Contains(rec.Body.String(), "No sites monitored yet.") {
		t.Error("expected empty-state text")
	}
}

func TestServer_DashboardScript(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "GET", "/js/dashboard.js", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, fn := range []string{"showLightbox", "closeLightbox", "addSite", "removeSite", "submitEdit", "dismissAlert", "toggleHistory"} {
		if !strings.Contains(rec.Body.String(), "function "+fn) {
			t.Errorf("script missing %s", fn)
		}
	}
}

func TestServer_Swagger(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")

	rec := doJSON(t, f.srv, "GET", "/swagger/doc.json", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/dismiss-alert/{site_name}") {
		t.Error("doc.json does not describe the dismiss endpoint")
	}
}

// ─── Auth ──────────────────────────────────────────────────────────────

func TestServer_Auth(t *testing.T) {
	t.Parallel()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	f := newFixture(t, nil, string(hash))

	tests := []struct {
		name     string
		user     string
		password string
		set      bool
		want     int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong", user: "admin", password: "nope", set: true, want: http.StatusUnauthorized},
		{name: "right", user: "admin", password: "s3cret", set: true, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/add-site", strings.NewReader(addShop))
			if tt.set {
				req.SetBasicAuth(tt.user, tt.password)
			}
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}

	if rec := doJSON(t, f.srv, "GET", "/api/sites", ""); rec.Code != http.StatusOK {
		t.Errorf("read-only API should not need auth, got %d", rec.Code)
	}
}

// ─── Events ────────────────────────────────────────────────────────────

func TestServer_EventStream(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, "")
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?site=shop"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.mon.Events().Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	doJSON(t, f.srv, "POST", "/add-site", `{"url":"https://other.example","site_name":"other","interval_minutes":5}`)
	doJSON(t, f.srv, "POST", "/add-site", addShop)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev monitor.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != monitor.EventSiteAdded || ev.Site != "shop" || ev.JobID != "site_shop" {
		t.Errorf("unexpected event %+v", ev)
	}
}
