package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/raysh454/sightline/internal/dashboard"
	"github.com/raysh454/sightline/internal/model"
	"github.com/raysh454/sightline/internal/testutil"
	"github.com/raysh454/sightline/internal/webclient"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeBackend records every request and answers with a fixed status and body.
type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.requests = append(b.requests, recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Body: string(body)})
	status, resp := b.status, b.body
	b.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (b *fakeBackend) Requests() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.requests...)
}

func newController(t *testing.T, backend *fakeBackend, views []model.SiteView) (*dashboard.Controller, *testutil.RecordingView) {
	t.Helper()
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)
	return newControllerAt(t, ts.URL, ts.Client(), views)
}

func newControllerAt(t *testing.T, baseURL string, httpClient *http.Client, views []model.SiteView) (*dashboard.Controller, *testutil.RecordingView) {
	t.Helper()
	logger := &testutil.DummyLogger{}
	client, err := webclient.NewNetHTTPClient(webclient.Config{BaseURL: baseURL}, logger, httpClient)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	view := &testutil.RecordingView{}
	return dashboard.NewController(client, view, dashboard.NewPage(views), logger), view
}

// unreachable returns the address of a server that has already shut down.
func unreachable(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()
	return addr
}

func sitesWithAlert(names ...string) []model.SiteView {
	views := make([]model.SiteView, 0, len(names))
	for _, n := range names {
		views = append(views, model.SiteView{
			MonitoredSite: model.MonitoredSite{SiteName: n, URL: "https://" + n + ".example/"},
			JobID:         model.JobID(n),
			AlertActive:   true,
		})
	}
	return views
}

func keys(t *testing.T, body string) []string {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("request body is not a JSON object: %v (%s)", err, body)
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ─── Lightbox ──────────────────────────────────────────────────────────

func TestShowLightbox_SetsSourceAndClassOnce(t *testing.T) {
	t.Parallel()
	c, _ := newController(t, &fakeBackend{}, nil)

	c.ShowLightbox("/static/screenshots/shop/20250301_120000.png")
	c.ShowLightbox("/static/screenshots/shop/20250301_120100.png")

	page := c.Page()
	if got := page.LightboxSrc(); got != "/static/screenshots/shop/20250301_120100.png" {
		t.Errorf("LightboxSrc = %q", got)
	}
	if classes := page.LightboxClasses(); len(classes) != 1 || classes[0] != dashboard.ShowClass {
		t.Errorf("LightboxClasses = %v", classes)
	}
}

func TestCloseLightbox(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		target      string
		wantVisible bool
		wantSrc     string
	}{
		{name: "overlay", target: dashboard.IDLightbox, wantVisible: false, wantSrc: ""},
		{name: "image", target: dashboard.IDLightboxImg, wantVisible: true, wantSrc: "a.png"},
		{name: "elsewhere", target: "history-shop", wantVisible: true, wantSrc: "a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newController(t, &fakeBackend{}, nil)
			c.ShowLightbox("a.png")

			c.CloseLightbox(tt.target)

			if c.Page().LightboxVisible() != tt.wantVisible {
				t.Errorf("visible = %v, want %v", c.Page().LightboxVisible(), tt.wantVisible)
			}
			if c.Page().LightboxSrc() != tt.wantSrc {
				t.Errorf("src = %q, want %q", c.Page().LightboxSrc(), tt.wantSrc)
			}
		})
	}
}

// ─── AddSite ───────────────────────────────────────────────────────────

func TestAddSite_SendsEveryFieldWithDefaults(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{body: `{"status":"scheduled"}`}
	c, view := newController(t, backend, nil)

	err := c.AddSite(context.Background(), dashboard.AddForm{
		URL:      "https://shop.example",
		SiteName: "shop",
		Interval: "15",
	})
	if err != nil {
		t.Fatalf("AddSite: %v", err)
	}

	reqs := backend.Requests()
	if len(reqs) != 1 || reqs[0].Method != "POST" || reqs[0].Path != "/add-site" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	want := []string{"cookie_accept_selector", "interval_minutes", "site_name", "url", "viewport", "wait_time"}
	if got := keys(t, reqs[0].Body); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("body keys = %v, want %v", got, want)
	}

	var site model.MonitoredSite
	if err := json.Unmarshal([]byte(reqs[0].Body), &site); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if site.Viewport != model.DefaultViewport() || site.WaitTime != 2 || site.IntervalMinutes != 15 {
		t.Errorf("defaults not applied: %+v", site)
	}
	if view.Reloads != 1 || len(view.Alerts) != 0 {
		t.Errorf("view = %+v", view.Events)
	}
}

func TestAddSite_FieldSetIndependentOfInput(t *testing.T) {
	t.Parallel()
	forms := []dashboard.AddForm{
		{URL: "a", SiteName: "a", Interval: "1"},
		{URL: "b", SiteName: "b", Interval: "x", ViewportWidth: "800", ViewportHeight: "600", CookieAcceptSelector: "#ok", WaitTime: "9"},
		{URL: "c", SiteName: "c", Interval: "3", ViewportWidth: "wide", WaitTime: "soon"},
	}
	for _, form := range forms {
		backend := &fakeBackend{body: `{"status":"scheduled"}`}
		c, _ := newController(t, backend, nil)
		_ = c.AddSite(context.Background(), form)

		reqs := backend.Requests()
		if len(reqs) != 1 {
			t.Fatalf("%s: expected 1 request, got %d", form.SiteName, len(reqs))
		}
		if n := len(keys(t, reqs[0].Body)); n != 6 {
			t.Errorf("%s: expected 6 fields, got %d", form.SiteName, n)
		}
	}
}

func TestAddSite_ServerRejects_DialogThenReload(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{status: http.StatusBadRequest, body: `{"error":"invalid site: url is required"}`}
	c, view := newController(t, backend, nil)

	err := c.AddSite(context.Background(), dashboard.AddForm{SiteName: "x", Interval: "5"})

	var reqErr *dashboard.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected RequestError 400, got %v", err)
	}
	want := []string{"alert:Add site failed: invalid site: url is required", "reload"}
	if strings.Join(view.Events, "|") != strings.Join(want, "|") {
		t.Errorf("events = %v, want %v", view.Events, want)
	}
}

func TestAddSite_TransportFailure_NoReload(t *testing.T) {
	t.Parallel()
	c, view := newControllerAt(t, unreachable(t), nil, nil)

	err := c.AddSite(context.Background(), dashboard.AddForm{URL: "a", SiteName: "a", Interval: "1"})

	if err == nil {
		t.Fatal("expected error")
	}
	if view.Reloads != 0 || len(view.Diagnostics) != 1 || len(view.Alerts) != 1 || view.Alerts[0] != dashboard.MsgNetworkError {
		t.Errorf("events = %v", view.Events)
	}
}

// ─── RemoveSite ────────────────────────────────────────────────────────

func TestRemoveSite_OneDeleteAlwaysReloads(t *testing.T) {
	t.Parallel()
	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		backend := &fakeBackend{status: status, body: `{"status":"removed"}`}
		c, view := newController(t, backend, sitesWithAlert("shop"))
		c.ToggleHistory("shop")

		if err := c.RemoveSite(context.Background(), "site_shop"); err != nil {
			t.Fatalf("status %d: RemoveSite: %v", status, err)
		}

		reqs := backend.Requests()
		if len(reqs) != 1 || reqs[0].Method != "DELETE" || reqs[0].Path != "/remove-site/site_shop" {
			t.Errorf("status %d: unexpected requests %+v", status, reqs)
		}
		if view.Reloads != 1 {
			t.Errorf("status %d: reloads = %d", status, view.Reloads)
		}
	}
}

func TestRemoveSite_EscapesJobID(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{body: `{"status":"removed"}`}
	c, _ := newController(t, backend, nil)

	_ = c.RemoveSite(context.Background(), "site_a b")

	if reqs := backend.Requests(); len(reqs) != 1 || reqs[0].Path != "/remove-site/site_a%20b" {
		t.Errorf("unexpected requests %+v", reqs)
	}
}

// ─── SubmitEdit ────────────────────────────────────────────────────────

func validEdit() dashboard.EditForm {
	return dashboard.EditForm{URL: "https://shop.example/new", Interval: "10", Viewport: "800, 600", CookieSelector: "#ok", WaitTime: "3"}
}

func TestSubmitEdit_Invalid_NoRequestOneDialog(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		edit  func(*dashboard.EditForm)
		field string
	}{
		{name: "empty url", edit: func(f *dashboard.EditForm) { f.URL = "" }, field: dashboard.IDEditURL},
		{name: "blank url", edit: func(f *dashboard.EditForm) { f.URL = "   " }, field: dashboard.IDEditURL},
		{name: "missing viewport", edit: func(f *dashboard.EditForm) { f.Viewport = "" }, field: dashboard.IDEditViewport},
		{name: "one number viewport", edit: func(f *dashboard.EditForm) { f.Viewport = "800" }, field: dashboard.IDEditViewport},
		{name: "bad interval", edit: func(f *dashboard.EditForm) { f.Interval = "often" }, field: dashboard.IDEditInterval},
		{name: "missing wait", edit: func(f *dashboard.EditForm) { f.WaitTime = "" }, field: dashboard.IDEditWaitTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := &fakeBackend{body: `{"status":"updated"}`}
			c, view := newController(t, backend, nil)
			form := validEdit()
			tt.edit(&form)

			err := c.SubmitEdit(context.Background(), "shop", form)

			var verr *dashboard.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected ValidationError on %s, got %v", tt.field, err)
			}
			if n := len(backend.Requests()); n != 0 {
				t.Errorf("expected zero requests, got %d", n)
			}
			if len(view.Alerts) != 1 || view.Alerts[0] != dashboard.MsgEditIncomplete || view.Reloads != 0 {
				t.Errorf("events = %v", view.Events)
			}
		})
	}
}

func TestSubmitEdit_PostsAndShowsStatus(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{body: `{"status":"updated"}`}
	c, view := newController(t, backend, nil)

	if err := c.SubmitEdit(context.Background(), "shop", validEdit()); err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}

	reqs := backend.Requests()
	if len(reqs) != 1 || reqs[0].Method != "POST" || reqs[0].Path != "/edit-site/shop" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	var edit model.EditSiteRequest
	if err := json.Unmarshal([]byte(reqs[0].Body), &edit); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if edit.Viewport != (model.Viewport{Width: 800, Height: 600}) || edit.IntervalMinutes != 10 || edit.WaitTime != 3 {
		t.Errorf("unexpected edit %+v", edit)
	}
	if want := []string{"alert:updated", "reload"}; strings.Join(view.Events, "|") != strings.Join(want, "|") {
		t.Errorf("events = %v, want %v", view.Events, want)
	}
}

func TestSubmitEdit_NotFound(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{status: http.StatusNotFound, body: `{"error":"site not found"}`}
	c, view := newController(t, backend, nil)

	err := c.SubmitEdit(context.Background(), "nope", validEdit())

	var reqErr *dashboard.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected RequestError 404, got %v", err)
	}
	if len(view.Alerts) != 1 || view.Alerts[0] != "site not found" {
		t.Errorf("alerts = %v", view.Alerts)
	}
}

// ─── DismissAlert ──────────────────────────────────────────────────────

func TestDismissAlert_Success_RemovesAlertOnly(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{body: `{"status":"dismissed"}`}
	c, view := newController(t, backend, sitesWithAlert("shop", "blog"))

	if err := c.DismissAlert(context.Background(), "shop"); err != nil {
		t.Fatalf("DismissAlert: %v", err)
	}

	if c.Page().HasAlert("shop") {
		t.Error("shop alert still present")
	}
	if !c.Page().HasAlert("blog") {
		t.Error("blog alert removed")
	}
	if len(view.Events) != 0 {
		t.Errorf("expected no dialog or reload, got %v", view.Events)
	}
	if reqs := backend.Requests(); len(reqs) != 1 || reqs[0].Path != "/dismiss-alert/shop" || reqs[0].Method != "POST" {
		t.Errorf("unexpected requests %+v", reqs)
	}
}

func TestDismissAlert_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		status         int
		body           string
		wantKind       dashboard.DismissKind
		wantAlert      string
		wantDiagnostic bool
	}{
		{
			name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`,
			wantKind: dashboard.DismissStatus, wantAlert: "Dismiss failed: HTTP 500: boom", wantDiagnostic: true,
		},
		{
			name: "no changes", status: http.StatusBadRequest, body: `{"error":"No changes logged"}`,
			wantKind: dashboard.DismissStatus, wantAlert: "Dismiss failed: HTTP 400: No changes logged", wantDiagnostic: true,
		},
		{
			name: "unparsable body", status: http.StatusOK, body: `<html>oops</html>`,
			wantKind: dashboard.DismissBody, wantAlert: "Dismiss failed: decode response", wantDiagnostic: true,
		},
		{
			name: "logical failure", status: http.StatusOK, body: `{"status":"other","error":"x"}`,
			wantKind: dashboard.DismissRejected, wantAlert: "Dismiss failed: x",
		},
		{
			name: "logical failure without reason", status: http.StatusOK, body: `{"status":"other"}`,
			wantKind: dashboard.DismissRejected, wantAlert: "Dismiss failed: unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := &fakeBackend{status: tt.status, body: tt.body}
			c, view := newController(t, backend, sitesWithAlert("shop"))

			err := c.DismissAlert(context.Background(), "shop")

			var derr *dashboard.DismissError
			if !errors.As(err, &derr) || derr.Kind != tt.wantKind {
				t.Fatalf("expected DismissError %s, got %v", tt.wantKind, err)
			}
			if !c.Page().HasAlert("shop") {
				t.Error("alert removed on failure")
			}
			if len(view.Alerts) != 1 || !strings.HasPrefix(view.Alerts[0], tt.wantAlert) {
				t.Errorf("alerts = %v, want prefix %q", view.Alerts, tt.wantAlert)
			}
			if (len(view.Diagnostics) > 0) != tt.wantDiagnostic {
				t.Errorf("diagnostics = %v", view.Diagnostics)
			}
			if view.Reloads != 0 {
				t.Error("dismissal must not reload")
			}
		})
	}
}

func TestDismissAlert_TransportFailure(t *testing.T) {
	t.Parallel()
	c, view := newControllerAt(t, unreachable(t), nil, sitesWithAlert("shop"))

	err := c.DismissAlert(context.Background(), "shop")

	var derr *dashboard.DismissError
	if !errors.As(err, &derr) || derr.Kind != dashboard.DismissTransport {
		t.Fatalf("expected transport DismissError, got %v", err)
	}
	if !c.Page().HasAlert("shop") {
		t.Error("page mutated on transport failure")
	}
	if len(view.Diagnostics) != 1 || len(view.Alerts) != 1 || view.Alerts[0] != dashboard.MsgNetworkError {
		t.Errorf("events = %v", view.Events)
	}
}

// ─── History ───────────────────────────────────────────────────────────

func TestToggleHistory_TwoCallsRestore(t *testing.T) {
	t.Parallel()
	c, _ := newController(t, &fakeBackend{}, sitesWithAlert("shop", "blog"))
	page := c.Page()

	initial, _ := page.HistoryDisplay("shop")
	if initial != dashboard.DisplayNone {
		t.Fatalf("initial display = %q", initial)
	}

	if d, _ := c.ToggleHistory("shop"); d != dashboard.DisplayBlock {
		t.Errorf("first toggle = %q", d)
	}
	if d, _ := page.HistoryDisplay("blog"); d != dashboard.DisplayNone {
		t.Errorf("blog changed to %q", d)
	}
	if d, _ := c.ToggleHistory("shop"); d != initial {
		t.Errorf("second toggle = %q, want %q", d, initial)
	}
}

func TestToggleHistory_UnknownSite(t *testing.T) {
	t.Parallel()
	c, _ := newController(t, &fakeBackend{}, nil)

	if _, ok := c.ToggleHistory("ghost"); ok {
		t.Error("expected no panel for unknown site")
	}
}

// ─── Refresh and CaptureNow ────────────────────────────────────────────

func TestRefresh_LoadsSites(t *testing.T) {
	t.Parallel()
	views := sitesWithAlert("shop")
	data, _ := json.Marshal(views)
	backend := &fakeBackend{body: string(data)}
	c, _ := newController(t, backend, nil)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := c.Page().Alerts(); len(got) != 1 || got[0] != "shop" {
		t.Errorf("alerts = %v", got)
	}
	if _, ok := c.Page().Site("shop"); !ok {
		t.Error("shop not loaded")
	}
	if reqs := backend.Requests(); len(reqs) != 1 || reqs[0].Path != "/api/sites" {
		t.Errorf("unexpected requests %+v", reqs)
	}
}

func TestCaptureNow(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{status: http.StatusAccepted, body: `{"status":"queued","started":true}`}
	c, _ := newController(t, backend, nil)

	started, err := c.CaptureNow(context.Background(), "shop")
	if err != nil || !started {
		t.Fatalf("CaptureNow = %v, %v", started, err)
	}
	if reqs := backend.Requests(); len(reqs) != 1 || reqs[0].Path != "/api/sites/shop/capture" {
		t.Errorf("unexpected requests %+v", reqs)
	}
}
