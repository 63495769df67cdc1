// Package dashboard drives the sightline dashboard: it reads form input,
// sends one request per operation to the server and reacts through a View.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/model"
	"github.com/raysh454/sightline/internal/webclient"
)

// View is what the controller needs from whoever displays the dashboard.
type View interface {
	// Alert shows a blocking dialog.
	Alert(msg string)

	// Diagnostic records a failure for the operator's console.
	Diagnostic(msg string, err error)

	// Reload re-renders the page from the server.
	Reload(ctx context.Context)
}

// AddForm holds the raw values of the add-site form fields.
type AddForm struct {
	URL                  string
	SiteName             string
	Interval             string
	ViewportWidth        string
	ViewportHeight       string
	CookieAcceptSelector string
	WaitTime             string
}

// EditForm holds the raw values of the edit-site form fields.
type EditForm struct {
	URL            string
	Interval       string
	Viewport       string
	CookieSelector string
	WaitTime       string
}

// addSitePayload always carries every field; empty optional fields get defaults.
type addSitePayload struct {
	URL                  string `json:"url"`
	SiteName             string `json:"site_name"`
	IntervalMinutes      int    `json:"interval_minutes"`
	Viewport             [2]int `json:"viewport"`
	CookieAcceptSelector string `json:"cookie_accept_selector"`
	WaitTime             int    `json:"wait_time"`
}

type statusBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Controller implements the dashboard operations.
type Controller struct {
	client webclient.WebClient
	view   View
	page   *Page
	logger logging.Logger
}

// NewController wires a controller. A nil page starts empty.
func NewController(client webclient.WebClient, view View, page *Page, logger logging.Logger) *Controller {
	if page == nil {
		page = NewPage(nil)
	}
	return &Controller{
		client: client,
		view:   view,
		page:   page,
		logger: logger.With(logging.Field{Key: "component", Value: "dashboard"}),
	}
}

// Page returns the page state the controller mutates.
func (c *Controller) Page() *Page {
	return c.page
}

// Refresh loads the site list from the server into the page.
func (c *Controller) Refresh(ctx context.Context) error {
	resp, err := c.client.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: "/api/sites"})
	if err != nil {
		return &RequestError{Op: "load sites", Err: err}
	}
	if !resp.OK() {
		return &RequestError{Op: "load sites", StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}
	var views []model.SiteView
	if err := resp.DecodeJSON(&views); err != nil {
		return fmt.Errorf("load sites: %w", err)
	}
	c.page.Load(views)
	return nil
}

// ─── Lightbox ───

// ShowLightbox shows src in the overlay.
func (c *Controller) ShowLightbox(src string) {
	c.page.showLightbox(src)
}

// CloseLightbox hides the overlay when the click landed on the overlay
// itself. Clicks on any other element, the image included, do nothing.
func (c *Controller) CloseLightbox(targetID string) {
	if targetID != IDLightbox {
		return
	}
	c.page.hideLightbox()
}

// ─── Site lifecycle ───

// AddSite posts the form to /add-site and reloads once the server answered.
// A non-success answer is shown in a dialog first. Unparsable numbers fall
// back to the viewport and wait defaults; an unparsable interval is sent as 0
// and left for the server to reject.
func (c *Controller) AddSite(ctx context.Context, form AddForm) error {
	payload := addSitePayload{
		URL:                  strings.TrimSpace(form.URL),
		SiteName:             strings.TrimSpace(form.SiteName),
		IntervalMinutes:      intOr(form.Interval, 0),
		Viewport:             [2]int{intOr(form.ViewportWidth, model.DefaultViewportWidth), intOr(form.ViewportHeight, model.DefaultViewportHeight)},
		CookieAcceptSelector: strings.TrimSpace(form.CookieAcceptSelector),
		WaitTime:             intOr(form.WaitTime, model.DefaultWaitTime),
	}
	req, err := webclient.NewJSONRequest(http.MethodPost, "/add-site", payload)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		c.view.Diagnostic("Add site request failed", err)
		c.view.Alert(MsgNetworkError)
		return &RequestError{Op: "add site", Err: err}
	}

	var failure error
	if !resp.OK() {
		msg := errorMessage(resp)
		c.view.Alert("Add site failed: " + msg)
		failure = &RequestError{Op: "add site", StatusCode: resp.StatusCode, Message: msg}
	} else {
		c.logger.Info("site added", logging.Field{Key: "site", Value: payload.SiteName})
	}
	c.view.Reload(ctx)
	return failure
}

// RemoveSite deletes the job and reloads whatever the server answered.
func (c *Controller) RemoveSite(ctx context.Context, jobID string) error {
	resp, err := c.client.Do(ctx, &webclient.Request{
		Method: http.MethodDelete,
		URL:    "/remove-site/" + url.PathEscape(jobID),
	})
	if err != nil {
		c.view.Diagnostic("Remove site request failed", err)
		c.view.Alert(MsgNetworkError)
		return &RequestError{Op: "remove site", Err: err}
	}
	c.logger.Info("site removed", logging.Field{Key: "job_id", Value: jobID}, logging.Field{Key: "status_code", Value: resp.StatusCode})
	c.view.Reload(ctx)
	return nil
}

// SubmitEdit validates the edit form, posts it to /edit-site/{siteName},
// shows the returned status and reloads. An incomplete form raises one
// dialog and sends nothing.
func (c *Controller) SubmitEdit(ctx context.Context, siteName string, form EditForm) error {
	edit, verr := parseEditForm(form)
	if verr != nil {
		c.view.Alert(MsgEditIncomplete)
		return verr
	}

	req, err := webclient.NewJSONRequest(http.MethodPost, "/edit-site/"+url.PathEscape(siteName), edit)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		c.view.Diagnostic("Edit request failed", err)
		c.view.Alert(MsgNetworkError)
		return &RequestError{Op: "edit site", Err: err}
	}

	var body statusBody
	if err := resp.DecodeJSON(&body); err != nil {
		c.view.Diagnostic("Edit response unreadable", err)
		c.view.Alert(MsgNetworkError)
		return &RequestError{Op: "edit site", StatusCode: resp.StatusCode, Message: "unreadable response", Err: err}
	}

	c.view.Alert(firstNonEmpty(body.Status, body.Error, "unknown"))
	c.view.Reload(ctx)
	if !resp.OK() {
		return &RequestError{Op: "edit site", StatusCode: resp.StatusCode, Message: body.Error}
	}
	return nil
}

// CaptureNow asks the server for an immediate capture of siteName. It
// reports whether a new capture started.
func (c *Controller) CaptureNow(ctx context.Context, siteName string) (bool, error) {
	resp, err := c.client.Do(ctx, &webclient.Request{
		Method: http.MethodPost,
		URL:    "/api/sites/" + url.PathEscape(siteName) + "/capture",
	})
	if err != nil {
		return false, &RequestError{Op: "capture", Err: err}
	}
	if !resp.OK() {
		return false, &RequestError{Op: "capture", StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}
	var body struct {
		Started bool `json:"started"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return false, fmt.Errorf("capture: %w", err)
	}
	return body.Started, nil
}

// ─── Alerts ───

// DismissAlert posts /dismiss-alert/{siteName}. Only a success answer with
// status "dismissed" removes the site's alert box; every failure is reported
// and leaves the page untouched. The page is never reloaded.
func (c *Controller) DismissAlert(ctx context.Context, siteName string) error {
	resp, err := c.client.Do(ctx, &webclient.Request{
		Method: http.MethodPost,
		URL:    "/dismiss-alert/" + url.PathEscape(siteName),
	})
	if err != nil {
		c.view.Diagnostic("Dismiss request failed", err)
		c.view.Alert(MsgNetworkError)
		return &DismissError{Site: siteName, Kind: DismissTransport, Err: err}
	}

	if !resp.OK() {
		msg := errorMessage(resp)
		derr := &DismissError{Site: siteName, Kind: DismissStatus, StatusCode: resp.StatusCode, Message: msg}
		c.view.Diagnostic("Dismiss failed", derr)
		c.view.Alert(fmt.Sprintf("Dismiss failed: HTTP %d: %s", resp.StatusCode, msg))
		return derr
	}

	var body statusBody
	if err := resp.DecodeJSON(&body); err != nil {
		c.view.Diagnostic("Dismiss response unreadable", err)
		c.view.Alert("Dismiss failed: " + err.Error())
		return &DismissError{Site: siteName, Kind: DismissBody, StatusCode: resp.StatusCode, Err: err}
	}

	if body.Status != model.StatusDismissed {
		msg := firstNonEmpty(body.Error, "unknown")
		c.view.Alert("Dismiss failed: " + msg)
		return &DismissError{Site: siteName, Kind: DismissRejected, StatusCode: resp.StatusCode, Message: msg}
	}

	c.page.removeAlert(siteName)
	c.logger.Info("alert dismissed", logging.Field{Key: "site", Value: siteName})
	return nil
}

// ─── History ───

// ToggleHistory flips the site's history panel between hidden and shown and
// returns the new display value. Unknown sites are ignored.
func (c *Controller) ToggleHistory(siteName string) (string, bool) {
	return c.page.toggleHistory(siteName)
}

// ─── Helpers ───

func parseEditForm(form EditForm) (model.EditSiteRequest, error) {
	var edit model.EditSiteRequest

	edit.URL = strings.TrimSpace(form.URL)
	if edit.URL == "" {
		return edit, &ValidationError{Field: IDEditURL}
	}
	if strings.TrimSpace(form.Viewport) == "" {
		return edit, &ValidationError{Field: IDEditViewport}
	}
	vp, err := model.ParseViewport(form.Viewport)
	if err != nil {
		return edit, &ValidationError{Field: IDEditViewport, Value: form.Viewport, Err: err}
	}
	edit.Viewport = vp

	edit.IntervalMinutes, err = requiredInt(IDEditInterval, form.Interval)
	if err != nil {
		return edit, err
	}
	edit.WaitTime, err = requiredInt(IDEditWaitTime, form.WaitTime)
	if err != nil {
		return edit, err
	}
	edit.CookieAcceptSelector = strings.TrimSpace(form.CookieSelector)
	return edit, nil
}

func requiredInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ValidationError{Field: field}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &ValidationError{Field: field, Value: raw, Err: err}
	}
	return n, nil
}

func intOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

// errorMessage extracts {"error": ...} from a failed response, falling back
// to the status text.
func errorMessage(resp *webclient.Response) string {
	var body statusBody
	if err := resp.DecodeJSON(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return http.StatusText(resp.StatusCode)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
