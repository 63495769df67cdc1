package dashboard

import (
	"sort"
	"sync"

	"github.com/raysh454/sightline/internal/model"
)

// Element ids of the dashboard page.
const (
	IDLightbox             = "lightbox"
	IDLightboxImg          = "lightbox-img"
	IDURL                  = "url"
	IDSiteName             = "site_name"
	IDInterval             = "interval"
	IDViewportWidth        = "viewport_width"
	IDViewportHeight       = "viewport_height"
	IDCookieAcceptSelector = "cookie_accept_selector"
	IDWaitTime             = "wait_time"
	IDEditURL              = "edit-url"
	IDEditInterval         = "edit-interval"
	IDEditViewport         = "edit-viewport"
	IDEditCookieSelector   = "edit-cookie-selector"
	IDEditWaitTime         = "edit-wait-time"

	// HistoryIDPrefix + site name is the id of a site's history panel.
	HistoryIDPrefix = "history-"
)

// ShowClass is the class that makes the lightbox overlay visible.
const ShowClass = "show"

// Inline display values of a history panel.
const (
	DisplayNone  = "none"
	DisplayBlock = "block"
)

// HistoryID returns the element id of a site's history panel.
func HistoryID(siteName string) string {
	return HistoryIDPrefix + siteName
}

// Page is the client-side state of a loaded dashboard: the lightbox, the
// per-site history panels and the alert boxes. Load replaces it wholesale,
// the way a page reload would.
type Page struct {
	mu sync.Mutex

	lightboxSrc     string
	lightboxClasses map[string]struct{}

	sites   []model.SiteView
	history map[string]string
	alerts  map[string]bool
}

// NewPage returns a page rendered from views.
func NewPage(views []model.SiteView) *Page {
	p := &Page{}
	p.Load(views)
	return p
}

// Load re-renders the page from server data. History panels start hidden and
// an alert box exists for every site with an active alert.
func (p *Page) Load(views []model.SiteView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lightboxSrc = ""
	p.lightboxClasses = make(map[string]struct{})
	p.sites = append([]model.SiteView(nil), views...)
	p.history = make(map[string]string, len(views))
	p.alerts = make(map[string]bool, len(views))
	for _, v := range views {
		p.history[v.SiteName] = DisplayNone
		if v.AlertActive {
			p.alerts[v.SiteName] = true
		}
	}
}

// Sites returns the rendered rows.
func (p *Page) Sites() []model.SiteView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.SiteView(nil), p.sites...)
}

// Site returns the rendered row of siteName.
func (p *Page) Site(siteName string) (model.SiteView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.sites {
		if v.SiteName == siteName {
			return v, true
		}
	}
	return model.SiteView{}, false
}

// LightboxSrc is the source of the lightbox image.
func (p *Page) LightboxSrc() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lightboxSrc
}

// LightboxClasses returns the overlay's class list, sorted.
func (p *Page) LightboxClasses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.lightboxClasses))
	for c := range p.lightboxClasses {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// LightboxVisible reports whether the overlay carries ShowClass.
func (p *Page) LightboxVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.lightboxClasses[ShowClass]
	return ok
}

// HistoryDisplay returns the inline display of a site's history panel and
// whether the panel exists.
func (p *Page) HistoryDisplay(siteName string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.history[siteName]
	return d, ok
}

// HasAlert reports whether the site's alert box is on the page.
func (p *Page) HasAlert(siteName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alerts[siteName]
}

// Alerts lists the sites whose alert box is on the page, sorted.
func (p *Page) Alerts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.alerts))
	for name, ok := range p.alerts {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Page) showLightbox(src string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lightboxSrc = src
	p.lightboxClasses[ShowClass] = struct{}{}
}

func (p *Page) hideLightbox() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lightboxSrc = ""
	delete(p.lightboxClasses, ShowClass)
}

func (p *Page) toggleHistory(siteName string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.history[siteName]
	if !ok {
		return "", false
	}
	if d == DisplayNone {
		d = DisplayBlock
	} else {
		d = DisplayNone
	}
	p.history[siteName] = d
	return d, true
}

func (p *Page) removeAlert(siteName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.alerts, siteName)
}
