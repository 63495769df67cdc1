package demoserver

import (
	"bytes"
	"html/template"
	"sort"
)

// CookieName is set by the cookie banner's accept button. Pages requested
// with it render without the banner.
const CookieName = "cookies_accepted"

// AcceptCookiesSelector is the CSS selector of the banner's accept button.
const AcceptCookiesSelector = "#accept-cookies"

// PageVersion is one look of a page.
type PageVersion struct {
	Title    string
	Theme    template.CSS // hero background
	Headline string
	Body     string
	Items    []string

	// CookieBanner overlays a fixed banner until cookies are accepted.
	CookieBanner bool

	// LateContent is written into #late by a script LateDelayMS after load.
	LateContent string
	LateDelayMS int
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	Versions    map[int]PageVersion
}

// VersionNumbers returns the page's versions in ascending order.
func (p PageDefinition) VersionNumbers() []int {
	out := make([]int, 0, len(p.Versions))
	for v := range p.Versions {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// MaxVersion is the highest defined version, or 1 for a page without any.
func (p PageDefinition) MaxVersion() int {
	maxV := 1
	for v := range p.Versions {
		if v > maxV {
			maxV = v
		}
	}
	return maxV
}

// Resolve returns version v, falling back to the closest lower version.
func (p PageDefinition) Resolve(v int) (PageVersion, int, bool) {
	for ; v >= 1; v-- {
		if pv, ok := p.Versions[v]; ok {
			return pv, v, true
		}
	}
	return PageVersion{}, 0, false
}

// GetAllPages returns all demo page definitions.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		getHomePage(),
		getPricingPage(),
		getNewsPage(),
	}
}

// ===== HOME PAGE =====
func getHomePage() PageDefinition {
	nav := []string{"New arrivals", "Women", "Men", "Accessories"}
	return PageDefinition{
		Path:        "/",
		Description: "Shop front with a cookie banner; v2 swaps the hero for a sale, v3 goes dark",
		Versions: map[int]PageVersion{
			1: {
				Title:        "Demo Shop",
				Theme:        "#2b6cb0",
				Headline:     "Spring Collection",
				Body:         "Fresh colours for the new season.",
				Items:        nav,
				CookieBanner: true,
			},
			2: {
				Title:        "Demo Shop - Sale",
				Theme:        "#c53030",
				Headline:     "Summer Sale: 30% off everything",
				Body:         "Only this week. While stocks last.",
				Items:        nav,
				CookieBanner: true,
			},
			3: {
				Title:        "Demo Shop",
				Theme:        "#1a202c",
				Headline:     "We are closing down",
				Body:         "Thank you for ten years of shopping with us.",
				Items:        []string{"Final clearance"},
				CookieBanner: true,
			},
		},
	}
}

// ===== PRICING PAGE =====
func getPricingPage() PageDefinition {
	return PageDefinition{
		Path:        "/pricing",
		Description: "Price table; v2 only changes the numbers",
		Versions: map[int]PageVersion{
			1: {
				Title:    "Pricing",
				Theme:    "#276749",
				Headline: "Simple pricing",
				Body:     "Pick the plan that fits.",
				Items:    []string{"Basic: $5/month", "Pro: $15/month", "Team: $40/month"},
			},
			2: {
				Title:    "Pricing",
				Theme:    "#276749",
				Headline: "Simple pricing",
				Body:     "Pick the plan that fits.",
				Items:    []string{"Basic: $7/month", "Pro: $19/month", "Team: $49/month"},
			},
		},
	}
}

// ===== NEWS PAGE =====
func getNewsPage() PageDefinition {
	return PageDefinition{
		Path:        "/news",
		Description: "Headline rendered by script 1.5s after load; only visible with a long enough wait time",
		Versions: map[int]PageVersion{
			1: {
				Title:       "News",
				Theme:       "#744210",
				Headline:    "Latest news",
				Body:        "Updated throughout the day.",
				LateContent: "Markets calm ahead of the weekend",
				LateDelayMS: 1500,
			},
			2: {
				Title:       "News",
				Theme:       "#744210",
				Headline:    "Latest news",
				Body:        "Updated throughout the day.",
				LateContent: "BREAKING: Storm warning issued for the coast",
				LateDelayMS: 1500,
			},
		},
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body { margin: 0; font-family: system-ui, -apple-system, sans-serif; background: #f7fafc; }
        .hero { background: {{.Theme}}; color: white; padding: 80px 40px; }
        .hero h1 { margin: 0; font-size: 3em; }
        main { padding: 40px; font-size: 1.2em; }
        main li { margin: 8px 0; }
        #late { margin-top: 24px; font-weight: bold; font-size: 1.5em; }
        #cookie-banner { position: fixed; bottom: 0; left: 0; right: 0; background: #222; color: #eee; padding: 24px 40px; display: flex; justify-content: space-between; align-items: center; }
        #accept-cookies { background: #48bb78; color: white; border: none; padding: 12px 24px; font-size: 1em; cursor: pointer; }
    </style>
</head>
<body>
    <header class="hero"><h1>{{.Headline}}</h1></header>
    <main>
        <p>{{.Body}}</p>
        {{if .Items}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>{{end}}
        <div id="late"></div>
    </main>
    {{if .CookieBanner}}
    <div id="cookie-banner">
        <span>We use cookies to improve your experience.</span>
        <button id="accept-cookies" onclick="document.cookie = 'cookies_accepted=1; path=/'; document.getElementById('cookie-banner').remove();">Accept</button>
    </div>
    {{end}}
    {{if .LateContent}}
    <script>
        setTimeout(function () {
            document.getElementById("late").textContent = {{.LateContent}};
        }, {{.LateDelayMS}});
    </script>
    {{end}}
</body>
</html>`))

// Render writes the page's HTML. The cookie banner is left out once cookies
// were accepted.
func (pv PageVersion) Render(cookiesAccepted bool) ([]byte, error) {
	if cookiesAccepted {
		pv.CookieBanner = false
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, pv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
