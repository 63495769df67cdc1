package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/dashboard"
	"github.com/raysh454/sightline/internal/model"
)

var errUnknownSite = errors.New("site not found")

func (s *session) ListAction(c *cli.Context) error {
	if err := s.ctrl.Refresh(c.Context); err != nil {
		return err
	}
	printSites(c.App.Writer, s.ctrl.Page().Sites())
	return nil
}

func (s *session) ShowAction(c *cli.Context) error {
	site, err := s.loadSite(c)
	if err != nil {
		return err
	}
	out := c.App.Writer

	alert := "none"
	if site.AlertActive {
		alert = "ACTIVE"
	}
	fmt.Fprintf(out, "Site:            %s\n", site.SiteName)
	fmt.Fprintf(out, "Job ID:          %s\n", site.JobID)
	fmt.Fprintf(out, "URL:             %s\n", site.URL)
	fmt.Fprintf(out, "Interval:        %d min\n", site.IntervalMinutes)
	fmt.Fprintf(out, "Viewport:        %s\n", site.Viewport)
	fmt.Fprintf(out, "Wait time:       %ds\n", site.WaitTime)
	if site.CookieAcceptSelector != "" {
		fmt.Fprintf(out, "Cookie selector: %s\n", site.CookieAcceptSelector)
	}
	fmt.Fprintf(out, "Alert:           %s\n", alert)
	if site.LastDismissed != "" {
		fmt.Fprintf(out, "Last dismissed:  %s\n", site.LastDismissed)
	}
	fmt.Fprintf(out, "Changes logged:  %d\n", len(site.Changes))

	if len(site.Images) == 0 {
		fmt.Fprintln(out, "\nNo captures yet")
		return nil
	}
	fmt.Fprintln(out, "\nRecent captures (newest first):")
	for i, img := range site.Images {
		fmt.Fprintf(out, "  [%d] %s\n", i, img)
	}
	return nil
}

func (s *session) AddAction(c *cli.Context) error {
	return s.ctrl.AddSite(c.Context, dashboard.AddForm{
		URL:                  c.String("url"),
		SiteName:             c.String("name"),
		Interval:             c.String("interval"),
		ViewportWidth:        c.String("viewport-width"),
		ViewportHeight:       c.String("viewport-height"),
		CookieAcceptSelector: c.String("cookie-selector"),
		WaitTime:             c.String("wait"),
	})
}

func (s *session) RemoveAction(c *cli.Context) error {
	arg, err := siteArg(c)
	if err != nil {
		return err
	}
	jobID := arg
	if !c.Bool("job-id") {
		jobID = model.JobID(arg)
	}
	return s.ctrl.RemoveSite(c.Context, jobID)
}

// EditAction starts from the site's current settings and applies the flags
// that were set.
func (s *session) EditAction(c *cli.Context) error {
	site, err := s.loadSite(c)
	if err != nil {
		return err
	}

	form := dashboard.EditForm{
		URL:            site.URL,
		Interval:       strconv.Itoa(site.IntervalMinutes),
		Viewport:       site.Viewport.String(),
		CookieSelector: site.CookieAcceptSelector,
		WaitTime:       strconv.Itoa(site.WaitTime),
	}
	if c.IsSet("url") {
		form.URL = c.String("url")
	}
	if c.IsSet("interval") {
		form.Interval = c.String("interval")
	}
	if c.IsSet("viewport") {
		form.Viewport = c.String("viewport")
	}
	if c.IsSet("cookie-selector") {
		form.CookieSelector = c.String("cookie-selector")
	}
	if c.IsSet("wait") {
		form.WaitTime = c.String("wait")
	}
	return s.ctrl.SubmitEdit(c.Context, site.SiteName, form)
}

func (s *session) DismissAction(c *cli.Context) error {
	name, err := siteArg(c)
	if err != nil {
		return err
	}
	if err := s.ctrl.DismissAlert(c.Context, name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Alert dismissed for %s\n", name)
	return nil
}

func (s *session) CaptureAction(c *cli.Context) error {
	name, err := siteArg(c)
	if err != nil {
		return err
	}
	started, err := s.ctrl.CaptureNow(c.Context, name)
	if err != nil {
		return err
	}
	if started {
		fmt.Fprintf(c.App.Writer, "Capture started for %s\n", name)
	} else {
		fmt.Fprintf(c.App.Writer, "Capture already running for %s\n", name)
	}
	return nil
}

// HistoryAction opens the site's history panel and prints its change log,
// newest first.
func (s *session) HistoryAction(c *cli.Context) error {
	site, err := s.loadSite(c)
	if err != nil {
		return err
	}
	if _, ok := s.ctrl.ToggleHistory(site.SiteName); !ok {
		return fmt.Errorf("%w: %s", errUnknownSite, site.SiteName)
	}
	printHistory(c.App.Writer, site)
	return nil
}

// ImageAction shows one of the site's recent captures, 0 being the newest.
func (s *session) ImageAction(c *cli.Context) error {
	site, err := s.loadSite(c)
	if err != nil {
		return err
	}

	index := 0
	if raw := c.Args().Get(1); raw != "" {
		index, err = strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("image: invalid index %q", raw)
		}
	}
	if index < 0 || index >= len(site.Images) {
		return fmt.Errorf("image: %s has %d captures, index %d out of range", site.SiteName, len(site.Images), index)
	}

	s.ctrl.ShowLightbox(site.Images[index])
	defer s.ctrl.CloseLightbox(dashboard.IDLightbox)
	src := s.ctrl.Page().LightboxSrc()

	fmt.Fprintln(c.App.Writer, s.client.BaseURL()+src)

	dest := c.String("save")
	if dest == "" {
		return nil
	}
	resp, err := s.client.Get(c.Context, src)
	if err != nil {
		return fmt.Errorf("download %s: %w", src, err)
	}
	if !resp.OK() {
		return fmt.Errorf("download %s: HTTP %d", src, resp.StatusCode)
	}
	if err := os.WriteFile(dest, resp.Body, 0o644); err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Saved %s (%d bytes)\n", dest, len(resp.Body))
	return nil
}

// HashPasswordAction hashes the argument, or the first line of stdin when no
// argument is given.
func (s *session) HashPasswordAction(c *cli.Context) error {
	password := c.Args().First()
	if password == "" {
		line, err := readLine(c.App.Reader)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = line
	}
	if password == "" {
		return errors.New("hash-password: empty password")
	}
	hash, err := config.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}

// ─── Helpers ───

func siteArg(c *cli.Context) (string, error) {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return "", fmt.Errorf("%s: site name required", c.Command.Name)
	}
	return name, nil
}

func (s *session) loadSite(c *cli.Context) (model.SiteView, error) {
	name, err := siteArg(c)
	if err != nil {
		return model.SiteView{}, err
	}
	if err := s.ctrl.Refresh(c.Context); err != nil {
		return model.SiteView{}, err
	}
	site, ok := s.ctrl.Page().Site(name)
	if !ok {
		return model.SiteView{}, fmt.Errorf("%w: %s", errUnknownSite, name)
	}
	return site, nil
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printSites(out io.Writer, sites []model.SiteView) {
	if len(sites) == 0 {
		fmt.Fprintln(out, "No sites monitored yet.")
		return
	}

	fmt.Fprintf(out, "%-20s %-9s %-10s %-5s %-7s %-8s %s\n",
		"Site", "Interval", "Viewport", "Wait", "Alert", "Changes", "URL")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, v := range sites {
		alert := "-"
		if v.AlertActive {
			alert = "ALERT"
		}
		fmt.Fprintf(out, "%-20s %-9s %-10s %-5s %-7s %-8d %s\n",
			v.SiteName,
			fmt.Sprintf("%dm", v.IntervalMinutes),
			v.Viewport.String(),
			fmt.Sprintf("%ds", v.WaitTime),
			alert,
			len(v.Changes),
			v.URL,
		)
	}
	fmt.Fprintf(out, "\nTotal: %d sites\n", len(sites))
}

func printHistory(out io.Writer, site model.SiteView) {
	if len(site.Changes) == 0 {
		fmt.Fprintf(out, "No changes logged for %s\n", site.SiteName)
		return
	}
	fmt.Fprintf(out, "Change history for %s (%d changes, newest first)\n", site.SiteName, len(site.Changes))
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for i := len(site.Changes) - 1; i >= 0; i-- {
		ch := site.Changes[i]
		fmt.Fprintf(out, "%s  MSE %.2f\n", ch.Timestamp, ch.MSE)
		fmt.Fprintf(out, "  before: %s\n", ch.Prev)
		fmt.Fprintf(out, "  after:  %s\n", ch.Curr)
		for _, chunk := range ch.TextDiff {
			sign := "+"
			if chunk.Type == "removed" {
				sign = "-"
			}
			fmt.Fprintf(out, "  %s %s\n", sign, chunk.Content)
		}
	}
}
