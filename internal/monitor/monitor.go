// Package monitor ties the site registry, scheduler, capture backend and
// change tracker together.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/sightline/internal/capture"
	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/model"
	"github.com/raysh454/sightline/internal/registry"
	"github.com/raysh454/sightline/internal/scheduler"
	"github.com/raysh454/sightline/internal/shotstore"
	"github.com/raysh454/sightline/internal/tracker"
	"github.com/raysh454/sightline/internal/utils"
)

// SweepJobID is the scheduler id of the periodic retention sweep.
const SweepJobID = "sightline_sweep"

// Monitor is the orchestrator behind every dashboard operation.
type Monitor struct {
	cfg      config.MonitorConfig
	registry *registry.Registry
	tracker  *tracker.SQLiteTracker
	store    *shotstore.Store
	capturer capture.Capturer
	sched    *scheduler.Scheduler
	hub      *Hub
	logger   logging.Logger

	sem chan struct{}

	locksMu   sync.Mutex
	siteLocks map[string]*sync.Mutex

	now func() time.Time
}

// New wires a Monitor. It owns a scheduler but not the capturer or stores.
func New(cfg config.MonitorConfig, reg *registry.Registry, tr *tracker.SQLiteTracker, store *shotstore.Store, capturer capture.Capturer, logger logging.Logger) *Monitor {
	if cfg.MaxConcurrentCaptures <= 0 {
		cfg.MaxConcurrentCaptures = 1
	}
	if cfg.RecentImages <= 0 {
		cfg.RecentImages = 6
	}
	componentLogger := logger.With(logging.Field{Key: "component", Value: "monitor"})
	return &Monitor{
		cfg:       cfg,
		registry:  reg,
		tracker:   tr,
		store:     store,
		capturer:  capturer,
		sched:     scheduler.New(logger),
		hub:       NewHub(),
		logger:    componentLogger,
		sem:       make(chan struct{}, cfg.MaxConcurrentCaptures),
		siteLocks: make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for capture timestamps and retention.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// Events exposes the event hub.
func (m *Monitor) Events() *Hub {
	return m.hub
}

// Jobs lists scheduled jobs.
func (m *Monitor) Jobs() []scheduler.JobInfo {
	return m.sched.Jobs()
}

// Start schedules every persisted site and the retention sweep.
func (m *Monitor) Start(ctx context.Context) error {
	n, err := m.Rehydrate(ctx)
	if err != nil {
		return err
	}
	if m.cfg.SweepInterval > 0 {
		err := m.sched.Schedule(SweepJobID, m.cfg.SweepInterval, func(ctx context.Context) {
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Error("retention sweep failed", logging.Field{Key: "error", Value: err})
			}
		})
		if err != nil {
			return fmt.Errorf("schedule sweep: %w", err)
		}
	}
	m.logger.Info("monitor started", logging.Field{Key: "sites", Value: n})
	return nil
}

// Close stops scheduling and waits for running captures until ctx is done.
func (m *Monitor) Close(ctx context.Context) error {
	return m.sched.Shutdown(ctx)
}

// Rehydrate schedules a capture job for every site in the registry.
func (m *Monitor) Rehydrate(ctx context.Context) (int, error) {
	sites, err := m.registry.ListSites(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sites: %w", err)
	}
	for _, site := range sites {
		if err := m.schedule(site); err != nil {
			return 0, err
		}
	}
	return len(sites), nil
}

// ─── Site lifecycle ───

// AddSite validates and persists site and schedules its capture job.
// A site with the same name is replaced.
func (m *Monitor) AddSite(ctx context.Context, site model.MonitoredSite) (*model.MonitoredSite, error) {
	site, err := normalizeSite(site)
	if err != nil {
		return nil, err
	}
	if err := m.registry.UpsertSite(ctx, site); err != nil {
		return nil, err
	}
	if err := m.schedule(site); err != nil {
		return nil, err
	}
	m.hub.Publish(Event{Type: EventSiteAdded, Site: site.SiteName, JobID: site.JobID(), Data: site})
	return &site, nil
}

// RemoveSite unschedules jobID and forgets the site. Unknown ids are not an
// error; captured history stays on disk until the sweep removes it.
func (m *Monitor) RemoveSite(ctx context.Context, jobID string) error {
	if err := m.sched.Remove(jobID); err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
		return err
	}
	removed, err := m.registry.DeleteSite(ctx, jobID)
	if err != nil {
		return err
	}
	if removed {
		name, _ := model.SiteNameFromJobID(jobID)
		m.hub.Publish(Event{Type: EventSiteRemoved, Site: name, JobID: jobID})
	}
	return nil
}

// EditSite applies req to the named site and reschedules it.
func (m *Monitor) EditSite(ctx context.Context, siteName string, req model.EditSiteRequest) (*model.MonitoredSite, error) {
	current, err := m.registry.GetSite(ctx, siteName)
	if err != nil {
		return nil, err
	}
	site, err := normalizeSite(req.Apply(*current))
	if err != nil {
		return nil, err
	}
	if err := m.registry.UpdateSite(ctx, site); err != nil {
		return nil, err
	}
	if err := m.schedule(site); err != nil {
		return nil, err
	}
	m.hub.Publish(Event{Type: EventSiteUpdated, Site: site.SiteName, JobID: site.JobID(), Data: site})
	return &site, nil
}

// DismissAlert marks the site's newest change as seen and returns its timestamp.
func (m *Monitor) DismissAlert(ctx context.Context, siteName string) (string, error) {
	if _, err := m.registry.GetSite(ctx, siteName); err != nil {
		return "", err
	}
	ts, err := m.tracker.Dismiss(ctx, siteName)
	if err != nil {
		return "", err
	}
	m.hub.Publish(Event{Type: EventAlertDismissed, Site: siteName, JobID: model.JobID(siteName), Data: ts})
	return ts, nil
}

// TriggerCapture queues an immediate capture of the named site. It reports
// false when a capture of that site is already running.
func (m *Monitor) TriggerCapture(ctx context.Context, siteName string) (bool, error) {
	site, err := m.registry.GetSite(ctx, siteName)
	if err != nil {
		return false, err
	}
	started, err := m.sched.RunNow(site.JobID())
	if errors.Is(err, scheduler.ErrJobNotFound) {
		if err := m.schedule(*site); err != nil {
			return false, err
		}
		return m.sched.RunNow(site.JobID())
	}
	return started, err
}

// ─── Dashboard ───

// Dashboard returns one view per site, ordered by name.
func (m *Monitor) Dashboard(ctx context.Context) ([]model.SiteView, error) {
	sites, err := m.registry.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	views := make([]model.SiteView, 0, len(sites))
	for _, site := range sites {
		v, err := m.view(ctx, site)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// SiteView returns the dashboard view of one site.
func (m *Monitor) SiteView(ctx context.Context, siteName string) (*model.SiteView, error) {
	site, err := m.registry.GetSite(ctx, siteName)
	if err != nil {
		return nil, err
	}
	return m.view(ctx, *site)
}

func (m *Monitor) view(ctx context.Context, site model.MonitoredSite) (*model.SiteView, error) {
	caps, err := m.tracker.RecentCaptures(ctx, site.SiteName, m.cfg.RecentImages)
	if err != nil {
		return nil, err
	}
	changes, err := m.tracker.ListChanges(ctx, site.SiteName)
	if err != nil {
		return nil, err
	}
	last, err := m.tracker.LastDismissed(ctx, site.SiteName)
	if err != nil {
		return nil, err
	}

	v := &model.SiteView{
		MonitoredSite: site,
		JobID:         site.JobID(),
		Images:        make([]string, 0, len(caps)),
		Changes:       changes,
		LastDismissed: last,
	}
	if v.Changes == nil {
		v.Changes = []model.ChangeEvent{}
	}
	for _, c := range caps {
		v.Images = append(v.Images, c.PublicURL())
	}
	v.ChangeDetected = len(caps) > 0 && caps[0].Significant
	if latest, ok := v.LatestChange(); ok {
		v.AlertActive = latest.Timestamp > last
	}
	return v, nil
}

// ─── Helpers ───

func (m *Monitor) schedule(site model.MonitoredSite) error {
	name := site.SiteName
	interval := time.Duration(site.IntervalMinutes) * time.Minute
	err := m.sched.Schedule(site.JobID(), interval, func(ctx context.Context) {
		if _, err := m.RunCapture(ctx, name); err != nil {
			m.logger.Error("capture failed",
				logging.Field{Key: "site", Value: name},
				logging.Field{Key: "error", Value: err})
			m.hub.Publish(Event{Type: EventCaptureFailed, Site: name, JobID: model.JobID(name), Error: err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", site.JobID(), err)
	}
	return nil
}

func (m *Monitor) siteLock(name string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.siteLocks[name]
	if !ok {
		l = &sync.Mutex{}
		m.siteLocks[name] = l
	}
	return l
}

// normalizeSite applies defaults, canonicalizes the URL and validates.
func normalizeSite(site model.MonitoredSite) (model.MonitoredSite, error) {
	site.ApplyDefaults()
	if err := site.Validate(); err != nil {
		return site, err
	}
	canonical, err := utils.CanonicalizeSiteURL(site.URL)
	if err != nil {
		return site, fmt.Errorf("%w: url: %v", model.ErrInvalidSite, err)
	}
	site.URL = canonical
	return site, nil
}
