package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/sightline/internal/capture"
	"github.com/raysh454/sightline/internal/imagediff"
	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/model"
	"github.com/raysh454/sightline/internal/shotstore"
	"github.com/raysh454/sightline/internal/tracker"
)

// RunCapture screenshots the named site, compares it with the previous
// capture, logs a change when the difference is significant and prunes old
// captures of the site.
func (m *Monitor) RunCapture(ctx context.Context, siteName string) (*model.Capture, error) {
	lock := m.siteLock(siteName)
	lock.Lock()
	defer lock.Unlock()

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.sem }()

	site, err := m.registry.GetSite(ctx, siteName)
	if err != nil {
		return nil, err
	}
	logger := m.logger.With(logging.Field{Key: "site", Value: siteName})

	shot, err := m.capturer.Capture(ctx, capture.RequestFor(*site))
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", site.URL, err)
	}

	// the previous image is read before saving so a timestamp collision
	// cannot overwrite it first
	prev, prevPNG := m.previousCapture(ctx, siteName, logger)

	now := m.now()
	ts := model.FormatTimestamp(now)
	rel, err := m.store.Save(siteName, ts, shot.PNG)
	if err != nil {
		return nil, err
	}

	text, err := tracker.VisibleText(shot.HTML)
	if err != nil {
		logger.Warn("failed to extract visible text", logging.Field{Key: "error", Value: err})
	}

	c := &model.Capture{
		Site:       siteName,
		Timestamp:  ts,
		Path:       rel,
		URL:        site.URL,
		Text:       text,
		CapturedAt: now,
	}

	if prev != nil {
		mse, err := imagediff.ComparePNG(prevPNG, shot.PNG)
		if err != nil {
			logger.Warn("comparison failed", logging.Field{Key: "error", Value: err})
		} else {
			c.MSE = mse
			c.Significant = imagediff.Significant(mse, m.cfg.ChangeThreshold)
			logger.Debug("compared with previous capture",
				logging.Field{Key: "mse", Value: mse},
				logging.Field{Key: "previous", Value: prev.Timestamp})
		}
	}

	if c.Significant {
		if err := m.logChange(ctx, siteName, ts, prev, prevPNG, c, shot.PNG); err != nil {
			return nil, err
		}
	}

	if err := m.tracker.RecordCapture(ctx, c); err != nil {
		return nil, err
	}
	if err := m.registry.MarkCaptured(ctx, siteName, now); err != nil {
		logger.Warn("failed to mark capture time", logging.Field{Key: "error", Value: err})
	}
	m.hub.Publish(Event{Type: EventCapture, Site: siteName, JobID: site.JobID(), Data: c})

	if m.cfg.CaptureRetention > 0 {
		if _, err := m.prune(ctx, siteName, now.Add(-m.cfg.CaptureRetention)); err != nil {
			logger.Warn("cleanup failed", logging.Field{Key: "error", Value: err})
		}
	}
	return c, nil
}

func (m *Monitor) previousCapture(ctx context.Context, siteName string, logger logging.Logger) (*model.Capture, []byte) {
	prev, err := m.tracker.LatestCapture(ctx, siteName)
	if errors.Is(err, tracker.ErrNoCaptures) {
		return nil, nil
	}
	if err != nil {
		logger.Warn("failed to load previous capture", logging.Field{Key: "error", Value: err})
		return nil, nil
	}
	data, err := m.store.Read(prev.Path)
	if err != nil {
		logger.Warn("previous screenshot unreadable", logging.Field{Key: "path", Value: prev.Path}, logging.Field{Key: "error", Value: err})
		return nil, nil
	}
	return prev, data
}

func (m *Monitor) logChange(ctx context.Context, siteName, ts string, prev *model.Capture, prevPNG []byte, curr *model.Capture, currPNG []byte) error {
	prevCopy, currCopy, err := m.store.PreserveChange(siteName, ts, prevPNG, currPNG)
	if err != nil {
		return err
	}
	ev := &model.ChangeEvent{
		Site:      siteName,
		Timestamp: ts,
		Prev:      model.ScreenshotURL(prevCopy),
		Curr:      model.ScreenshotURL(currCopy),
		MSE:       curr.MSE,
		TextDiff:  tracker.TextDiff(prev.Text, curr.Text),
		CreatedAt: curr.CapturedAt,
	}
	if err := m.tracker.AddChange(ctx, ev); err != nil {
		return err
	}
	m.hub.Publish(Event{Type: EventChange, Site: siteName, JobID: model.JobID(siteName), Data: ev})
	return nil
}

// SweepResult counts what a sweep removed.
type SweepResult struct {
	Captures int `json:"captures"`
	Changes  int `json:"changes"`
}

// Sweep removes non-significant captures older than the screenshot retention
// and change events older than the change retention, files included. The
// newest capture of each site is always kept as the comparison baseline.
func (m *Monitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := m.now()

	if m.cfg.ScreenshotRetention > 0 {
		n, err := m.prune(ctx, "", now.Add(-m.cfg.ScreenshotRetention))
		res.Captures = n
		if err != nil {
			return res, err
		}
	}

	if m.cfg.ChangeRetention > 0 {
		changes, err := m.tracker.ExpiredChanges(ctx, now.Add(-m.cfg.ChangeRetention))
		if err != nil {
			return res, err
		}
		for _, ev := range changes {
			for _, u := range []string{ev.Prev, ev.Curr} {
				if rel, ok := shotstore.RelFromURL(u, model.ScreenshotURLPrefix); ok {
					if err := m.store.Remove(rel); err != nil {
						m.logger.Warn("failed to remove change image", logging.Field{Key: "path", Value: rel}, logging.Field{Key: "error", Value: err})
					}
				}
			}
			if err := m.tracker.DeleteChange(ctx, ev.ID); err != nil {
				return res, err
			}
			res.Changes++
		}
	}

	if res.Captures > 0 || res.Changes > 0 {
		m.logger.Info("retention sweep",
			logging.Field{Key: "captures_removed", Value: res.Captures},
			logging.Field{Key: "changes_removed", Value: res.Changes})
	}
	return res, nil
}

// prune deletes non-significant captures of site (all sites when empty)
// taken before cutoff, keeping each site's newest capture.
func (m *Monitor) prune(ctx context.Context, site string, cutoff time.Time) (int, error) {
	expired, err := m.tracker.ExpiredCaptures(ctx, site, cutoff)
	if err != nil {
		return 0, err
	}
	latest := make(map[string]string)
	removed := 0
	for _, c := range expired {
		id, seen := latest[c.Site]
		if !seen {
			if l, err := m.tracker.LatestCapture(ctx, c.Site); err == nil {
				id = l.ID
			}
			latest[c.Site] = id
		}
		if c.ID == id {
			continue
		}
		if err := m.store.Remove(c.Path); err != nil {
			m.logger.Warn("failed to remove screenshot", logging.Field{Key: "path", Value: c.Path}, logging.Field{Key: "error", Value: err})
			continue
		}
		if err := m.tracker.DeleteCapture(ctx, c.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
