package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/model"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

var ErrSiteNotFound = errors.New("site not found")

// OpenDatabase opens (creating if needed) the SQLite database at path and
// applies the pragmas every sightline store expects.
func OpenDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Registry persists the set of monitored sites. Rows are keyed by job id
// (site_<name>) so scheduler ids and registry ids are interchangeable.
type Registry struct {
	db     *sql.DB
	logger logging.Logger
}

// NewRegistry returns a Registry and runs migrations from schema.sql.
func NewRegistry(db *sql.DB, logger logging.Logger) (*Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &Registry{db: db, logger: logger}, nil
}

// UpsertSite inserts site or replaces the existing row with the same name.
// The original created_at survives a replace.
func (r *Registry) UpsertSite(ctx context.Context, site model.MonitoredSite) error {
	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sites
             (job_id, site_name, url, interval_minutes, viewport_width, viewport_height,
              cookie_accept_selector, wait_time, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
             url = excluded.url,
             interval_minutes = excluded.interval_minutes,
             viewport_width = excluded.viewport_width,
             viewport_height = excluded.viewport_height,
             cookie_accept_selector = excluded.cookie_accept_selector,
             wait_time = excluded.wait_time,
             updated_at = excluded.updated_at`,
		site.JobID(), site.SiteName, site.URL, site.IntervalMinutes,
		site.Viewport.Width, site.Viewport.Height,
		site.CookieAcceptSelector, site.WaitTime, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert site %s: %w", site.SiteName, err)
	}
	return nil
}

// UpdateSite overwrites an existing site. It returns ErrSiteNotFound when no
// row carries site.SiteName.
func (r *Registry) UpdateSite(ctx context.Context, site model.MonitoredSite) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sites SET
             url = ?, interval_minutes = ?, viewport_width = ?, viewport_height = ?,
             cookie_accept_selector = ?, wait_time = ?, updated_at = ?
         WHERE job_id = ?`,
		site.URL, site.IntervalMinutes, site.Viewport.Width, site.Viewport.Height,
		site.CookieAcceptSelector, site.WaitTime, time.Now().Unix(), site.JobID(),
	)
	if err != nil {
		return fmt.Errorf("update site %s: %w", site.SiteName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update site %s: %w", site.SiteName, err)
	}
	if n == 0 {
		return ErrSiteNotFound
	}
	return nil
}

// GetSite returns a site by name.
func (r *Registry) GetSite(ctx context.Context, siteName string) (*model.MonitoredSite, error) {
	return r.GetSiteByJobID(ctx, model.JobID(siteName))
}

// GetSiteByJobID returns a site by job id.
func (r *Registry) GetSiteByJobID(ctx context.Context, jobID string) (*model.MonitoredSite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT site_name, url, interval_minutes, viewport_width, viewport_height, cookie_accept_selector, wait_time
         FROM sites
         WHERE job_id = ?
         LIMIT 1`,
		jobID,
	)
	site, err := scanSite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return site, nil
}

// ListSites returns all sites ordered by name.
func (r *Registry) ListSites(ctx context.Context) ([]model.MonitoredSite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT site_name, url, interval_minutes, viewport_width, viewport_height, cookie_accept_selector, wait_time
         FROM sites
         ORDER BY site_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MonitoredSite
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *site)
	}
	return out, rows.Err()
}

// DeleteSite removes the row for jobID. removed is false when nothing matched.
func (r *Registry) DeleteSite(ctx context.Context, jobID string) (removed bool, err error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sites WHERE job_id = ?`, jobID)
	if err != nil {
		return false, fmt.Errorf("delete site %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCaptured records the time of the latest successful capture.
func (r *Registry) MarkCaptured(ctx context.Context, siteName string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sites SET last_captured_at = ? WHERE job_id = ?`,
		ts.Unix(), model.JobID(siteName),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*model.MonitoredSite, error) {
	var s model.MonitoredSite
	if err := row.Scan(&s.SiteName, &s.URL, &s.IntervalMinutes,
		&s.Viewport.Width, &s.Viewport.Height, &s.CookieAcceptSelector, &s.WaitTime); err != nil {
		return nil, err
	}
	return &s, nil
}
