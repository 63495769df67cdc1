package tracker

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	// ErrNoChanges is returned by Dismiss when a site has no logged change.
	ErrNoChanges = errors.New("no changes logged")

	// ErrNoCaptures is returned by LatestCapture for a site that was never captured.
	ErrNoCaptures = errors.New("no captures")
)

// SQLiteTracker keeps capture metadata, the change log and alert dismissals.
// Screenshot files themselves live in the shotstore; rows hold relative paths.
type SQLiteTracker struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteTracker applies the tracker schema to db.
func NewSQLiteTracker(db *sql.DB, logger logging.Logger) (*SQLiteTracker, error) {
	if db == nil {
		return nil, errors.New("tracker: nil db provided")
	}
	if logger == nil {
		return nil, errors.New("tracker: nil logger provided")
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &SQLiteTracker{db: db, logger: logger}, nil
}

// RecordCapture stores capture metadata. An empty ID is filled in.
func (t *SQLiteTracker) RecordCapture(ctx context.Context, c *model.Capture) error {
	if c == nil {
		return errors.New("capture cannot be nil")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CapturedAt.IsZero() {
		c.CapturedAt = time.Now()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO captures (id, site, timestamp, path, url, mse, is_significant, text, captured_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Site, c.Timestamp, c.Path, c.URL, c.MSE, boolToInt(c.Significant), c.Text, c.CapturedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}
	t.logger.Debug("recorded capture",
		logging.Field{Key: "site", Value: c.Site},
		logging.Field{Key: "timestamp", Value: c.Timestamp},
		logging.Field{Key: "significant", Value: c.Significant})
	return nil
}

// LatestCapture returns the newest capture of site or ErrNoCaptures.
func (t *SQLiteTracker) LatestCapture(ctx context.Context, site string) (*model.Capture, error) {
	caps, err := t.RecentCaptures(ctx, site, 1)
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		return nil, ErrNoCaptures
	}
	return &caps[0], nil
}

// RecentCaptures returns up to limit captures of site, newest first.
func (t *SQLiteTracker) RecentCaptures(ctx context.Context, site string, limit int) ([]model.Capture, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, site, timestamp, path, url, mse, is_significant, text, captured_at
         FROM captures
         WHERE site = ?
         ORDER BY captured_at DESC
         LIMIT ?`,
		site, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	return scanCaptures(rows)
}

// ExpiredCaptures returns non-significant captures taken before cutoff.
// An empty site matches every site.
func (t *SQLiteTracker) ExpiredCaptures(ctx context.Context, site string, cutoff time.Time) ([]model.Capture, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, site, timestamp, path, url, mse, is_significant, text, captured_at
         FROM captures
         WHERE (? = '' OR site = ?) AND is_significant = 0 AND captured_at < ?
         ORDER BY captured_at`,
		site, site, cutoff.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired captures: %w", err)
	}
	return scanCaptures(rows)
}

// DeleteCapture removes a capture row.
func (t *SQLiteTracker) DeleteCapture(ctx context.Context, id string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM captures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete capture %s: %w", id, err)
	}
	return nil
}

// AddChange appends a change event to the site's log.
func (t *SQLiteTracker) AddChange(ctx context.Context, ev *model.ChangeEvent) error {
	if ev == nil {
		return errors.New("change event cannot be nil")
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	diff := ev.TextDiff
	if diff == nil {
		diff = []model.DiffChunk{}
	}
	diffJSON, err := json.Marshal(diff)
	if err != nil {
		return fmt.Errorf("failed to marshal text diff: %w", err)
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO changes (id, site, timestamp, prev_url, curr_url, mse, text_diff, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Site, ev.Timestamp, ev.Prev, ev.Curr, ev.MSE, string(diffJSON), ev.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	t.logger.Info("change logged",
		logging.Field{Key: "site", Value: ev.Site},
		logging.Field{Key: "timestamp", Value: ev.Timestamp},
		logging.Field{Key: "mse", Value: ev.MSE})
	return nil
}

// ListChanges returns the change log of site, oldest first.
func (t *SQLiteTracker) ListChanges(ctx context.Context, site string) ([]model.ChangeEvent, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, site, timestamp, prev_url, curr_url, mse, text_diff, created_at
         FROM changes
         WHERE site = ?
         ORDER BY created_at`,
		site,
	)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	return scanChanges(rows)
}

// ExpiredChanges returns change events of any site created before cutoff.
func (t *SQLiteTracker) ExpiredChanges(ctx context.Context, cutoff time.Time) ([]model.ChangeEvent, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, site, timestamp, prev_url, curr_url, mse, text_diff, created_at
         FROM changes
         WHERE created_at < ?
         ORDER BY created_at`,
		cutoff.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired changes: %w", err)
	}
	return scanChanges(rows)
}

// DeleteChange removes a change event row.
func (t *SQLiteTracker) DeleteChange(ctx context.Context, id string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM changes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete change %s: %w", id, err)
	}
	return nil
}

// Dismiss marks every change of site up to the newest one as seen and returns
// that change's timestamp. It returns ErrNoChanges when the log is empty.
func (t *SQLiteTracker) Dismiss(ctx context.Context, site string) (string, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var latest string
	err = tx.QueryRowContext(ctx,
		`SELECT timestamp FROM changes WHERE site = ? ORDER BY created_at DESC LIMIT 1`, site,
	).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoChanges
	}
	if err != nil {
		return "", fmt.Errorf("query latest change: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dismissals (site, last_dismissed, dismissed_at) VALUES (?, ?, ?)
         ON CONFLICT(site) DO UPDATE SET last_dismissed = excluded.last_dismissed, dismissed_at = excluded.dismissed_at`,
		site, latest, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("store dismissal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return latest, nil
}

// LastDismissed returns the timestamp stored by the last Dismiss, or "".
func (t *SQLiteTracker) LastDismissed(ctx context.Context, site string) (string, error) {
	var ts string
	err := t.db.QueryRowContext(ctx, `SELECT last_dismissed FROM dismissals WHERE site = ?`, site).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query dismissal: %w", err)
	}
	return ts, nil
}

func scanCaptures(rows *sql.Rows) ([]model.Capture, error) {
	defer rows.Close()
	var out []model.Capture
	for rows.Next() {
		var (
			c           model.Capture
			significant int
			capturedAt  int64
		)
		if err := rows.Scan(&c.ID, &c.Site, &c.Timestamp, &c.Path, &c.URL, &c.MSE, &significant, &c.Text, &capturedAt); err != nil {
			return nil, err
		}
		c.Significant = significant != 0
		c.CapturedAt = time.Unix(0, capturedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChanges(rows *sql.Rows) ([]model.ChangeEvent, error) {
	defer rows.Close()
	var out []model.ChangeEvent
	for rows.Next() {
		var (
			ev        model.ChangeEvent
			diffJSON  string
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &ev.Site, &ev.Timestamp, &ev.Prev, &ev.Curr, &ev.MSE, &diffJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(diffJSON), &ev.TextDiff); err != nil {
			return nil, fmt.Errorf("decode text diff of change %s: %w", ev.ID, err)
		}
		ev.CreatedAt = time.Unix(0, createdAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
