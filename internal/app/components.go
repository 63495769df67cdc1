package app

import (
	"database/sql"
	"fmt"

	"github.com/raysh454/sightline/internal/capture"
	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/monitor"
	"github.com/raysh454/sightline/internal/registry"
	"github.com/raysh454/sightline/internal/shotstore"
	"github.com/raysh454/sightline/internal/tracker"
)

// Components are the long-lived services behind one sightline server.
type Components struct {
	DB       *sql.DB
	Registry *registry.Registry
	Tracker  *tracker.SQLiteTracker
	Store    *shotstore.Store
	Capturer capture.Capturer
	Monitor  *monitor.Monitor
}

// NewComponents opens the database and screenshot tree under the storage
// root, builds the configured capture backend and wires the monitor.
func NewComponents(cfg *config.Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	db, err := registry.OpenDatabase(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	reg, err := registry.NewRegistry(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("new registry: %w", err)
	}

	tr, err := tracker.NewSQLiteTracker(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("new tracker: %w", err)
	}

	store, err := shotstore.New(cfg.ScreenshotDir())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("new screenshot store: %w", err)
	}

	capturer, err := capture.New(cfg.Capture, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("new capturer: %w", err)
	}

	mon := monitor.New(cfg.Monitor, reg, tr, store, capturer, logger)

	return &Components{
		DB:       db,
		Registry: reg,
		Tracker:  tr,
		Store:    store,
		Capturer: capturer,
		Monitor:  mon,
	}, nil
}

// Close releases the browser and the database. Stop the monitor first so no
// capture is still using them.
func (c *Components) Close() error {
	var firstErr error
	if err := c.Capturer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close capturer: %w", err)
	}
	if err := c.DB.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close database: %w", err)
	}
	return firstErr
}
