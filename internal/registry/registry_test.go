package registry_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/sightline/internal/model"
	"github.com/raysh454/sightline/internal/registry"
	"github.com/raysh454/sightline/internal/testutil"
)

func openTestRegistry(t *testing.T) (*registry.Registry, *sql.DB) {
	t.Helper()
	db, err := registry.OpenDatabase(filepath.Join(t.TempDir(), "sightline.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := registry.NewRegistry(db, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg, db
}

func sampleSite(name string) model.MonitoredSite {
	s := model.MonitoredSite{URL: "https://" + name + ".example/", SiteName: name, IntervalMinutes: 5}
	s.ApplyDefaults()
	return s
}

func TestRegistry_UpsertGetList(t *testing.T) {
	t.Parallel()
	reg, _ := openTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"beta", "alpha"} {
		if err := reg.UpsertSite(ctx, sampleSite(name)); err != nil {
			t.Fatalf("UpsertSite(%s): %v", name, err)
		}
	}

	sites, err := reg.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 2 || sites[0].SiteName != "alpha" || sites[1].SiteName != "beta" {
		t.Fatalf("expected [alpha beta], got %+v", sites)
	}

	got, err := reg.GetSite(ctx, "alpha")
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if got.Viewport != model.DefaultViewport() || got.WaitTime != model.DefaultWaitTime {
		t.Errorf("defaults not persisted: %+v", got)
	}
}

func TestRegistry_UpsertReplacesExisting(t *testing.T) {
	t.Parallel()
	reg, _ := openTestRegistry(t)
	ctx := context.Background()

	site := sampleSite("shop")
	if err := reg.UpsertSite(ctx, site); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}
	site.IntervalMinutes = 30
	site.CookieAcceptSelector = "#accept"
	if err := reg.UpsertSite(ctx, site); err != nil {
		t.Fatalf("UpsertSite replace: %v", err)
	}

	sites, err := reg.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("expected 1 site after replace, got %d", len(sites))
	}
	if sites[0].IntervalMinutes != 30 || sites[0].CookieAcceptSelector != "#accept" {
		t.Errorf("replace not applied: %+v", sites[0])
	}
}

func TestRegistry_UpdateMissingSite(t *testing.T) {
	t.Parallel()
	reg, _ := openTestRegistry(t)

	err := reg.UpdateSite(context.Background(), sampleSite("ghost"))
	if !errors.Is(err, registry.ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestRegistry_GetMissingSite(t *testing.T) {
	t.Parallel()
	reg, _ := openTestRegistry(t)

	if _, err := reg.GetSiteByJobID(context.Background(), "site_ghost"); !errors.Is(err, registry.ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestRegistry_DeleteSite(t *testing.T) {
	t.Parallel()
	reg, _ := openTestRegistry(t)
	ctx := context.Background()

	if err := reg.UpsertSite(ctx, sampleSite("shop")); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}

	removed, err := reg.DeleteSite(ctx, "site_shop")
	if err != nil || !removed {
		t.Fatalf("DeleteSite = %v, %v; want true, nil", removed, err)
	}
	removed, err = reg.DeleteSite(ctx, "site_shop")
	if err != nil || removed {
		t.Fatalf("second DeleteSite = %v, %v; want false, nil", removed, err)
	}
}

func TestRegistry_MarkCaptured(t *testing.T) {
	t.Parallel()
	reg, db := openTestRegistry(t)
	ctx := context.Background()

	if err := reg.UpsertSite(ctx, sampleSite("shop")); err != nil {
		t.Fatalf("UpsertSite: %v", err)
	}
	if err := reg.MarkCaptured(ctx, "shop", time.Now()); err != nil {
		t.Fatalf("MarkCaptured: %v", err)
	}
	var last sql.NullInt64
	if err := db.QueryRow(`SELECT last_captured_at FROM sites WHERE job_id = 'site_shop'`).Scan(&last); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !last.Valid || last.Int64 == 0 {
		t.Fatal("expected last_captured_at to be set")
	}
}
