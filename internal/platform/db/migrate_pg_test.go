package db_test

import (
	"context"
	"testing"

	"github.com/lawfirm/booking/internal/platform/db"
	"github.com/lawfirm/booking/internal/platform/db/dbtest"
	"github.com/lawfirm/booking/migrations"
)

func TestMain(m *testing.M) {
	dbtest.Main(m)
}

func TestMigrator_DownAndUpAgain(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	m := db.NewMigrator(pool, migrations.FS)

	status, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, s := range status {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("expected migration %d applied", s.Version)
		}
	}
	if n, err := m.Up(ctx); err != nil || n != 0 {
		t.Errorf("expected no pending migrations, got %d, %v", n, err)
	}

	reverted, err := m.Down(ctx)
	if err != nil {
		t.Fatalf("down: %v", err)
	}
	if reverted == nil || reverted.Version != status[len(status)-1].Version {
		t.Fatalf("expected the latest migration reverted, got %+v", reverted)
	}
	if len(status) == 1 {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass('lawyers') IS NOT NULL`).Scan(&exists); err != nil {
			t.Fatalf("query: %v", err)
		}
		if exists {
			t.Error("expected lawyers table dropped")
		}
	}

	if n, err := m.Up(ctx); err != nil || n != 1 {
		t.Errorf("expected one migration re-applied, got %d, %v", n, err)
	}
}
