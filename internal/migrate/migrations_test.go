package migrate_test

import (
	"context"
	"testing"

	"reminderdesk/internal/db"
	"reminderdesk/internal/migrate"
)

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	if v, err := migrate.Version(ctx, conn); err != nil || v != 0 {
		t.Fatalf("fresh version = %d, %v", v, err)
	}
	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(conn); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
	}
	all, err := migrate.Migrations()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	v, err := migrate.Version(ctx, conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if want := all[len(all)-1].Version; v != want {
		t.Fatalf("expected version %d, got %d", want, v)
	}
	for _, table := range []string{"reminders", "reminder_shares", "users", "events", "webhook_cursors"} {
		var n int
		if err := conn.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil || n != 1 {
			t.Fatalf("table %s missing (%v)", table, err)
		}
	}
}
