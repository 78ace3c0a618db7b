package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	lightning "github.com/goliatone/go-lightning-webhooks"
	_ "github.com/mattn/go-sqlite3"
)

func TestForDialect_ResolvesEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		fsys, err := ForDialect(dialect)
		if err != nil {
			t.Fatalf("for dialect %s: %v", dialect, err)
		}
		names, err := Names(fsys)
		if err != nil {
			t.Fatalf("names %s: %v", dialect, err)
		}
		want := []string{"00001_lightning_access", "00002_lightning_webhook_deliveries"}
		if len(names) != len(want) {
			t.Fatalf("%s: expected %v, got %v", dialect, want, names)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Fatalf("%s: expected %v, got %v", dialect, want, names)
			}
		}
	}

	postgres, _ := ForDialect(DialectPostgres)
	if _, err := fs.Stat(postgres, "sqlite"); err != nil {
		t.Fatalf("expected postgres root to hold the sqlite directory: %v", err)
	}
	sqlite, _ := ForDialect(DialectSQLite)
	content, err := fs.ReadFile(sqlite, "00001_lightning_access.up.sql")
	if err != nil || strings.TrimSpace(string(content)) == "" {
		t.Fatalf("expected sqlite access migration, got %q (%v)", content, err)
	}

	if _, err := ForDialect("mysql"); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
}

func TestForDialect_RequiresDownPairs(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00002_b.up.sql":   {Data: []byte("SELECT 2;")},
		"data/sql/migrations/sqlite/00001_a.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := ForDialect(DialectPostgres, source); err != nil {
		t.Fatalf("expected paired postgres migrations to resolve: %v", err)
	}
	_, err := ForDialect(DialectSQLite, source)
	if err == nil || !strings.Contains(err.Error(), "00002_b.up.sql") {
		t.Fatalf("expected missing down pair error, got %v", err)
	}

	empty := fstest.MapFS{"data/sql/migrations/README": {Data: []byte("none")}}
	if _, err := ForDialect(DialectPostgres, empty); err == nil {
		t.Fatalf("expected error for a directory without migrations")
	}
}

func TestDialectForDriver(t *testing.T) {
	tests := map[string]string{
		"postgres": DialectPostgres,
		"sqlite3":  DialectSQLite,
		" SQLite ": DialectSQLite,
	}
	for driver, want := range tests {
		got, err := DialectForDriver(driver)
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if got != want {
			t.Fatalf("driver %q: expected %s, got %s", driver, want, got)
		}
	}
	if _, err := DialectForDriver("mysql"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestRegister_HandsOnlyTheRequestedDialect(t *testing.T) {
	var calls int
	err := Register(context.Background(), DialectSQLite, func(_ context.Context, fsys fs.FS) error {
		calls++
		if _, err := fs.Stat(fsys, "00001_lightning_access.up.sql"); err != nil {
			t.Fatalf("expected sqlite migrations: %v", err)
		}
		if _, err := fs.Stat(fsys, "sqlite"); err == nil {
			t.Fatalf("expected the sqlite subtree, not the postgres root")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 registration call, got %d", calls)
	}
}

func TestRegister_PropagatesRegisterErrors(t *testing.T) {
	boom := errors.New("boom")
	err := Register(context.Background(), DialectPostgres, func(context.Context, fs.FS) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected register error, got %v", err)
	}
	if err := Register(context.Background(), DialectPostgres, nil); err == nil {
		t.Fatalf("expected error without register function")
	}
	if err := Register(context.Background(), "oracle", func(context.Context, fs.FS) error { return nil }); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := lightning.GetMigrationsFS()
	names := []string{
		"00001_lightning_access",
		"00002_lightning_webhook_deliveries",
	}
	for _, name := range names {
		for _, dir := range []string{"data/sql/migrations", "data/sql/migrations/sqlite"} {
			for _, suffix := range []string{".up.sql", ".down.sql"} {
				migrationPath := dir + "/" + name + suffix
				content, err := fs.ReadFile(root, migrationPath)
				if err != nil {
					t.Fatalf("read migration %s: %v", migrationPath, err)
				}
				if strings.TrimSpace(string(content)) == "" {
					t.Fatalf("expected migration %s to have SQL content", migrationPath)
				}
			}
		}
	}
}

func TestSQLiteAccessMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-access?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	sqliteMigrations, err := fs.Sub(lightning.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_lightning_access.up.sql"); err != nil {
		t.Fatalf("apply access migration: %v", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO identities (id, pubkey) VALUES (?, ?)`, "id-1", "npub1"); err != nil {
		t.Fatalf("insert identity: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO identities (id, pubkey) VALUES (?, ?)`, "id-2", "npub1"); err == nil {
		t.Fatalf("expected duplicate pubkey to be rejected")
	}

	insertGrant := `INSERT INTO access_grants (id, identity_id, content_id, provider) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertGrant, "g-1", "id-1", "c-1", "btcpay"); err != nil {
		t.Fatalf("insert grant: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertGrant, "g-2", "id-1", "c-1", "lnbits"); err == nil {
		t.Fatalf("expected duplicate identity/content grant to be rejected")
	}
	if _, err := db.ExecContext(ctx, insertGrant, "g-3", "missing", "c-1", "btcpay"); err == nil {
		t.Fatalf("expected grant for unknown identity to be rejected")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_lightning_access.down.sql"); err != nil {
		t.Fatalf("rollback access migration: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('identities', 'access_grants')`,
	).Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected access tables to be dropped, found %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
