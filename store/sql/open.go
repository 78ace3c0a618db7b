package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-lightning-webhooks/core"
	"github.com/goliatone/go-lightning-webhooks/migrations"
)

// Open connects to the configured database and applies the embedded
// migrations for its dialect.
func Open(ctx context.Context, cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := cfg.GetDriver()
	var dialect schema.Dialect
	switch driver {
	case core.DriverPostgres:
		dialect = pgdialect.New()
	case core.DriverSQLite:
		dialect = sqlitedialect.New()
	default:
		return nil, core.ConfigurationFailure("database.driver", fmt.Sprintf("database.driver %q is not supported", driver))
	}
	migrationDialect, err := migrations.DialectForDriver(driver)
	if err != nil {
		return nil, core.ConfigurationFailure("database.driver", err.Error())
	}
	if strings.TrimSpace(cfg.GetServer()) == "" {
		return nil, core.ConfigurationFailure("database.url", "database.url is required")
	}

	sqlDB, err := sql.Open(driver, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == core.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	err = migrations.Register(ctx, migrationDialect, func(_ context.Context, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}
