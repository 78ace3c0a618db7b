// Package migrations resolves the embedded SQL migrations for the database
// dialect a deployment runs on.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	lightning "github.com/goliatone/go-lightning-webhooks"
	"github.com/goliatone/go-lightning-webhooks/core"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootDir = "data/sql/migrations"

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case core.DriverPostgres:
		return DialectPostgres, nil
	case core.DriverSQLite, DialectSQLite:
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// ForDialect returns the migrations for dialect. Postgres files sit at the
// top of the migrations directory and SQLite files under sqlite/. Every up
// migration must have a matching down migration.
func ForDialect(dialect string, sources ...fs.FS) (fs.FS, error) {
	root := lightning.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	dir := rootDir
	switch strings.TrimSpace(strings.ToLower(dialect)) {
	case DialectPostgres:
	case DialectSQLite:
		dir = rootDir + "/" + DialectSQLite
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	fsys, err := fs.Sub(root, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", dir, err)
	}
	if _, err := Names(fsys); err != nil {
		return nil, fmt.Errorf("migrations: %s: %w", dialect, err)
	}
	return fsys, nil
}

// Names lists the migration versions in fsys in apply order, without the
// up/down suffix.
func Names(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*"+upSuffix)
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *%s files", upSuffix)
	}
	sort.Strings(ups)

	names := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, upSuffix)
		if _, err := fs.Stat(fsys, name+downSuffix); err != nil {
			return nil, fmt.Errorf("%s has no %s pair", up, downSuffix)
		}
		names = append(names, name)
	}
	return names, nil
}

// Register hands the migrations for dialect to register. A persistence
// client's RegisterSQLMigrations is the usual target.
func Register(ctx context.Context, dialect string, register func(context.Context, fs.FS) error) error {
	if register == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	fsys, err := ForDialect(dialect)
	if err != nil {
		return err
	}
	if err := register(ctx, fsys); err != nil {
		return fmt.Errorf("migrations: register %s: %w", dialect, err)
	}
	return nil
}
