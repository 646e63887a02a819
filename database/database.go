// Package database opens the bun connection used by the identity
// repositories and applies the embedded goose migrations.
package database

import (
	"context"
	"database/sql"
	"strings"

	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Open connects to dsn. postgres:// and postgresql:// URLs go through pgx,
// anything else is treated as a SQLite data source.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	if dsn == "" {
		return nil, goerrors.New("database dsn is required", goerrors.CategoryValidation).
			WithTextCode(identity.TextCodeValidation)
	}

	var db *bun.DB
	if isPostgres(dsn) {
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open postgres connection")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open sqlite connection")
		}
		// every connection to :memory: gets its own database
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to reach database")
	}

	return db, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Migrate applies every pending migration for the dialect of db and
// returns how many ran
func Migrate(ctx context.Context, db *bun.DB, logger identity.Logger) (int, error) {
	gooseDialect, dir, err := migrationDialect(db)
	if err != nil {
		return 0, err
	}

	fsys, err := identity.DialectMigrationsFS(dir)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	provider, err := goose.NewProvider(gooseDialect, db.DB, fsys)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create migration provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	if logger != nil {
		for _, r := range results {
			logger.Info("applied migration %s in %s", r.Source.Path, r.Duration)
		}
	}

	return len(results), nil
}

func migrationDialect(db *bun.DB) (goose.Dialect, string, error) {
	switch db.Dialect().Name() {
	case dialect.PG:
		return goose.DialectPostgres, "postgres", nil
	case dialect.SQLite:
		return goose.DialectSQLite3, "sqlite", nil
	default:
		return "", "", goerrors.New("unsupported database dialect", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"dialect": db.Dialect().Name().String()})
	}
}
