// Package migrate applies the embedded SQL migrations for the postgres store.
package migrate

import (
	"context"
	"database/sql"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/timetable-client/migrations"
)

// Up opens dsn through the pgx stdlib driver and runs every pending migration.
func Up(ctx context.Context, dsn string, log *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return Apply(ctx, db, migrations.FS, log)
}

// Apply runs migrations from fsys against db.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return err
	}
	res, err := p.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range res {
		log.Info("migration applied",
			zap.String("file", r.Source.Path),
			zap.Duration("dur", r.Duration),
		)
	}
	return nil
}
