package database

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"homenet-monitor/internal/config"
	"homenet-monitor/internal/models"
)

var (
	_ models.Store = (*DB)(nil)
	_ models.Store = (*Postgres)(nil)
)

// Open returns the store selected by cfg with its schema in place.
func Open(ctx context.Context, cfg config.Database, clock clockwork.Clock) (models.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := New(cfg.Path, cfg.MaxConns, clock)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "postgres":
		pg, err := NewPostgres(ctx, cfg.DSN(), cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pg.InitSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
