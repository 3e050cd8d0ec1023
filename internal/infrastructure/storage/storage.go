package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/slog"

	"orgsync/internal/config"
	"orgsync/internal/infrastructure/storage/postgres"
	"orgsync/internal/infrastructure/storage/sqlite"
	"orgsync/internal/infrastructure/storage/sqlstore"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Storage открытое хранилище выбранного драйвера и его репозитории
type Storage struct {
	*sqlstore.Store
	closer io.Closer
	log    *slog.Logger
}

// Open подключается к базе по DB_DRIVER. Схема должна быть уже накатана.
func Open(ctx context.Context, cfg config.DB, log *slog.Logger) (*Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURI, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &Storage{Store: pg.Store, closer: pg, log: log}, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.DatabaseURI, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Storage{Store: store, closer: store, log: log}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

func (s *Storage) Close() error {
	return s.closer.Close()
}

func (s *Storage) Members() *sqlstore.MemberRepository {
	return sqlstore.NewMemberRepository(s.Store, s.log)
}

func (s *Storage) Sessions() *sqlstore.SessionRepository {
	return sqlstore.NewSessionRepository(s.Store, s.log)
}

func (s *Storage) Sync() *sqlstore.SyncRepository {
	return sqlstore.NewSyncRepository(s.Store, s.log)
}
