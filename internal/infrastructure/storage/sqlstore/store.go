package sqlstore

import (
	"context"
	"database/sql"

	"golang.org/x/exp/slog"
)

// Store соединение с базой и ее диалект
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
}

func New(db *sql.DB, dialect Dialect, log *slog.Logger) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		log:     log.With(slog.String("component", "store"), slog.String("dialect", dialect.Name())),
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) args() *args {
	return &args{dialect: s.dialect}
}
