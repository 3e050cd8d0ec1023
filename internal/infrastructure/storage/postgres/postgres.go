package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/exp/slog"

	"orgsync/internal/infrastructure/storage/sqlstore"
)

// uniqueViolation SQLSTATE unique_violation
const uniqueViolation = "23505"

// Dialect диалект PostgreSQL
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Dialect) Time(t time.Time) any { return sqlstore.Native(t) }

func (Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Storage пул pgx и database/sql поверх него
type Storage struct {
	*sqlstore.Store
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURI string, log *slog.Logger) (*Storage, error) {
	pool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &Storage{
		Store: sqlstore.New(stdlib.OpenDBFromPool(pool), Dialect{}, log),
		pool:  pool,
	}, nil
}

func (s *Storage) Close() error {
	err := s.Store.Close()
	s.pool.Close()
	return err
}

func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

var _ sqlstore.Dialect = Dialect{}
