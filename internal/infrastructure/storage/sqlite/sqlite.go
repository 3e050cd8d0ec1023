package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"orgsync/internal/infrastructure/storage/sqlstore"
)

// Dialect диалект SQLite. Время хранится как микросекунды Unix.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Placeholder(n int) string { return "?" + strconv.Itoa(n) }

func (Dialect) Time(t time.Time) any { return sqlstore.UnixMicro(t) }

func (Dialect) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Open открывает файл базы. Схему создает migration, а не Open.
func Open(path string, log *slog.Logger) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return sqlstore.New(db, Dialect{}, log), nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

var _ sqlstore.Dialect = Dialect{}
