package migration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Blank imports required for database driver registration for migrations
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"orgsync/internal/config"
	"orgsync/migrations"
)

const sqliteScheme = "sqlite3://"

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Migrator интерфейс для самой библиотеки migrate.Migrate
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine фабрика мигратора, в тестах подменяется
type MigrationEngine func(src source.Driver, databaseURL string) (Migrator, error)

type Migration struct {
	cfg    config.DB
	engine MigrationEngine
}

func NewMigration(cfg config.DB, engine MigrationEngine) *Migration {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Migration{
		cfg:    cfg,
		engine: engine,
	}
}

// DefaultEngine реальная реализация: встроенные миграции и собственное соединение с базой
func DefaultEngine(src source.Driver, databaseURL string) (Migrator, error) {
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

// Target каталог миграций и URL базы для драйвера из конфигурации
func Target(cfg config.DB) (dir, databaseURL string, err error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return "postgres", cfg.DatabaseURI, nil
	case config.DriverSQLite:
		uri := cfg.DatabaseURI
		if !strings.HasPrefix(uri, sqliteScheme) {
			uri = sqliteScheme + uri
		}
		return "sqlite", uri, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
}

func (mg *Migration) Up() (err error) {
	dir, databaseURL, err := Target(mg.cfg)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := mg.engine(src, databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}
