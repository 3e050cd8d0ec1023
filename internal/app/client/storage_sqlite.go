package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"orgsync/internal/domain/sync"
)

var ErrNotFound = errors.New("запись не найдена")

const (
	stateCursor   = "cursor"
	stateToken    = "token"
	stateDeviceID = "device_id"
)

// SQLiteStorage локальное хранилище устройства: очередь, реплика и состояние
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории данных: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}

	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			idempotency_key TEXT NOT NULL UNIQUE,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			intent TEXT NOT NULL,
			client_timestamp TEXT NOT NULL,
			base_version INTEGER,
			data TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			error_code TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, seq);

		CREATE TABLE IF NOT EXISTS replica (
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL DEFAULT '{}',
			updated_at TEXT NOT NULL,
			PRIMARY KEY (entity_type, entity_id)
		);

		CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)

	return err
}

// Enqueue ставит мутацию в очередь и сразу применяет ее к локальной реплике
func (s *SQLiteStorage) Enqueue(ctx context.Context, op sync.Operation) error {
	var data sql.NullString
	if op.Data != nil {
		raw, err := json.Marshal(op.Data)
		if err != nil {
			return fmt.Errorf("ошибка сериализации данных: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox (idempotency_key, entity_type, entity_id, intent, client_timestamp, base_version, data, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.IdempotencyKey, op.EntityType, op.EntityID, string(op.Intent),
		op.ClientTimestamp.UTC().Format(time.RFC3339Nano), op.BaseVersion, data, op.RetryCount)
	if err != nil {
		return fmt.Errorf("ошибка записи в очередь: %w", err)
	}

	if err := applyLocal(ctx, tx, op); err != nil {
		return err
	}

	return tx.Commit()
}

func applyLocal(ctx context.Context, tx *sql.Tx, op sync.Operation) error {
	item, err := getItem(ctx, tx, op.EntityType, op.EntityID)
	if errors.Is(err, ErrNotFound) {
		item = &Item{EntityType: op.EntityType, EntityID: op.EntityID, Data: map[string]any{}}
	} else if err != nil {
		return err
	}

	switch op.Intent {
	case sync.IntentDelete:
		if item.Version == 0 && len(item.Data) == 0 {
			return nil
		}
		item.Deleted = true
	default:
		item.Deleted = false
		for key, v := range op.Data {
			item.Data[key] = v
		}
	}
	item.UpdatedAt = op.ClientTimestamp

	return putItem(ctx, tx, item)
}

// Pending возвращает ожидающие записи очереди с seq > after по порядку
func (s *SQLiteStorage) Pending(ctx context.Context, after int64, limit int) ([]PendingOp, error) {
	return s.queryOutbox(ctx, `
		SELECT seq, idempotency_key, entity_type, entity_id, intent, client_timestamp, base_version, data,
		       retry_count, status, error_code, error_message
		FROM outbox
		WHERE status = 'pending' AND seq > ?
		ORDER BY seq
		LIMIT ?
	`, after, limit)
}

// Failed возвращает мутации, окончательно отклоненные сервером
func (s *SQLiteStorage) Failed(ctx context.Context) ([]PendingOp, error) {
	return s.queryOutbox(ctx, `
		SELECT seq, idempotency_key, entity_type, entity_id, intent, client_timestamp, base_version, data,
		       retry_count, status, error_code, error_message
		FROM outbox
		WHERE status = 'failed'
		ORDER BY seq
	`)
}

func (s *SQLiteStorage) queryOutbox(ctx context.Context, query string, args ...any) ([]PendingOp, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var ops []PendingOp
	for rows.Next() {
		var (
			p           PendingOp
			intent      string
			clientTS    string
			baseVersion sql.NullInt64
			data        sql.NullString
			status      string
		)
		if err := rows.Scan(&p.Seq, &p.Op.IdempotencyKey, &p.Op.EntityType, &p.Op.EntityID, &intent,
			&clientTS, &baseVersion, &data, &p.Op.RetryCount, &status, &p.ErrorCode, &p.ErrorMessage); err != nil {
			return nil, fmt.Errorf("ошибка сканирования очереди: %w", err)
		}

		p.Op.Intent = sync.Intent(intent)
		p.Status = OutboxStatus(status)
		if p.Op.ClientTimestamp, err = time.Parse(time.RFC3339Nano, clientTS); err != nil {
			return nil, fmt.Errorf("ошибка парсинга времени: %w", err)
		}
		if baseVersion.Valid {
			v := baseVersion.Int64
			p.Op.BaseVersion = &v
		}
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &p.Op.Data); err != nil {
				return nil, fmt.Errorf("ошибка парсинга данных: %w", err)
			}
		}

		ops = append(ops, p)
	}

	return ops, rows.Err()
}

// Complete снимает запись с очереди как примененную
func (s *SQLiteStorage) Complete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox SET status = 'applied' WHERE idempotency_key = ?`, key)
	return err
}

// Fail снимает запись с очереди как отклоненную сервером
func (s *SQLiteStorage) Fail(ctx context.Context, key, code, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET status = 'failed', error_code = ?, error_message = ?
		WHERE idempotency_key = ?
	`, code, message, key)
	return err
}

// Retry оставляет записи в очереди и увеличивает их счетчик попыток
func (s *SQLiteStorage) Retry(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `UPDATE outbox SET retry_count = retry_count + 1 WHERE idempotency_key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

// Rekey выдает записи новый ключ идемпотентности: сервер уже занял старый
// ключ неудачной попыткой и не применит его повторно
func (s *SQLiteStorage) Rekey(ctx context.Context, oldKey, newKey string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET idempotency_key = ?, retry_count = retry_count + 1
		WHERE idempotency_key = ? AND status = 'pending'
	`, newKey, oldKey)
	if err != nil {
		return fmt.Errorf("ошибка смены ключа: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета очереди: %w", err)
	}
	return count, nil
}

// ApplyPage применяет страницу pull и сохраняет курсор в одной транзакции
func (s *SQLiteStorage) ApplyPage(ctx context.Context, changes []sync.Change, cursor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range changes {
		item := &Item{
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
			Version:    c.Version,
			Deleted:    c.Operation == sync.ChangeDelete,
			Data:       c.Data,
			UpdatedAt:  c.UpdatedAt,
		}
		if item.Data == nil {
			item.Data = map[string]any{}
		}
		if err := putItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := setState(ctx, tx, stateCursor, cursor); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) Get(ctx context.Context, entityType, entityID string) (*Item, error) {
	item, err := getItem(ctx, s.db, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, ErrNotFound
	}
	return item, nil
}

// List живые сущности типа в порядке id
func (s *SQLiteStorage) List(ctx context.Context, entityType string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, version, deleted, data, updated_at
		FROM replica
		WHERE entity_type = ? AND deleted = 0
		ORDER BY entity_id
	`, entityType)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

func (s *SQLiteStorage) State(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStorage) SetState(ctx context.Context, key, value string) error {
	return setState(ctx, s.db, key, value)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func setState(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("ошибка сохранения состояния %s: %w", key, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*Item, error) {
	var (
		item      Item
		data      string
		updatedAt string
	)
	if err := row.Scan(&item.EntityType, &item.EntityID, &item.Version, &item.Deleted, &data, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &item.Data); err != nil {
		return nil, fmt.Errorf("ошибка парсинга данных: %w", err)
	}
	item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &item, nil
}

func getItem(ctx context.Context, db execer, entityType, entityID string) (*Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx, `
		SELECT entity_type, entity_id, version, deleted, data, updated_at
		FROM replica
		WHERE entity_type = ? AND entity_id = ?
	`, entityType, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return item, nil
}

func putItem(ctx context.Context, db execer, item *Item) error {
	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации данных: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO replica (entity_type, entity_id, version, deleted, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			version = excluded.version,
			deleted = excluded.deleted,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, item.EntityType, item.EntityID, item.Version, item.Deleted, string(data), item.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}
	return nil
}
