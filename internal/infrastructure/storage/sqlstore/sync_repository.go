package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"orgsync/internal/domain/entity"
	"orgsync/internal/domain/sync"
)

const operationColumns = `id, idempotency_key, organization_id, actor_id, device_id, entity_type, entity_id,
	intent, payload, client_timestamp, status, drift_ms, client_retry_count, server_version,
	conflict_fields, resolution_details, created_at, processed_at`

// SyncRepository реализация sync.Repository поверх database/sql
type SyncRepository struct {
	store *Store
	log   *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(store *Store, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		store: store,
		log:   log.With(slog.String("component", "sync_repository")),
	}
}

// ClaimOperation вставляет строку журнала одним оператором; уникальный индекс
// по idempotency_key гарантирует не более одного успешного захвата на ключ.
func (r *SyncRepository) ClaimOperation(ctx context.Context, op *sync.OperationLog) (bool, error) {
	a := r.store.args()
	query := fmt.Sprintf(`
		INSERT INTO sync_operations (id, idempotency_key, organization_id, actor_id, device_id,
			entity_type, entity_id, intent, payload, client_timestamp, status, drift_ms,
			client_retry_count, created_at)
		VALUES (%s)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		a.list(
			op.ID,
			op.IdempotencyKey,
			op.OrganizationID,
			op.ActorID,
			op.DeviceID,
			op.EntityType,
			op.EntityID,
			string(op.Intent),
			string(op.Payload),
			r.store.dialect.Time(op.ClientTimestamp),
			string(op.Status),
			op.DriftMS,
			op.ClientRetryCount,
			r.store.dialect.Time(op.CreatedAt),
		),
	)

	res, err := r.store.db.ExecContext(ctx, query, a.values...)
	if err != nil {
		if r.store.dialect.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim operation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim operation: %w", err)
	}
	return n == 1, nil
}

// FinalizeOperation переводит строку журнала в конечное состояние
func (r *SyncRepository) FinalizeOperation(ctx context.Context, op *sync.OperationLog) error {
	conflicts, err := nullJSON(op.ConflictFields, len(op.ConflictFields) == 0)
	if err != nil {
		return fmt.Errorf("failed to encode conflict fields: %w", err)
	}
	details, err := nullJSON(op.ResolutionDetails, op.ResolutionDetails == nil)
	if err != nil {
		return fmt.Errorf("failed to encode resolution details: %w", err)
	}

	var version any
	if op.ServerVersion != nil {
		version = *op.ServerVersion
	}

	a := r.store.args()
	query := fmt.Sprintf(`
		UPDATE sync_operations
		SET status = %s, server_version = %s, conflict_fields = %s,
			resolution_details = %s, processed_at = %s
		WHERE idempotency_key = %s`,
		a.add(string(op.Status)),
		a.add(version),
		a.add(conflicts),
		a.add(details),
		a.nullTime(op.ProcessedAt),
		a.add(op.IdempotencyKey),
	)

	if _, err := r.store.db.ExecContext(ctx, query, a.values...); err != nil {
		return fmt.Errorf("failed to finalize operation: %w", err)
	}
	return nil
}

// GetOperation возвращает строку журнала в пределах организации
func (r *SyncRepository) GetOperation(ctx context.Context, organizationID, idempotencyKey string) (*sync.OperationLog, error) {
	a := r.store.args()
	query := fmt.Sprintf(`SELECT %s FROM sync_operations WHERE organization_id = %s AND idempotency_key = %s`,
		operationColumns, a.add(organizationID), a.add(idempotencyKey))

	var (
		op                           sync.OperationLog
		intent, status               string
		payload, conflicts, details  []byte
		version                      sql.NullInt64
		clientTS, created, processed dbTime
	)

	err := r.store.db.QueryRowContext(ctx, query, a.values...).Scan(
		&op.ID,
		&op.IdempotencyKey,
		&op.OrganizationID,
		&op.ActorID,
		&op.DeviceID,
		&op.EntityType,
		&op.EntityID,
		&intent,
		&payload,
		&clientTS,
		&status,
		&op.DriftMS,
		&op.ClientRetryCount,
		&version,
		&conflicts,
		&details,
		&created,
		&processed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sync.ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	op.Intent = sync.Intent(intent)
	op.Status = sync.OperationStatus(status)
	op.Payload = json.RawMessage(payload)
	op.ClientTimestamp = clientTS.Time
	op.CreatedAt = created.Time
	op.ProcessedAt = processed.ptr()
	if version.Valid {
		v := version.Int64
		op.ServerVersion = &v
	}
	if len(conflicts) > 0 {
		if err := json.Unmarshal(conflicts, &op.ConflictFields); err != nil {
			return nil, fmt.Errorf("failed to decode conflict fields: %w", err)
		}
	}
	if len(details) > 0 {
		op.ResolutionDetails = &sync.Rejection{}
		if err := json.Unmarshal(details, op.ResolutionDetails); err != nil {
			return nil, fmt.Errorf("failed to decode resolution details: %w", err)
		}
	}

	return &op, nil
}

// GetEntity возвращает строку, в том числе надгробие
func (r *SyncRepository) GetEntity(ctx context.Context, d *entity.Descriptor, organizationID, id string) (*entity.Entity, error) {
	a := r.store.args()
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = %s AND id = %s`,
		entityColumns(d), d.Table, a.add(organizationID), a.add(id))

	e, err := scanEntity(d, r.store.db.QueryRowContext(ctx, query, a.values...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sync.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", d.Name, err)
	}
	return e, nil
}

// InsertEntity создает строку; конфликт первичного ключа означает проигранную гонку создания
func (r *SyncRepository) InsertEntity(ctx context.Context, d *entity.Descriptor, e *entity.Entity) error {
	stamps, err := encodeStamps(d, e)
	if err != nil {
		return fmt.Errorf("failed to encode field timestamps: %w", err)
	}

	a := r.store.args()
	values := []string{
		a.add(e.OrganizationID),
		a.add(e.ID),
		a.add(e.SyncVersion),
		a.time(e.CreatedAt),
		a.time(e.UpdatedAt),
		a.nullTime(e.DeletedAt),
		a.add(e.LastModifiedBy),
		a.add(e.DeviceID),
		a.add(stamps),
	}
	for _, key := range d.Keys() {
		values = append(values, a.add(r.store.encodeValue(e.Values[key])))
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, d.Table, entityColumns(d), strings.Join(values, ", "))
	if _, err := r.store.db.ExecContext(ctx, query, a.values...); err != nil {
		if r.store.dialect.IsUniqueViolation(err) {
			return sync.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert %s: %w", d.Name, err)
	}
	return nil
}

// UpdateEntity перезаписывает строку при совпадении версии (compare-and-swap)
func (r *SyncRepository) UpdateEntity(ctx context.Context, d *entity.Descriptor, e *entity.Entity, expectedVersion int64) error {
	stamps, err := encodeStamps(d, e)
	if err != nil {
		return fmt.Errorf("failed to encode field timestamps: %w", err)
	}

	a := r.store.args()
	set := []string{
		"sync_version = " + a.add(e.SyncVersion),
		"updated_at = " + a.time(e.UpdatedAt),
		"deleted_at = " + a.nullTime(e.DeletedAt),
		"last_modified_by = " + a.add(e.LastModifiedBy),
		"device_id = " + a.add(e.DeviceID),
		"field_timestamps = " + a.add(stamps),
	}
	for _, key := range d.Keys() {
		set = append(set, key+" = "+a.add(r.store.encodeValue(e.Values[key])))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE organization_id = %s AND id = %s AND sync_version = %s`,
		d.Table, strings.Join(set, ", "), a.add(e.OrganizationID), a.add(e.ID), a.add(expectedVersion))

	res, err := r.store.db.ExecContext(ctx, query, a.values...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", d.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", d.Name, err)
	}
	if n == 0 {
		return sync.ErrVersionConflict
	}
	return nil
}

// ListChanges строки организации строго после курсора в порядке (updated_at, id).
// Для типов, идущих в потоке после типа курсора, строка с тем же (updated_at, id)
// еще не выдавалась и включается.
func (r *SyncRepository) ListChanges(ctx context.Context, d *entity.Descriptor, organizationID string, after *sync.Cursor, limit int) ([]*entity.Entity, error) {
	a := r.store.args()
	where := "organization_id = " + a.add(organizationID)
	if after != nil {
		ts := a.time(after.Timestamp)
		id := a.add(after.EntityID)
		cmp := ">"
		if after.InclusiveID(d.Name) {
			cmp = ">="
		}
		where += fmt.Sprintf(" AND (updated_at > %s OR (updated_at = %s AND id %s %s))", ts, ts, cmp, id)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY updated_at, id LIMIT %s`,
		entityColumns(d), d.Table, where, a.add(limit))

	rows, err := r.store.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s changes: %w", d.Name, err)
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		e, err := scanEntity(d, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", d.Name, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s changes: %w", d.Name, err)
	}

	return out, nil
}

// PurgeTombstones физически удаляет надгробия старше before
func (r *SyncRepository) PurgeTombstones(ctx context.Context, d *entity.Descriptor, before time.Time) (int64, error) {
	a := r.store.args()
	query := fmt.Sprintf(`DELETE FROM %s WHERE deleted_at IS NOT NULL AND deleted_at < %s`, d.Table, a.time(before))

	res, err := r.store.db.ExecContext(ctx, query, a.values...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s tombstones: %w", d.Name, err)
	}
	return res.RowsAffected()
}

func nullJSON(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

var _ sync.Repository = (*SyncRepository)(nil)
