package sync

import (
	"context"
	"time"

	"orgsync/internal/domain/entity"
)

// Repository хранилище журнала операций и синхронизируемых сущностей
type Repository interface {
	// ClaimOperation атомарно вставляет строку журнала в состоянии pending.
	// Возвращает false, если ключ идемпотентности уже занят.
	ClaimOperation(ctx context.Context, op *OperationLog) (bool, error)
	FinalizeOperation(ctx context.Context, op *OperationLog) error
	GetOperation(ctx context.Context, organizationID, idempotencyKey string) (*OperationLog, error)

	// GetEntity возвращает сущность, включая удаленные. ErrNotFound если строки нет.
	GetEntity(ctx context.Context, d *entity.Descriptor, organizationID, id string) (*entity.Entity, error)
	// InsertEntity возвращает ErrAlreadyExists при конфликте первичного ключа
	InsertEntity(ctx context.Context, d *entity.Descriptor, e *entity.Entity) error
	// UpdateEntity записывает e, только если текущая версия строки равна expectedVersion,
	// иначе ErrVersionConflict
	UpdateEntity(ctx context.Context, d *entity.Descriptor, e *entity.Entity, expectedVersion int64) error
	// ListChanges строки организации (включая удаленные) строго после курсора,
	// упорядоченные по (updated_at, id)
	ListChanges(ctx context.Context, d *entity.Descriptor, organizationID string, after *Cursor, limit int) ([]*entity.Entity, error)
	// PurgeTombstones физически удаляет строки, удаленные раньше before
	PurgeTombstones(ctx context.Context, d *entity.Descriptor, before time.Time) (int64, error)
}
