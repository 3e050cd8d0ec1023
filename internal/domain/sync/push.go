package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"orgsync/internal/domain/entity"
	"orgsync/internal/utils/logger"
)

// outcome результат диспетчеризации: либо применено, либо доменный отказ
type outcome struct {
	version   int64
	conflicts []ConflictField
	rejection *Rejection
}

func applied(version int64, conflicts []ConflictField) outcome {
	return outcome{version: version, conflicts: conflicts}
}

func rejected(code ErrorCode, message string, details map[string]any) outcome {
	return outcome{rejection: &Rejection{Code: code, Message: message, Details: details}}
}

func (r *Result) reject(code ErrorCode, message string, details map[string]any) Result {
	r.Status = ResultRejected
	r.ErrorCode = code
	r.ErrorMessage = message
	r.ErrorDetails = details
	return *r
}

// Push обрабатывает пакет. Операции независимы: внутренний сбой одной операции
// фиксируется в ее результате как INTERNAL_ERROR, остальные продолжают обрабатываться.
func (s *Service) Push(ctx context.Context, p Principal, req PushRequest) (*PushResponse, error) {
	if len(req.Operations) > s.config.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d operations, limit %d", ErrBatchTooLarge, len(req.Operations), s.config.MaxBatchSize)
	}

	results := make([]Result, 0, len(req.Operations))
	for _, op := range req.Operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.Process(ctx, p, req.DeviceID, op)
		if err != nil {
			s.log.Error("sync operation failed",
				slog.String("idempotency_key", op.IdempotencyKey),
				slog.String("entity_type", op.EntityType),
				slog.String("entity_id", op.EntityID),
				logger.Err(err),
			)
		}
		results = append(results, res)
	}

	return &PushResponse{Results: results}, nil
}

// Process применяет одну операцию не более одного раза на ключ идемпотентности.
// Доменные отказы возвращаются в Result; error означает внутренний сбой,
// при этом Result уже содержит INTERNAL_ERROR.
func (s *Service) Process(ctx context.Context, p Principal, deviceID string, op Operation) (Result, error) {
	now := s.now()
	res := Result{IdempotencyKey: op.IdempotencyKey, ServerTimestamp: now}

	d, rej := s.validate(op)
	if rej != nil {
		return res.reject(rej.Code, rej.Message, rej.Details), nil
	}

	drift := now.Sub(op.ClientTimestamp)
	if drift > s.config.DriftWarn || -drift > s.config.DriftWarn {
		s.log.Warn("client clock drift",
			slog.String("device_id", deviceID),
			slog.Duration("drift", drift),
		)
	}

	payload, err := json.Marshal(op.Data)
	if err != nil {
		return res.reject(CodeValidation, "data is not serializable", nil), nil
	}

	row := &OperationLog{
		ID:               uuid.NewString(),
		IdempotencyKey:   op.IdempotencyKey,
		OrganizationID:   p.OrganizationID,
		ActorID:          p.ActorID,
		DeviceID:         deviceID,
		EntityType:       op.EntityType,
		EntityID:         op.EntityID,
		Intent:           op.Intent,
		Payload:          payload,
		ClientTimestamp:  op.ClientTimestamp.UTC(),
		Status:           OperationPending,
		DriftMS:          drift.Milliseconds(),
		ClientRetryCount: op.RetryCount,
		CreatedAt:        now,
	}

	claimed, err := s.repo.ClaimOperation(ctx, row)
	if err != nil {
		res.reject(CodeInternal, "internal error", nil)
		return res, fmt.Errorf("claim operation: %w", err)
	}
	if !claimed {
		res.Status = ResultDuplicate
		return res, nil
	}

	out, err := s.dispatch(ctx, p, deviceID, d, op)
	if err != nil {
		row.Status = OperationRejected
		row.ResolutionDetails = &Rejection{Code: CodeInternal, Message: err.Error()}
		s.finalize(ctx, row)
		res.reject(CodeInternal, "internal error", nil)
		return res, fmt.Errorf("%s %s/%s: %w", op.Intent, op.EntityType, op.EntityID, err)
	}

	if out.rejection != nil {
		row.Status = OperationRejected
		row.ResolutionDetails = out.rejection
		s.finalize(ctx, row)

		s.log.Debug("sync operation rejected",
			slog.String("idempotency_key", op.IdempotencyKey),
			slog.String("code", string(out.rejection.Code)),
		)
		return res.reject(out.rejection.Code, out.rejection.Message, out.rejection.Details), nil
	}

	version := out.version
	row.Status = OperationApplied
	row.ServerVersion = &version
	row.ConflictFields = out.conflicts
	s.finalize(ctx, row)

	s.log.Debug("sync operation applied",
		slog.String("idempotency_key", op.IdempotencyKey),
		slog.String("entity_type", op.EntityType),
		slog.String("entity_id", op.EntityID),
		slog.Int64("version", version),
		slog.Int("conflicts", len(out.conflicts)),
	)

	res.Status = ResultApplied
	res.ServerVersion = &version
	res.ConflictFields = out.conflicts
	return res, nil
}

// finalize переводит строку журнала в конечное состояние. Мутация к этому моменту
// уже зафиксирована, поэтому сбой здесь только логируется.
func (s *Service) finalize(ctx context.Context, row *OperationLog) {
	processed := s.now()
	row.ProcessedAt = &processed

	if err := s.repo.FinalizeOperation(ctx, row); err != nil {
		s.log.Error("failed to finalize sync operation",
			slog.String("idempotency_key", row.IdempotencyKey),
			slog.String("status", string(row.Status)),
			logger.Err(err),
		)
	}
}

func (s *Service) validate(op Operation) (*entity.Descriptor, *Rejection) {
	if op.IdempotencyKey == "" {
		return nil, &Rejection{Code: CodeValidation, Message: "idempotency_key is required"}
	}

	d, err := s.registry.Resolve(op.EntityType)
	if err != nil {
		return nil, &Rejection{
			Code:    CodeUnknownEntityType,
			Message: fmt.Sprintf("unknown entity type %q", op.EntityType),
		}
	}

	if !op.Intent.Valid() {
		return nil, &Rejection{
			Code:    CodeInvalidIntent,
			Message: fmt.Sprintf("invalid intent %q", op.Intent),
		}
	}

	if op.EntityID == "" {
		return nil, &Rejection{Code: CodeValidation, Message: "entity_id is required"}
	}

	if op.ClientTimestamp.IsZero() {
		return nil, &Rejection{Code: CodeValidation, Message: "client_timestamp is required"}
	}

	return d, nil
}

// dispatch выполняет мутацию вне транзакции захвата. Проигранная гонка записи
// (смена версии или параллельное создание) перечитывает строку и повторяет попытку.
func (s *Service) dispatch(ctx context.Context, p Principal, deviceID string, d *entity.Descriptor, op Operation) (outcome, error) {
	if p.ReadOnly {
		return rejected(CodeForbidden, "role is not allowed to modify data", nil), nil
	}

	values, err := normalize(d, op.Data)
	if err != nil {
		var fe *fieldError
		details := map[string]any{}
		if errors.As(err, &fe) {
			details["field"] = fe.key
		}
		return rejected(CodeValidation, err.Error(), details), nil
	}

	for attempt := 0; attempt < s.config.MaxWriteRetries; attempt++ {
		var out outcome
		switch op.Intent {
		case IntentCreate:
			out, err = s.create(ctx, p, deviceID, d, op, values)
		case IntentUpdate:
			out, err = s.update(ctx, p, deviceID, d, op, values)
		case IntentDelete:
			out, err = s.delete(ctx, p, deviceID, d, op)
		}

		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrAlreadyExists) {
			s.log.Debug("entity write lost a race, retrying",
				slog.String("entity_type", d.Name),
				slog.String("entity_id", op.EntityID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		return out, err
	}

	return outcome{}, fmt.Errorf("%w: %d attempts", ErrWriteContention, s.config.MaxWriteRetries)
}

func (s *Service) create(ctx context.Context, p Principal, deviceID string, d *entity.Descriptor, op Operation, values map[string]any) (outcome, error) {
	existing, err := s.repo.GetEntity(ctx, d, p.OrganizationID, op.EntityID)
	if errors.Is(err, ErrNotFound) {
		now := s.now()
		e := entity.New(d, p.OrganizationID, op.EntityID)
		for key, v := range values {
			e.Values[key] = v
			e.Stamp(key, op.ClientTimestamp)
		}
		e.SyncVersion = 1
		e.CreatedAt = now
		e.UpdatedAt = now
		e.LastModifiedBy = p.ActorID
		e.DeviceID = deviceID

		if err := s.repo.InsertEntity(ctx, d, e); err != nil {
			return outcome{}, err
		}
		return applied(e.SyncVersion, nil), nil
	}
	if err != nil {
		return outcome{}, fmt.Errorf("get entity: %w", err)
	}

	// повторный create: воскрешение надгробия или идемпотентный upsert без LWW
	next := existing.Clone()
	next.DeletedAt = nil
	for key, v := range values {
		next.Values[key] = v
		next.Stamp(key, op.ClientTimestamp)
	}

	if err := s.write(ctx, p, deviceID, d, existing, next); err != nil {
		return outcome{}, err
	}
	return applied(next.SyncVersion, nil), nil
}

func (s *Service) update(ctx context.Context, p Principal, deviceID string, d *entity.Descriptor, op Operation, values map[string]any) (outcome, error) {
	existing, err := s.live(ctx, d, p.OrganizationID, op.EntityID)
	if errors.Is(err, ErrNotFound) {
		return rejected(CodeNotFound, fmt.Sprintf("%s %s not found", d.Name, op.EntityID), nil), nil
	}
	if err != nil {
		return outcome{}, err
	}

	if op.BaseVersion != nil && *op.BaseVersion != existing.SyncVersion {
		return rejected(CodeValidation, "base_version does not match current version", map[string]any{
			"base_version":    *op.BaseVersion,
			"current_version": existing.SyncVersion,
		}), nil
	}

	next := existing.Clone()
	var conflicts []ConflictField
	changed := false

	if d.FieldTimestamps {
		res := Resolve(d, next, values, op.ClientTimestamp)
		conflicts = res.Rejected
		changed = len(res.Applied) > 0
	} else {
		for key, v := range values {
			next.Values[key] = v
		}
		changed = len(values) > 0
	}

	if !changed {
		return applied(existing.SyncVersion, conflicts), nil
	}

	if err := s.write(ctx, p, deviceID, d, existing, next); err != nil {
		return outcome{}, err
	}
	return applied(next.SyncVersion, conflicts), nil
}

func (s *Service) delete(ctx context.Context, p Principal, deviceID string, d *entity.Descriptor, op Operation) (outcome, error) {
	existing, err := s.live(ctx, d, p.OrganizationID, op.EntityID)
	if errors.Is(err, ErrNotFound) {
		return rejected(CodeNotFound, fmt.Sprintf("%s %s not found", d.Name, op.EntityID), nil), nil
	}
	if err != nil {
		return outcome{}, err
	}

	next := existing.Clone()
	deletedAt := s.now()
	next.DeletedAt = &deletedAt

	if err := s.write(ctx, p, deviceID, d, existing, next); err != nil {
		return outcome{}, err
	}
	return applied(next.SyncVersion, nil), nil
}

// live как GetEntity, но надгробие считается отсутствующей строкой
func (s *Service) live(ctx context.Context, d *entity.Descriptor, organizationID, id string) (*entity.Entity, error) {
	e, err := s.repo.GetEntity(ctx, d, organizationID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}
	if e.IsDeleted() {
		return nil, ErrNotFound
	}
	return e, nil
}

// write сохраняет next поверх prev с проверкой версии
func (s *Service) write(ctx context.Context, p Principal, deviceID string, d *entity.Descriptor, prev, next *entity.Entity) error {
	next.SyncVersion = prev.SyncVersion + 1
	next.UpdatedAt = s.now()
	if next.DeletedAt != nil {
		next.UpdatedAt = *next.DeletedAt
	}
	next.LastModifiedBy = p.ActorID
	next.DeviceID = deviceID

	return s.repo.UpdateEntity(ctx, d, next, prev.SyncVersion)
}

type fieldError struct {
	key string
	err error
}

func (e *fieldError) Error() string { return e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

// normalize оставляет только бизнес-поля типа и приводит их значения к каноническим
func normalize(d *entity.Descriptor, data map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(data))
	for key, raw := range data {
		if entity.IsReserved(key) {
			continue
		}
		field, ok := d.Field(key)
		if !ok {
			continue
		}
		v, err := field.Coerce(raw)
		if err != nil {
			return nil, &fieldError{key: key, err: err}
		}
		values[key] = v
	}
	return values, nil
}

var _ Servicer = (*Service)(nil)
