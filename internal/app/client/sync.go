package client

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"orgsync/internal/domain/sync"
)

var ErrSyncInProgress = errors.New("синхронизация уже выполняется")

const pullPageSize = 200

// transport сторона сервера, с которой синхронизируется устройство
type transport interface {
	Push(ctx context.Context, req sync.PushRequest) (*sync.PushResponse, error)
	Pull(ctx context.Context, since string, limit int) (*sync.Page, error)
	Operation(ctx context.Context, key string) (*sync.OperationLog, error)
}

// SyncService отправляет очередь и подтягивает поток изменений
type SyncService struct {
	storage   *SQLiteStorage
	transport transport
	log       *slog.Logger
	batchSize int
	deviceID  string

	mu        gosync.Mutex
	isSyncing bool
}

// SyncError мутация, которую сервер окончательно отклонил
type SyncError struct {
	IdempotencyKey string `json:"idempotency_key"`
	EntityType     string `json:"entity_type"`
	EntityID       string `json:"entity_id"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

// SyncResult результат синхронизации
type SyncResult struct {
	Uploaded   int           `json:"uploaded"`
	Duplicates int           `json:"duplicates"`
	Conflicts  int           `json:"conflicts"`
	Deferred   int           `json:"deferred"`
	Downloaded int           `json:"downloaded"`
	Errors     []SyncError   `json:"errors"`
	Duration   time.Duration `json:"duration"`
}

func NewSyncService(storage *SQLiteStorage, transport transport, deviceID string, batchSize int, log *slog.Logger) *SyncService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SyncService{
		storage:   storage,
		transport: transport,
		log:       log.With(slog.String("component", "client_sync")),
		batchSize: batchSize,
		deviceID:  deviceID,
	}
}

// Sync отправляет накопленные мутации и затем дочитывает поток до конца.
// Ошибка транспорта при push прерывает синхронизацию: очередь сохраняется
// и будет отправлена повторно с теми же ключами.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	start := time.Now()
	result := &SyncResult{Errors: []SyncError{}}

	if err := s.push(ctx, result); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("push: %w", err)
	}

	if err := s.pull(ctx, result); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("pull: %w", err)
	}

	result.Duration = time.Since(start)
	s.log.Info("Синхронизация завершена",
		slog.Int("uploaded", result.Uploaded),
		slog.Int("downloaded", result.Downloaded),
		slog.Int("rejected", len(result.Errors)),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

func (s *SyncService) push(ctx context.Context, result *SyncResult) error {
	var after int64

	for {
		batch, err := s.storage.Pending(ctx, after, s.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		after = batch[len(batch)-1].Seq

		req := sync.PushRequest{DeviceID: s.deviceID, Operations: make([]sync.Operation, len(batch))}
		keys := make([]string, len(batch))
		for i, p := range batch {
			req.Operations[i] = p.Op
			keys[i] = p.Op.IdempotencyKey
		}

		resp, err := s.transport.Push(ctx, req)
		if err != nil {
			if retryErr := s.storage.Retry(ctx, keys...); retryErr != nil {
				s.log.Error("Не удалось обновить счетчик попыток", slog.String("error", retryErr.Error()))
			}
			return err
		}
		if len(resp.Results) != len(batch) {
			return fmt.Errorf("сервер вернул %d результатов на %d операций", len(resp.Results), len(batch))
		}

		for i, res := range resp.Results {
			if err := s.settle(ctx, batch[i], res, result); err != nil {
				return err
			}
		}
	}
}

// settle переносит ответ сервера на запись очереди.
// Ключ, на котором сервер вернул внутреннюю ошибку, занят навсегда:
// запись остается в очереди под новым ключом.
func (s *SyncService) settle(ctx context.Context, p PendingOp, res sync.Result, result *SyncResult) error {
	key := p.Op.IdempotencyKey

	switch res.Status {
	case sync.ResultApplied:
		result.Uploaded++
		result.Conflicts += len(res.ConflictFields)
		return s.storage.Complete(ctx, key)
	case sync.ResultDuplicate:
		return s.verify(ctx, p, result)
	}

	if res.ErrorCode == sync.CodeInternal {
		return s.postpone(ctx, p, result, true)
	}
	return s.fail(ctx, p, string(res.ErrorCode), res.ErrorMessage, result)
}

// verify выясняет по журналу сервера, чем закончилась первая попытка с этим ключом
func (s *SyncService) verify(ctx context.Context, p PendingOp, result *SyncResult) error {
	logged, err := s.transport.Operation(ctx, p.Op.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("operation %s: %w", p.Op.IdempotencyKey, err)
	}

	switch logged.Status {
	case sync.OperationApplied:
		result.Duplicates++
		return s.storage.Complete(ctx, p.Op.IdempotencyKey)
	case sync.OperationRejected:
		rejection := logged.ResolutionDetails
		if rejection == nil || rejection.Code == sync.CodeInternal {
			return s.postpone(ctx, p, result, true)
		}
		return s.fail(ctx, p, string(rejection.Code), rejection.Message, result)
	}

	// операция еще обрабатывается сервером
	return s.postpone(ctx, p, result, false)
}

func (s *SyncService) postpone(ctx context.Context, p PendingOp, result *SyncResult, rekey bool) error {
	result.Deferred++
	if !rekey {
		return s.storage.Retry(ctx, p.Op.IdempotencyKey)
	}

	newKey := uuid.NewString()
	s.log.Warn("Мутация будет отправлена с новым ключом",
		slog.String("idempotency_key", p.Op.IdempotencyKey),
		slog.String("new_key", newKey),
	)
	return s.storage.Rekey(ctx, p.Op.IdempotencyKey, newKey)
}

func (s *SyncService) fail(ctx context.Context, p PendingOp, code, message string, result *SyncResult) error {
	key := p.Op.IdempotencyKey
	result.Errors = append(result.Errors, SyncError{
		IdempotencyKey: key,
		EntityType:     p.Op.EntityType,
		EntityID:       p.Op.EntityID,
		Code:           code,
		Message:        message,
	})
	s.log.Warn("Сервер отклонил мутацию",
		slog.String("idempotency_key", key),
		slog.String("code", code),
	)
	return s.storage.Fail(ctx, key, code, message)
}

func (s *SyncService) pull(ctx context.Context, result *SyncResult) error {
	cursor, err := s.storage.State(ctx, stateCursor)
	if err != nil {
		return err
	}

	for {
		page, err := s.transport.Pull(ctx, cursor, pullPageSize)
		if err != nil {
			return err
		}

		if err := s.storage.ApplyPage(ctx, page.Changes, page.Cursor); err != nil {
			return err
		}
		result.Downloaded += len(page.Changes)
		cursor = page.Cursor

		if !page.HasMore {
			return nil
		}
	}
}
