package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"orgsync/internal/app/client/config"
	"orgsync/internal/domain/sync"
)

var ErrInvalidInput = errors.New("некорректные данные мутации")

type App struct {
	config  *config.Config
	log     *slog.Logger
	http    *httpClient
	storage *SQLiteStorage
	sync    *SyncService
	device  string
	clock   func() time.Time
}

// Status сводка локального состояния устройства
type Status struct {
	DeviceID      string `json:"device_id"`
	Authenticated bool   `json:"authenticated"`
	Pending       int    `json:"pending"`
	Failed        int    `json:"failed"`
	Cursor        string `json:"cursor"`
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	storage, err := NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	device, err := storage.State(ctx, stateDeviceID)
	if err != nil {
		storage.Close()
		return nil, err
	}
	if device == "" {
		device = uuid.NewString()
		if err := storage.SetState(ctx, stateDeviceID, device); err != nil {
			storage.Close()
			return nil, err
		}
	}

	httpCl := NewHTTPClient(cfg.BaseURL(), cfg.Timeout, log)
	if token, err := storage.State(ctx, stateToken); err == nil && token != "" {
		httpCl.SetToken(token)
		log.Debug("Токен загружен из локального хранилища")
	}

	return &App{
		config:  cfg,
		log:     log,
		http:    httpCl,
		storage: storage,
		sync:    NewSyncService(storage, httpCl, device, cfg.PushBatchSize, log),
		device:  device,
		clock:   time.Now,
	}, nil
}

// Login входит в организацию и сохраняет токен для последующих запусков
func (a *App) Login(ctx context.Context, organizationID, login, password string) error {
	resp, err := a.http.Login(ctx, loginRequest{
		OrganizationID: organizationID,
		Login:          login,
		Password:       password,
		DeviceID:       a.device,
	})
	if err != nil {
		return err
	}

	return a.storage.SetState(ctx, stateToken, resp.Token)
}

// Logout забывает токен; очередь и реплика сохраняются
func (a *App) Logout(ctx context.Context) error {
	a.http.SetToken("")
	return a.storage.SetState(ctx, stateToken, "")
}

func (a *App) Create(ctx context.Context, entityType, entityID string, data map[string]any) (string, error) {
	return a.enqueue(ctx, sync.IntentCreate, entityType, entityID, data, nil)
}

// Update ставит в очередь изменение полей. baseVersion включает
// оптимистическую проверку версии на сервере.
func (a *App) Update(ctx context.Context, entityType, entityID string, data map[string]any, baseVersion *int64) (string, error) {
	return a.enqueue(ctx, sync.IntentUpdate, entityType, entityID, data, baseVersion)
}

func (a *App) Delete(ctx context.Context, entityType, entityID string) (string, error) {
	return a.enqueue(ctx, sync.IntentDelete, entityType, entityID, nil, nil)
}

func (a *App) enqueue(ctx context.Context, intent sync.Intent, entityType, entityID string, data map[string]any, baseVersion *int64) (string, error) {
	if entityType == "" || entityID == "" {
		return "", fmt.Errorf("%w: нужны тип и id", ErrInvalidInput)
	}

	op := sync.Operation{
		IdempotencyKey:  uuid.NewString(),
		EntityType:      entityType,
		EntityID:        entityID,
		Intent:          intent,
		ClientTimestamp: a.clock().UTC(),
		BaseVersion:     baseVersion,
		Data:            data,
	}
	if err := a.storage.Enqueue(ctx, op); err != nil {
		return "", err
	}

	a.log.Debug("Мутация поставлена в очередь",
		slog.String("idempotency_key", op.IdempotencyKey),
		slog.String("intent", string(intent)),
	)
	return op.IdempotencyKey, nil
}

func (a *App) Get(ctx context.Context, entityType, entityID string) (*Item, error) {
	return a.storage.Get(ctx, entityType, entityID)
}

func (a *App) List(ctx context.Context, entityType string) ([]Item, error) {
	return a.storage.List(ctx, entityType)
}

func (a *App) Sync(ctx context.Context) (*SyncResult, error) {
	return a.sync.Sync(ctx)
}

// Failed мутации, отклоненные сервером
func (a *App) Failed(ctx context.Context) ([]PendingOp, error) {
	return a.storage.Failed(ctx)
}

func (a *App) Status(ctx context.Context) (*Status, error) {
	pending, err := a.storage.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	failed, err := a.storage.Failed(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := a.storage.State(ctx, stateCursor)
	if err != nil {
		return nil, err
	}
	token, err := a.storage.State(ctx, stateToken)
	if err != nil {
		return nil, err
	}

	return &Status{
		DeviceID:      a.device,
		Authenticated: token != "",
		Pending:       pending,
		Failed:        len(failed),
		Cursor:        cursor,
	}, nil
}

func (a *App) HealthCheck(ctx context.Context) error {
	return a.http.HealthCheck(ctx)
}

func (a *App) DeviceID() string {
	return a.device
}

func (a *App) Close() error {
	return a.storage.Close()
}
