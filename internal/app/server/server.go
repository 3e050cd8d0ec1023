package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	"orgsync/internal/app/server/api"
	"orgsync/internal/config"
	"orgsync/internal/domain/entity"
	"orgsync/internal/domain/member"
	"orgsync/internal/domain/session"
	"orgsync/internal/domain/sync"
	"orgsync/internal/infrastructure/storage"
)

// App собранный сервер: хранилище, доменные сервисы и HTTP API
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	storage *storage.Storage

	Members  *member.Service
	Sessions *session.Service
	Sync     *sync.Service
}

// New подключается к хранилищу и собирает сервисы
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	st, err := storage.Open(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		storage:  st,
		Members:  member.NewService(st.Members(), member.NewPolicy(), log),
		Sessions: session.NewService(st.Sessions(), log, cfg.Session.TTL),
		Sync: sync.NewService(st.Sync(), entity.NewDefaultRegistry(), log, &sync.ServiceConfig{
			MaxBatchSize:     cfg.Sync.MaxBatchSize,
			DefaultPullLimit: cfg.Sync.DefaultPullLimit,
			MaxPullLimit:     cfg.Sync.MaxPullLimit,
			DriftWarn:        cfg.Sync.DriftWarn,
			MaxWriteRetries:  cfg.Sync.MaxWriteRetries,
		}),
	}, nil
}

// Handler HTTP API приложения
func (a *App) Handler() http.Handler {
	return api.New(api.Services{
		DB:       a.storage,
		Members:  a.Members,
		Sessions: a.Sessions,
		Sync:     a.Sync,
	}, a.log)
}

// Run обслуживает HTTP до отмены ctx, затем дожидается активных запросов
// не дольше ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.RunAddress,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

// PurgeExpired удаляет надгробия старше TOMBSTONE_RETENTION и истекшие сессии
func (a *App) PurgeExpired(ctx context.Context) (map[string]int64, int64, error) {
	tombstones, err := a.Sync.PurgeTombstones(ctx, a.cfg.Sync.TombstoneRetention)
	if err != nil {
		return tombstones, 0, err
	}

	sessions, err := a.Sessions.PurgeExpired(ctx)
	if err != nil {
		return tombstones, 0, err
	}

	return tombstones, sessions, nil
}

func (a *App) Close() error {
	return a.storage.Close()
}
