// GET  /api/v1/health                   # Состояние сервиса и БД (публичный)
// POST /api/v1/auth/login               # Логин участника (публичный)
// POST /api/v1/sync/push                # Пакет мутаций (auth)
// GET  /api/v1/sync/pull                # Изменения после курсора (auth)
// GET  /api/v1/sync/operations/{key}    # Строка журнала операций (auth)
// GET  /api/v1/sync/entity-types        # Зарегистрированные типы (auth)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	authAPI "orgsync/internal/app/server/api/http/auth"
	healthAPI "orgsync/internal/app/server/api/http/health"
	"orgsync/internal/app/server/api/http/middleware"
	"orgsync/internal/app/server/api/http/middleware/auth"
	"orgsync/internal/app/server/api/http/middleware/logger"
	syncAPI "orgsync/internal/app/server/api/http/sync"
	"orgsync/internal/domain/member"
	"orgsync/internal/domain/session"
	"orgsync/internal/domain/sync"
)

// Services доменные сервисы, которые API выставляет наружу
type Services struct {
	DB       healthAPI.Pinger
	Members  member.Servicer
	Sessions session.Servicer
	Sync     sync.Servicer
}

type Handlers struct {
	Health *healthAPI.Handler
	Auth   *authAPI.Handler
	Sync   *syncAPI.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(services Services, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	config := huma.DefaultConfig("Orgsync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(services, log)
	h.Health.SetupRoutes(API)
	h.Auth.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(services Services, log *slog.Logger) *Handlers {
	authMW := auth.New(services.Sessions, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(services.DB, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	authHandler := authAPI.NewHandler(services.Members, services.Sessions, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	syncHandler := syncAPI.NewHandler(services.Sync, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Auth:   authHandler,
		Sync:   syncHandler,
	}
}
