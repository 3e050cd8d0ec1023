package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Pinger проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db         Pinger
	log        *slog.Logger
	middleware huma.Middlewares
	now        func() time.Time
}

func NewHandler(db Pinger, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		db:         db,
		log:        log,
		middleware: middleware,
		now:        time.Now,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	database := "not configured"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.log.Error("database ping failed", slog.String("error", err.Error()))
			return nil, huma.Error503ServiceUnavailable("database unavailable")
		}
		database = "up"
	}

	return &Output{
		Body: Response{
			Status:     "OK",
			Database:   database,
			ServerTime: h.now().UTC(),
		},
	}, nil
}
