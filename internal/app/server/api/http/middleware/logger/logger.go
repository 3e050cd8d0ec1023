package logger

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

type Logger struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Logger {
	return &Logger{
		log: log.With(slog.String("component", "http")),
	}
}

// Middleware пишет одну запись на запрос. Уровень зависит от статуса ответа:
// 5xx ERROR, 4xx WARN, остальное INFO.
func (l *Logger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)

		status := ctx.Status()
		attrs := []slog.Attr{
			slog.String("request_id", chimw.GetReqID(ctx.Context())),
			slog.String("method", ctx.Method()),
			slog.String("path", ctx.URL().Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", ctx.RemoteAddr()),
		}
		if op := ctx.Operation(); op != nil && op.OperationID != "" {
			attrs = append(attrs, slog.String("operation", op.OperationID))
		}

		l.log.LogAttrs(ctx.Context(), levelFor(status), "http request", attrs...)
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
