package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"orgsync/internal/domain/member"
	"orgsync/internal/domain/session"
	"orgsync/internal/domain/sync"
)

// Auth проверяет bearer-токен и кладет в контекст личность вызывающего
type Auth struct {
	session session.Servicer
	log     *slog.Logger
}

func New(session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		session: session,
		log:     log.With(slog.String("component", "auth_middleware")),
	}
}

// Identity организация, участник и устройство текущей сессии
type Identity struct {
	Principal sync.Principal
	Role      member.Role
	DeviceID  string
}

type contextKey string

const identityKey contextKey = "identity"

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !ok || token == "" {
			a.log.Debug("missing bearer token", slog.String("path", ctx.URL().Path))
			a.writeError(ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sess, err := a.session.Validate(ctx.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrInvalidSession) {
				a.log.Debug("invalid session", slog.String("path", ctx.URL().Path))
				a.writeError(ctx, http.StatusUnauthorized, "Unauthorized")
				return
			}
			a.log.Error("validate session", slog.String("error", err.Error()))
			a.writeError(ctx, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		role := member.Role(sess.Role)
		id := Identity{
			Principal: sync.Principal{
				OrganizationID: sess.OrganizationID,
				ActorID:        sess.MemberID,
				ReadOnly:       !role.CanWrite(),
			},
			Role:     role,
			DeviceID: sess.DeviceID,
		}

		next(huma.WithContext(ctx, WithIdentity(ctx.Context(), id)))
	}
}

func (a *Auth) writeError(ctx huma.Context, status int, title string) {
	ctx.SetHeader("Content-Type", "application/problem+json")
	ctx.SetStatus(status)

	err := json.NewEncoder(ctx.BodyWriter()).Encode(huma.ErrorModel{
		Title:  title,
		Status: status,
	})
	if err != nil {
		a.log.Error("encode error body", slog.String("error", err.Error()))
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
