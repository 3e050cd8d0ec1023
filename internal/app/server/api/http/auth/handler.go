package auth

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"orgsync/internal/domain/member"
	"orgsync/internal/domain/session"
)

type Handler struct {
	members    member.Servicer
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(members member.Servicer, session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		members:    members,
		session:    session,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.loginOp(), h.login)
}

func (h *Handler) login(ctx context.Context, input *loginInput) (*loginOutput, error) {
	m, err := h.members.Authenticate(ctx, input.Body.OrganizationID, input.Body.Login, input.Body.Password)
	if err != nil {
		if errors.Is(err, member.ErrInvalidAuth) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		h.log.Error("authenticate", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("internal error")
	}

	token, expiresAt, err := h.session.Create(ctx, m.OrganizationID, m.ID, string(m.Role), input.Body.DeviceID)
	if err != nil {
		h.log.Error("create session", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("internal error")
	}

	h.log.Info("member logged in",
		slog.String("organization_id", m.OrganizationID),
		slog.String("member_id", m.ID),
		slog.String("device_id", input.Body.DeviceID),
	)

	return &loginOutput{
		Body: LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			MemberID:  m.ID,
			Role:      string(m.Role),
		},
	}, nil
}
