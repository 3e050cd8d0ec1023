package sync

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"orgsync/internal/app/server/api/http/middleware/auth"
	"orgsync/internal/domain/sync"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("component", "sync_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.pushOp(), h.push)
	huma.Register(api, h.pullOp(), h.pull)
	huma.Register(api, h.getOperationOp(), h.getOperation)
	huma.Register(api, h.entityTypesOp(), h.entityTypes)
}

func (h *Handler) push(ctx context.Context, input *pushInput) (*pushOutput, error) {
	id, ok := auth.GetIdentity(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	req := sync.PushRequest{
		DeviceID:   input.Body.DeviceID,
		Operations: make([]sync.Operation, len(input.Body.Operations)),
	}
	if req.DeviceID == "" {
		req.DeviceID = id.DeviceID
	}
	for i, op := range input.Body.Operations {
		req.Operations[i] = op.toDomain()
	}

	resp, err := h.service.Push(ctx, id.Principal, req)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &pushOutput{Body: resp}, nil
}

func (h *Handler) pull(ctx context.Context, input *pullInput) (*pullOutput, error) {
	id, ok := auth.GetIdentity(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	page, err := h.service.Pull(ctx, id.Principal, sync.PullRequest{
		Since:       input.Since,
		EntityTypes: splitTypes(input.EntityTypes),
		Limit:       input.Limit,
	})
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &pullOutput{Body: page}, nil
}

func (h *Handler) getOperation(ctx context.Context, input *getOperationInput) (*getOperationOutput, error) {
	id, ok := auth.GetIdentity(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	op, err := h.service.GetOperation(ctx, id.Principal, input.Key)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &getOperationOutput{Body: op}, nil
}

func (h *Handler) entityTypes(_ context.Context, _ *entityTypesInput) (*entityTypesOutput, error) {
	return &entityTypesOutput{
		Body: EntityTypesResponse{EntityTypes: h.service.EntityTypes()},
	}, nil
}

// toHTTP переводит ошибки уровня запроса в ответы huma
func (h *Handler) toHTTP(err error) error {
	switch {
	case errors.Is(err, sync.ErrBatchTooLarge), errors.Is(err, sync.ErrInvalidCursor):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, sync.ErrOperationNotFound):
		return huma.Error404NotFound(err.Error())
	default:
		h.log.Error("sync request failed", slog.String("error", err.Error()))
		return huma.Error500InternalServerError("internal error")
	}
}

func splitTypes(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
