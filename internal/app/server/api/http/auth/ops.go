package auth

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) loginOp() huma.Operation {
	return huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Авторизация участника организации",
		Tags:        []string{"auth"},
		Middlewares: h.middleware,
		Errors:      []int{http.StatusUnauthorized},
	}
}
