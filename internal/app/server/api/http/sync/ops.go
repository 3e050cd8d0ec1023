package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) pushOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-push",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/push",
		Summary:     "Применить пакет мутаций",
		Description: "Каждая операция обрабатывается не более одного раза на ключ идемпотентности. Отказы возвращаются по операциям.",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}
}

func (h *Handler) pullOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-pull",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/pull",
		Summary:     "Получить изменения после курсора",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}
}

func (h *Handler) getOperationOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-operation",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/operations/{key}",
		Summary:     "Строка журнала операций по ключу идемпотентности",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}
}

func (h *Handler) entityTypesOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-entity-types",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/entity-types",
		Summary:     "Зарегистрированные типы сущностей",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
		Errors:      []int{http.StatusUnauthorized},
	}
}
