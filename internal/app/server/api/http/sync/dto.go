package sync

import (
	"time"

	"orgsync/internal/domain/sync"
)

type pushInput struct {
	Body PushRequest
}

// PushRequest пакет мутаций. Поля операций не обязательны на уровне схемы:
// неполная операция отклоняется отдельно, не ломая весь пакет.
type PushRequest struct {
	DeviceID   string      `json:"device_id" required:"false" maxLength:"128" doc:"Device that produced the operations; defaults to the session device"`
	Operations []Operation `json:"operations" doc:"Mutations in client order"`
}

type Operation struct {
	IdempotencyKey  string         `json:"idempotency_key" required:"false"`
	EntityType      string         `json:"entity_type" required:"false"`
	EntityID        string         `json:"entity_id" required:"false"`
	Intent          string         `json:"intent" required:"false" example:"update"`
	ClientTimestamp time.Time      `json:"client_timestamp" required:"false"`
	BaseVersion     *int64         `json:"base_version,omitempty"`
	RetryCount      int            `json:"retry_count,omitempty" minimum:"0"`
	Data            map[string]any `json:"data,omitempty"`
}

func (o Operation) toDomain() sync.Operation {
	return sync.Operation{
		IdempotencyKey:  o.IdempotencyKey,
		EntityType:      o.EntityType,
		EntityID:        o.EntityID,
		Intent:          sync.Intent(o.Intent),
		ClientTimestamp: o.ClientTimestamp,
		BaseVersion:     o.BaseVersion,
		RetryCount:      o.RetryCount,
		Data:            o.Data,
	}
}

type pushOutput struct {
	Body *sync.PushResponse
}

type pullInput struct {
	Since       string `query:"since" doc:"Opaque cursor from the previous page"`
	EntityTypes string `query:"entity_types" doc:"Comma-separated entity type filter" example:"customer,job"`
	Limit       int    `query:"limit" minimum:"0" doc:"Page size; clamped to the server maximum"`
}

type pullOutput struct {
	Body *sync.Page
}

type getOperationInput struct {
	Key string `path:"key" minLength:"1" doc:"Idempotency key"`
}

type getOperationOutput struct {
	Body *sync.OperationLog
}

type entityTypesInput struct{}

type entityTypesOutput struct {
	Body EntityTypesResponse
}

type EntityTypesResponse struct {
	EntityTypes []sync.EntityTypeInfo `json:"entity_types"`
}
