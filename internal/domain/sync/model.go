package sync

import (
	"encoding/json"
	"time"
)

// Intent намерение клиентской мутации
type Intent string

const (
	IntentCreate Intent = "create"
	IntentUpdate Intent = "update"
	IntentDelete Intent = "delete"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentCreate, IntentUpdate, IntentDelete:
		return true
	}
	return false
}

// OperationStatus состояние строки журнала операций
type OperationStatus string

const (
	OperationPending  OperationStatus = "pending"
	OperationApplied  OperationStatus = "applied"
	OperationRejected OperationStatus = "rejected"
)

// ResultStatus итог обработки операции для клиента
type ResultStatus string

const (
	ResultApplied   ResultStatus = "applied"
	ResultDuplicate ResultStatus = "duplicate"
	ResultRejected  ResultStatus = "rejected"
)

// ChangeOp вид изменения в pull-потоке
type ChangeOp string

const (
	ChangeUpsert ChangeOp = "upsert"
	ChangeDelete ChangeOp = "delete"
)

// Principal организация и актор, от имени которых выполняется запрос
type Principal struct {
	OrganizationID string
	ActorID        string
	ReadOnly       bool
}

// Operation одна клиентская мутация из push-запроса
type Operation struct {
	IdempotencyKey  string         `json:"idempotency_key"`
	EntityType      string         `json:"entity_type"`
	EntityID        string         `json:"entity_id"`
	Intent          Intent         `json:"intent"`
	ClientTimestamp time.Time      `json:"client_timestamp"`
	BaseVersion     *int64         `json:"base_version,omitempty"`
	RetryCount      int            `json:"retry_count,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// OperationLog строка журнала sync_operations: аудит и дедупликация
type OperationLog struct {
	ID                string          `json:"id"`
	IdempotencyKey    string          `json:"idempotency_key"`
	OrganizationID    string          `json:"organization_id"`
	ActorID           string          `json:"actor_id"`
	DeviceID          string          `json:"device_id"`
	EntityType        string          `json:"entity_type"`
	EntityID          string          `json:"entity_id"`
	Intent            Intent          `json:"intent"`
	Payload           json.RawMessage `json:"payload"`
	ClientTimestamp   time.Time       `json:"client_timestamp"`
	Status            OperationStatus `json:"status"`
	DriftMS           int64           `json:"drift_ms"`
	ClientRetryCount  int             `json:"client_retry_count"`
	ServerVersion     *int64          `json:"server_version,omitempty"`
	ConflictFields    []ConflictField `json:"conflict_fields,omitempty"`
	ResolutionDetails *Rejection      `json:"resolution_details,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
}

// ConflictField поле, в котором победило серверное значение
type ConflictField struct {
	Field           string    `json:"field"`
	ClientValue     any       `json:"client_value"`
	ServerValue     any       `json:"server_value"`
	ClientTimestamp time.Time `json:"client_timestamp"`
	ServerTimestamp time.Time `json:"server_timestamp"`
}

// Result ответ по одной операции push
type Result struct {
	IdempotencyKey  string          `json:"idempotency_key"`
	Status          ResultStatus    `json:"status"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	ServerVersion   *int64          `json:"server_version,omitempty"`
	ErrorCode       ErrorCode       `json:"error_code,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ErrorDetails    map[string]any  `json:"error_details,omitempty"`
	ConflictFields  []ConflictField `json:"conflict_fields,omitempty"`
}

// PushRequest пакет мутаций одного устройства
type PushRequest struct {
	DeviceID   string      `json:"device_id"`
	Operations []Operation `json:"operations"`
}

type PushResponse struct {
	Results []Result `json:"results"`
}

// PullRequest параметры запроса изменений
type PullRequest struct {
	Since       string
	EntityTypes []string
	Limit       int
}

// Change одно изменение в pull-потоке. Data == nil для удалений.
type Change struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Operation  ChangeOp       `json:"operation"`
	Data       map[string]any `json:"data"`
	Version    int64          `json:"version"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Page страница pull-потока
type Page struct {
	Changes []Change `json:"changes"`
	Cursor  string   `json:"cursor"`
	HasMore bool     `json:"has_more"`
}

// EntityTypeInfo описание зарегистрированного типа для клиентов
type EntityTypeInfo struct {
	Name            string      `json:"name"`
	Fields          []FieldInfo `json:"fields"`
	FieldTimestamps bool        `json:"field_timestamps"`
}

type FieldInfo struct {
	Key  string `json:"key"`
	Kind string `json:"kind"`
}
