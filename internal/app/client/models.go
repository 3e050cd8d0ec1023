package client

import (
	"time"

	"orgsync/internal/domain/sync"
)

// OutboxStatus состояние записи исходящей очереди
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxApplied OutboxStatus = "applied"
	OutboxFailed  OutboxStatus = "failed"
)

// PendingOp локальная мутация, ожидающая отправки на сервер
type PendingOp struct {
	Seq          int64          `json:"seq"`
	Op           sync.Operation `json:"operation"`
	Status       OutboxStatus   `json:"status"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Item локальная копия сущности
type Item struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Version    int64          `json:"version"`
	Deleted    bool           `json:"deleted"`
	Data       map[string]any `json:"data"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
