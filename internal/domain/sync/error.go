package sync

import "errors"

var (
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrVersionConflict   = errors.New("entity version changed concurrently")
	ErrOperationNotFound = errors.New("sync operation not found")
	ErrBatchTooLarge     = errors.New("batch exceeds maximum size")
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrWriteContention   = errors.New("too many concurrent writes to entity")
)

// ErrorCode код отказа по отдельной операции push
type ErrorCode string

const (
	CodeUnknownEntityType ErrorCode = "UNKNOWN_ENTITY_TYPE"
	CodeInvalidIntent     ErrorCode = "INVALID_INTENT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// Rejection доменный отказ. Это значение, а не ошибка: пакет продолжает обработку.
type Rejection struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
