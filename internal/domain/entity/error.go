package entity

import "errors"

var (
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrAlreadyRegistered = errors.New("entity type already registered with a different descriptor")
	ErrInvalidDescriptor = errors.New("invalid entity descriptor")
	ErrInvalidFieldValue = errors.New("invalid field value")
)
