package member

import "errors"

var (
	ErrNotFound             = errors.New("member not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrLoginTaken           = errors.New("login already taken in organization")
	ErrInvalidAuth          = errors.New("invalid credentials")
	ErrInvalidInput         = errors.New("invalid input")
)
