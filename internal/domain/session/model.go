package session

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrInvalidSession = errors.New("invalid session")
)

// Session bearer-сессия устройства. Токен хранится только в виде SHA-256.
type Session struct {
	TokenHash      string
	OrganizationID string
	MemberID       string
	Role           string
	DeviceID       string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}
