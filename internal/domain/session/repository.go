package session

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	// Get возвращает ErrNotFound, если хэша нет
	Get(ctx context.Context, tokenHash string) (*Session, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
