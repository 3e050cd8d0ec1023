package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

const tokenBytes = 32

type Servicer interface {
	Create(ctx context.Context, organizationID, memberID, role, deviceID string) (string, time.Time, error)
	Validate(ctx context.Context, token string) (*Session, error)
}

type Service struct {
	repo  Repository
	log   *slog.Logger
	ttl   time.Duration
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		repo:  repo,
		log:   log.With(slog.String("component", "session_service")),
		ttl:   ttl,
		clock: time.Now,
	}
}

// Create выпускает новый токен. Клиент получает токен, хранилище только его хэш.
func (s *Service) Create(ctx context.Context, organizationID, memberID, role, deviceID string) (string, time.Time, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(buf)

	now := s.clock().UTC().Truncate(time.Microsecond)
	sess := &Session{
		TokenHash:      Hash(token),
		OrganizationID: organizationID,
		MemberID:       memberID,
		Role:           role,
		DeviceID:       deviceID,
		ExpiresAt:      now.Add(s.ttl),
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", time.Time{}, fmt.Errorf("save session: %w", err)
	}

	return token, sess.ExpiresAt, nil
}

// Validate находит живую сессию по токену
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	sess, err := s.repo.Get(ctx, Hash(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !s.clock().Before(sess.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	return sess, nil
}

// PurgeExpired удаляет истекшие сессии
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	s.log.Info("expired sessions purged", slog.Int64("count", n))
	return n, nil
}

// Hash hex-представление SHA-256 токена
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
