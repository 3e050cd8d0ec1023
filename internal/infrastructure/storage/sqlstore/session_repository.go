package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"orgsync/internal/domain/session"
)

type SessionRepository struct {
	store *Store
	log   *slog.Logger
}

func NewSessionRepository(store *Store, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		store: store,
		log:   log.With(slog.String("component", "session_repository")),
	}
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	a := r.store.args()
	query := fmt.Sprintf(`
		INSERT INTO sessions (token_hash, organization_id, member_id, role, device_id, expires_at, created_at)
		VALUES (%s)`,
		a.list(
			s.TokenHash,
			s.OrganizationID,
			s.MemberID,
			s.Role,
			s.DeviceID,
			r.store.dialect.Time(s.ExpiresAt),
			r.store.dialect.Time(s.CreatedAt),
		))

	if _, err := r.store.db.ExecContext(ctx, query, a.values...); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, tokenHash string) (*session.Session, error) {
	a := r.store.args()
	query := fmt.Sprintf(`
		SELECT token_hash, organization_id, member_id, role, device_id, expires_at, created_at
		FROM sessions
		WHERE token_hash = %s`,
		a.add(tokenHash))

	var (
		s                session.Session
		expires, created dbTime
	)
	err := r.store.db.QueryRowContext(ctx, query, a.values...).Scan(
		&s.TokenHash,
		&s.OrganizationID,
		&s.MemberID,
		&s.Role,
		&s.DeviceID,
		&expires,
		&created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.ExpiresAt = expires.Time
	s.CreatedAt = created.Time

	return &s, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	a := r.store.args()
	query := fmt.Sprintf(`DELETE FROM sessions WHERE expires_at <= %s`, a.time(before))

	res, err := r.store.db.ExecContext(ctx, query, a.values...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

var _ session.Repository = (*SessionRepository)(nil)
