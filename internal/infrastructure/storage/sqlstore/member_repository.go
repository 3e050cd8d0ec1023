package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"orgsync/internal/domain/member"
)

type MemberRepository struct {
	store *Store
	log   *slog.Logger
}

func NewMemberRepository(store *Store, log *slog.Logger) *MemberRepository {
	return &MemberRepository{
		store: store,
		log:   log.With(slog.String("component", "member_repository")),
	}
}

func (r *MemberRepository) CreateOrganization(ctx context.Context, org *member.Organization) error {
	a := r.store.args()
	query := fmt.Sprintf(`INSERT INTO organizations (id, name, created_at) VALUES (%s)`,
		a.list(org.ID, org.Name, r.store.dialect.Time(org.CreatedAt)))

	if _, err := r.store.db.ExecContext(ctx, query, a.values...); err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (r *MemberRepository) GetOrganization(ctx context.Context, id string) (*member.Organization, error) {
	a := r.store.args()
	query := fmt.Sprintf(`SELECT id, name, created_at FROM organizations WHERE id = %s`, a.add(id))

	var (
		org     member.Organization
		created dbTime
	)
	err := r.store.db.QueryRowContext(ctx, query, a.values...).Scan(&org.ID, &org.Name, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, member.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.CreatedAt = created.Time

	return &org, nil
}

func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	a := r.store.args()
	query := fmt.Sprintf(`
		INSERT INTO members (id, organization_id, login, password_hash, role, created_at)
		VALUES (%s)`,
		a.list(m.ID, m.OrganizationID, m.Login, m.Password, string(m.Role), r.store.dialect.Time(m.CreatedAt)))

	if _, err := r.store.db.ExecContext(ctx, query, a.values...); err != nil {
		if r.store.dialect.IsUniqueViolation(err) {
			return member.ErrLoginTaken
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (r *MemberRepository) FindByLogin(ctx context.Context, organizationID, login string) (*member.Member, error) {
	a := r.store.args()
	query := fmt.Sprintf(`
		SELECT id, organization_id, login, password_hash, role, created_at
		FROM members
		WHERE organization_id = %s AND login = %s`,
		a.add(organizationID), a.add(login))

	var (
		m       member.Member
		role    string
		created dbTime
	)
	err := r.store.db.QueryRowContext(ctx, query, a.values...).Scan(
		&m.ID,
		&m.OrganizationID,
		&m.Login,
		&m.Password,
		&role,
		&created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	m.Role = member.Role(role)
	m.CreatedAt = created.Time

	return &m, nil
}

var _ member.Repository = (*MemberRepository)(nil)
