package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	CreateOrganization(ctx context.Context, name string) (*Organization, error)
	Add(ctx context.Context, organizationID, login, password string, role Role) (*Member, error)
	Authenticate(ctx context.Context, organizationID, login, password string) (*Member, error)
}

type Service struct {
	repo      Repository
	validator Validator
	log       *slog.Logger
}

func NewService(repo Repository, validator Validator, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		log:       log.With(slog.String("component", "member_service")),
	}
}

// CreateOrganization регистрирует нового арендатора
func (s *Service) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxOrgNameLen {
		return nil, fmt.Errorf("%w: organization name must be 1..%d characters", ErrInvalidInput, MaxOrgNameLen)
	}

	org := &Organization{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	s.log.Info("organization created", slog.String("organization_id", org.ID))
	return org, nil
}

// Add добавляет участника в существующую организацию
func (s *Service) Add(ctx context.Context, organizationID, login, password string, role Role) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := s.validator.ValidateMember(login, password); err != nil {
		s.log.Debug("validation failed", slog.String("login", login), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if _, err := s.repo.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	m := &Member{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Login:          login,
		Password:       string(hash),
		Role:           role,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// Authenticate проверяет пароль участника. Любая неудача сводится к ErrInvalidAuth,
// кроме сбоев хранилища.
func (s *Service) Authenticate(ctx context.Context, organizationID, login, password string) (*Member, error) {
	if err := s.validator.ValidateLogin(login); err != nil {
		return nil, ErrInvalidAuth
	}

	m, err := s.repo.FindByLogin(ctx, organizationID, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidAuth
		}
		return nil, fmt.Errorf("find member: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.Password), []byte(password)); err != nil {
		return nil, ErrInvalidAuth
	}

	return m, nil
}
