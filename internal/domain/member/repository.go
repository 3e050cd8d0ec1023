package member

import "context"

type Repository interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	// Create возвращает ErrLoginTaken, если логин в организации занят
	Create(ctx context.Context, m *Member) error
	FindByLogin(ctx context.Context, organizationID, login string) (*Member, error)
}
