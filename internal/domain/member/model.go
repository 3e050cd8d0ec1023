package member

import "time"

// Role уровень доступа участника организации
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	// RoleViewer может только читать поток изменений
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CanWrite разрешены ли роли мутации через push
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleEditor
}

type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Member struct {
	ID             string
	OrganizationID string
	Login          string
	Password       string // хэш
	Role           Role
	CreatedAt      time.Time
}
