package domain

// Role enumerates directory roles the engine understands.
type Role string

const (
	RoleRequester     Role = "REQUESTER"
	RoleManager       Role = "MANAGER"
	RoleOverseer      Role = "OVERSEER"
	RoleFinance       Role = "FINANCE"
	RoleFieldEngineer Role = "FIELD_ENGINEER"
)

// User is the directory view of an actor. The engine never manages identity.
type User struct {
	ID           string
	Name         string
	Role         Role
	DepartmentID string
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleRequester, RoleManager, RoleOverseer, RoleFinance, RoleFieldEngineer:
		return true
	}
	return false
}
