package models

// Role is the access role asserted by the identity provider.
type Role string

const (
	RoleEmployee      Role = "employee"
	RoleHRManager     Role = "hr_manager"
	RoleAdministrator Role = "administrator"
	RoleAuditor       Role = "auditor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleHRManager, RoleAdministrator, RoleAuditor:
		return true
	}
	return false
}

// Identity is the verified caller: who they are and what role they hold.
type Identity struct {
	// Subject is the identity provider's subject claim, kept for logging.
	Subject    string
	EmployeeID int64
	Role       Role
}
