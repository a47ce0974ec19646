package auth

import "fmt"

// Role is the staff role carried in the session token. It is a closed set:
// switches over Role should enumerate every constant so a new role forces
// each call site to be revisited.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleFrontDesk Role = "FRONT_DESK"
	RoleNurse     Role = "NURSE"
	RoleDoctor    Role = "DOCTOR"
	RoleLab       Role = "LAB"
	RolePharmacy  Role = "PHARMACY"
	RoleBilling   Role = "BILLING"
)

// Roles lists every valid role.
var Roles = []Role{
	RoleAdmin, RoleManager, RoleFrontDesk, RoleNurse,
	RoleDoctor, RoleLab, RolePharmacy, RoleBilling,
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleFrontDesk, RoleNurse,
		RoleDoctor, RoleLab, RolePharmacy, RoleBilling:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %s", s)
}

func (r Role) String() string { return string(r) }

// IsWorkflowRole reports whether the role owns a stage in the visit
// pipeline. Admin and manager supervise; they have no queue of their own.
func (r Role) IsWorkflowRole() bool {
	switch r {
	case RoleFrontDesk, RoleNurse, RoleDoctor, RoleLab, RolePharmacy, RoleBilling:
		return true
	case RoleAdmin, RoleManager:
		return false
	}
	return false
}
