package domain

// Account roles.
const (
	RoleAdmin      = "admin"
	RoleSupport    = "support"
	RoleViewer     = "viewer"
	RoleTechnician = "technician"
)

// Account statuses. Only StatusActive may authenticate.
const (
	StatusActive    = "active"
	StatusBlocked   = "blocked"
	StatusSuspended = "suspended"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleSupport, RoleViewer, RoleTechnician:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known account statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusBlocked, StatusSuspended:
		return true
	}
	return false
}
