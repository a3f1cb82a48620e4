// Package model defines the closed enumerations shared between the
// repository and handler layers.  Keeping roles and statuses as dedicated
// types avoids scattering magic strings through authorization checks.
package model

// Role identifies what a user is allowed to do.  The wire values are kept
// in French because the SPA and the database schema already use them.
type Role string

const (
	RoleUser  Role = "utilisateur"
	RoleAdmin Role = "administrateur"
)

// RoleFromString normalizes an arbitrary string into a Role.  Unknown
// values map to RoleUser so a corrupt claim can never grant admin rights.
func RoleFromString(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// IsAdmin reports whether the role carries administrator capabilities.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }
