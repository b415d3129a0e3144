package core

// Role is the part a connection plays in a room.
type Role string

const (
	RoleMentor  Role = "mentor"
	RoleStudent Role = "student"
)

// RoleFor maps the join flag onto a role.
func RoleFor(wantsMentor bool) Role {
	if wantsMentor {
		return RoleMentor
	}
	return RoleStudent
}
