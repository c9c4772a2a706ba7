package auth

import "strings"

// Role del usuario autenticado. La autorización fina la decide domain/policy.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleExpert   Role = "expert" // perito
	RoleStandard Role = "standard"
)

// ParseRole normaliza el rol recibido en el token. Valores desconocidos
// caen en standard (menor privilegio).
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleExpert, "perito":
		return RoleExpert
	default:
		return RoleStandard
	}
}

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

// DisplayName devuelve el nombre para mensajes de historial.
func (c Claims) DisplayName() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return c.UserID
}
