// Package policy concentra las reglas de autorización por rol y propiedad,
// en vez de repartir condicionales en cada endpoint.
package policy

import (
	"strings"

	"odontolegal/internal/ports/auth"
)

// Rule decide si actor puede operar sobre una entidad creada por ownerID.
type Rule func(actor auth.Claims, ownerID string) bool

// OwnerOrAdmin: creador o admin (borrar casos, editar/borrar evidencias).
func OwnerOrAdmin(actor auth.Claims, ownerID string) bool {
	return isOwner(actor, ownerID) || actor.Role == auth.RoleAdmin
}

// OwnerAdminOrExpert: creador, admin o perito (editar laudos y fichas dentales).
func OwnerAdminOrExpert(actor auth.Claims, ownerID string) bool {
	return OwnerOrAdmin(actor, ownerID) || actor.Role == auth.RoleExpert
}

// AdminOrExpert ignora la propiedad (finalizar laudos, registrar matches).
func AdminOrExpert(actor auth.Claims, _ string) bool {
	return actor.Role == auth.RoleAdmin || actor.Role == auth.RoleExpert
}

// Allow aplica rule; un actor sin UserID nunca está autorizado.
func Allow(rule Rule, actor auth.Claims, ownerID string) bool {
	if strings.TrimSpace(actor.UserID) == "" || rule == nil {
		return false
	}
	return rule(actor, ownerID)
}

func isOwner(actor auth.Claims, ownerID string) bool {
	ownerID = strings.TrimSpace(ownerID)
	return ownerID != "" && ownerID == actor.UserID
}
