package audit

import (
	"time"

	"odontolegal/internal/ports/auth"
)

// Ref apunta a la entidad dueña de un historial.
type Ref struct {
	Kind EntityKind
	ID   string
}

// UserRef es la referencia mínima al actor que queda en el historial.
type UserRef struct {
	ID   string
	Name string
}

// Entry es inmutable una vez agregada. El orden del historial es el de
// inserción (Seq), no el de Timestamp.
type Entry struct {
	ID        string
	Seq       int64
	Action    Action
	Actor     UserRef
	Details   string
	Timestamp time.Time
}

// Pending es una entrada que no se pudo persistir y espera reconciliación.
type Pending struct {
	Ref      Ref
	Entry    Entry
	Attempts int
	FailedAt time.Time

	// Receipt lo asigna Queue.Claim; identifica la copia en proceso.
	Receipt string
}

// UserRefFrom arma la referencia del actor desde la identidad autenticada.
func UserRefFrom(c auth.Claims) UserRef {
	return UserRef{ID: c.UserID, Name: c.DisplayName()}
}
