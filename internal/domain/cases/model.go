package cases

import "time"

type Patient struct {
	Name           string
	BirthDate      *time.Time
	Gender         Gender
	Identification string
}

// Case es el expediente investigativo; agrupa evidencias y laudos.
type Case struct {
	ID          string
	Title       string
	Description string
	Type        Type
	Status      Status

	AssignedTo string // perito responsable
	Patient    Patient

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
