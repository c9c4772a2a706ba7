package cases

import (
	"context"
	"time"
)

// Repository: Update debe ser read-modify-write atómico por caso.
// Si mutate devuelve error no se persiste nada.
type Repository interface {
	Create(ctx context.Context, c Case) error
	GetByID(ctx context.Context, id string) (Case, error)
	Update(ctx context.Context, id string, mutate func(*Case) error) (Case, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]Case, error)
}

type ListFilter struct {
	Status     Status
	Type       Type
	AssignedTo string
	From       *time.Time // created_at >=
	To         *time.Time // created_at <=
	Query      string     // substring en title/description (case-insensitive)

	Offset int
	Limit  int
}
