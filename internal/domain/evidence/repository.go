package evidence

import "context"

type Repository interface {
	Create(ctx context.Context, e Evidence) error
	GetByID(ctx context.Context, id string) (Evidence, error)
	// Update es read-modify-write atómico; si mutate falla no se persiste nada.
	Update(ctx context.Context, id string, mutate func(*Evidence) error) (Evidence, error)
	Delete(ctx context.Context, id string) error
	// DeleteByCase borra y devuelve las evidencias del caso.
	DeleteByCase(ctx context.Context, caseID string) ([]Evidence, error)
	// List: caseID vacío = todas. Más recientes primero.
	List(ctx context.Context, caseID string, offset, limit int) ([]Evidence, error)
}
