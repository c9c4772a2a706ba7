package reports

import "context"

// Repository de laudos. Update es read-modify-write atómico por laudo: dos
// ediciones concurrentes no pueden perder snapshots ni repetir versión.
type Repository interface {
	Create(ctx context.Context, r Report) error
	GetByID(ctx context.Context, id string) (Report, error)
	Update(ctx context.Context, id string, mutate func(*Report) error) (Report, error)
	// List: caseID vacío = todos. Más recientes primero.
	List(ctx context.Context, caseID string, offset, limit int) ([]Report, error)
	// DeleteByCase devuelve los IDs borrados.
	DeleteByCase(ctx context.Context, caseID string) ([]string, error)
}
