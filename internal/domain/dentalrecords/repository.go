package dentalrecords

import "context"

// Repository de fichas. Create y Update devuelven apperr.ErrConflict si la
// identificación del paciente ya pertenece a otra ficha.
type Repository interface {
	Create(ctx context.Context, r DentalRecord) error
	GetByID(ctx context.Context, id string) (DentalRecord, error)
	Update(ctx context.Context, id string, mutate func(*DentalRecord) error) (DentalRecord, error)
	List(ctx context.Context, filter ListFilter) ([]DentalRecord, error)
	SearchByCharacteristics(ctx context.Context, q CharacteristicQuery) ([]DentalRecord, error)
}

// MatchRepository persiste el registro de matches (append-only).
type MatchRepository interface {
	Append(ctx context.Context, m MatchRecord) error
	// ListByRecord en orden de inserción.
	ListByRecord(ctx context.Context, recordID string) ([]MatchRecord, error)
}
