package dentalrecords

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"odontolegal/internal/domain/apperr"
)

type Counterpart struct {
	Kind CounterpartKind
	ID   string
}

// MatchRecord es un resultado de comparación guardado en una ficha. No se
// deduplica: comparar dos veces deja dos registros.
type MatchRecord struct {
	ID          string
	RecordID    string
	Counterpart Counterpart
	Score       float64
	Details     []string
	MatchedAt   time.Time
}

type Registry struct {
	repo MatchRepository
	now  func() time.Time
}

func NewRegistry(repo MatchRepository) *Registry {
	return &Registry{repo: repo, now: time.Now}
}

func (g *Registry) Record(ctx context.Context, recordID string, cp Counterpart, score float64, details []string) (MatchRecord, error) {
	if strings.TrimSpace(recordID) == "" {
		return MatchRecord{}, apperr.Validation("match: record id required")
	}
	if !cp.Kind.Valid() || strings.TrimSpace(cp.ID) == "" {
		return MatchRecord{}, apperr.Validation("match: invalid counterpart")
	}
	if math.IsNaN(score) || score < 0 || score > 100 {
		return MatchRecord{}, apperr.Validation("match: score must be within [0,100], got %v", score)
	}

	m := MatchRecord{
		ID:          uuid.NewString(),
		RecordID:    recordID,
		Counterpart: cp,
		Score:       score,
		Details:     append([]string(nil), details...),
		MatchedAt:   g.now(),
	}
	if err := g.repo.Append(ctx, m); err != nil {
		return MatchRecord{}, err
	}
	return m, nil
}

// List devuelve los matches de la ficha, el más viejo primero.
func (g *Registry) List(ctx context.Context, recordID string) ([]MatchRecord, error) {
	return g.repo.ListByRecord(ctx, recordID)
}
