package memory

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/evidence"
)

type evidenceRepo struct {
	mu   sync.RWMutex
	byID map[string]evidence.Evidence
}

func NewEvidenceRepo() evidence.Repository {
	return &evidenceRepo{
		byID: make(map[string]evidence.Evidence),
	}
}

// Los slices/maps se copian para que nadie mute lo guardado por alias.
func cloneEvidence(e evidence.Evidence) evidence.Evidence {
	e.Files = append([]evidence.FileRef(nil), e.Files...)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

func (r *evidenceRepo) Create(ctx context.Context, e evidence.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(e.ID) == "" {
		return errors.New("evidence id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("evidence already exists")
	}
	r.byID[e.ID] = cloneEvidence(e)
	return nil
}

func (r *evidenceRepo) GetByID(ctx context.Context, id string) (evidence.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return evidence.Evidence{}, apperr.NotFound("evidence %s", id)
	}
	return cloneEvidence(e), nil
}

func (r *evidenceRepo) Update(ctx context.Context, id string, mutate func(*evidence.Evidence) error) (evidence.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return evidence.Evidence{}, apperr.NotFound("evidence %s", id)
	}
	e = cloneEvidence(e)
	if err := mutate(&e); err != nil {
		return evidence.Evidence{}, err
	}
	r.byID[id] = cloneEvidence(e)
	return e, nil
}

func (r *evidenceRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return apperr.NotFound("evidence %s", id)
	}
	delete(r.byID, id)
	return nil
}

func (r *evidenceRepo) DeleteByCase(ctx context.Context, caseID string) ([]evidence.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]evidence.Evidence, 0)
	for id, e := range r.byID {
		if e.CaseID == caseID {
			out = append(out, e)
			delete(r.byID, id)
		}
	}
	return out, nil
}

func (r *evidenceRepo) List(ctx context.Context, caseID string, offset, limit int) ([]evidence.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]evidence.Evidence, 0)
	for _, e := range r.byID {
		if caseID != "" && e.CaseID != caseID {
			continue
		}
		out = append(out, cloneEvidence(e))
	}
	newestFirst(out, func(e evidence.Evidence) time.Time { return e.CreatedAt }, func(e evidence.Evidence) string { return e.ID })
	return page(out, offset, limit), nil
}
