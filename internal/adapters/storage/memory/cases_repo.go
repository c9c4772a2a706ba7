package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/cases"
)

type caseRepo struct {
	mu   sync.RWMutex
	byID map[string]cases.Case
}

func NewCaseRepo() cases.Repository {
	return &caseRepo{
		byID: make(map[string]cases.Case),
	}
}

func (r *caseRepo) Create(ctx context.Context, c cases.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(c.ID) == "" {
		return errors.New("case id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("case already exists")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *caseRepo) GetByID(ctx context.Context, id string) (cases.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return cases.Case{}, apperr.NotFound("case %s", id)
	}
	return c, nil
}

func (r *caseRepo) Update(ctx context.Context, id string, mutate func(*cases.Case) error) (cases.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return cases.Case{}, apperr.NotFound("case %s", id)
	}
	if err := mutate(&c); err != nil {
		return cases.Case{}, err
	}
	r.byID[id] = c
	return c, nil
}

func (r *caseRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return apperr.NotFound("case %s", id)
	}
	delete(r.byID, id)
	return nil
}

func (r *caseRepo) List(ctx context.Context, f cases.ListFilter) ([]cases.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]cases.Case, 0)
	for _, c := range r.byID {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Type != "" && c.Type != f.Type {
			continue
		}
		if f.AssignedTo != "" && c.AssignedTo != f.AssignedTo {
			continue
		}
		if f.From != nil && c.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && c.CreatedAt.After(*f.To) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(c.Title), q) &&
			!strings.Contains(strings.ToLower(c.Description), q) {
			continue
		}
		out = append(out, c)
	}

	newestFirst(out, func(c cases.Case) time.Time { return c.CreatedAt }, func(c cases.Case) string { return c.ID })
	return page(out, f.Offset, f.Limit), nil
}
