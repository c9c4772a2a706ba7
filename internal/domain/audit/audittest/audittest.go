// Package audittest provee un historial en memoria para tests de los
// servicios de dominio.
package audittest

import (
	"context"
	"sync"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/platform/logger"
)

type Repo struct {
	mu      sync.Mutex
	seq     int64
	entries map[audit.Ref][]audit.Entry
	purged  map[audit.Ref]bool

	// FailAppends hace fallar todos los appends (simula store caído).
	FailAppends bool
}

func NewRepo() *Repo {
	return &Repo{entries: map[audit.Ref][]audit.Entry{}, purged: map[audit.Ref]bool{}}
}

func (r *Repo) Append(ctx context.Context, ref audit.Ref, e audit.Entry) (audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAppends {
		return audit.Entry{}, errStoreDown
	}
	if r.purged[ref] {
		return audit.Entry{}, apperr.NotFound("history: %s %s was deleted", ref.Kind, ref.ID)
	}
	r.seq++
	e.Seq = r.seq
	r.entries[ref] = append(r.entries[ref], e)
	return e, nil
}

func (r *Repo) List(ctx context.Context, ref audit.Ref) ([]audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries[ref]...), nil
}

func (r *Repo) DeleteAll(ctx context.Context, ref audit.Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, ref)
	r.purged[ref] = true
	return nil
}

// Actions lista las acciones registradas para ref, en orden.
func (r *Repo) Actions(ref audit.Ref) []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Action, 0, len(r.entries[ref]))
	for _, e := range r.entries[ref] {
		out = append(out, e.Action)
	}
	return out
}

type storeDownError struct{}

func (storeDownError) Error() string { return "audit store unavailable" }

var errStoreDown error = storeDownError{}

// NewTrail devuelve un Trail silencioso sobre un Repo nuevo.
func NewTrail() (*audit.Trail, *Repo) {
	repo := NewRepo()
	return audit.NewTrail(repo, audit.WithLogger(logger.Nop())), repo
}
