package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
)

// historyRepo guarda los historiales de todas las entidades. Seq es global
// y monótono, así el orden de inserción es estable aunque dos entradas
// compartan timestamp.
//
// purged guarda las Refs borradas: un append tardío (reconciliación) sobre
// una entidad eliminada no puede volver a crear su historial.
type historyRepo struct {
	mu     sync.RWMutex
	seq    int64
	byRef  map[audit.Ref][]audit.Entry
	purged map[audit.Ref]struct{}
}

func NewHistoryRepo() audit.Repository {
	return &historyRepo{
		byRef:  make(map[audit.Ref][]audit.Entry),
		purged: make(map[audit.Ref]struct{}),
	}
}

func (r *historyRepo) Append(ctx context.Context, ref audit.Ref, e audit.Entry) (audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(ref.ID) == "" {
		return audit.Entry{}, apperr.Validation("history: entity id required")
	}
	if _, gone := r.purged[ref]; gone {
		return audit.Entry{}, apperr.NotFound("history: %s %s was deleted", ref.Kind, ref.ID)
	}
	for _, existing := range r.byRef[ref] {
		if existing.ID == e.ID {
			return existing, nil // reintento idempotente
		}
	}
	r.seq++
	e.Seq = r.seq
	r.byRef[ref] = append(r.byRef[ref], e)
	return e, nil
}

func (r *historyRepo) List(ctx context.Context, ref audit.Ref) ([]audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]audit.Entry{}, r.byRef[ref]...), nil
}

func (r *historyRepo) DeleteAll(ctx context.Context, ref audit.Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byRef, ref)
	r.purged[ref] = struct{}{}
	return nil
}

// queue es la cola de reconciliación en proceso (sin Redis). Las entradas
// reclamadas quedan en inflight hasta Ack.
type queue struct {
	mu       sync.Mutex
	seq      int64
	items    []audit.Pending
	inflight []audit.Pending
}

func NewAuditQueue() audit.Queue {
	return &queue{}
}

func (q *queue) Push(ctx context.Context, p audit.Pending) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	p.Receipt = ""
	q.items = append(q.items, p)
	return nil
}

func (q *queue) Claim(ctx context.Context) (audit.Pending, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return audit.Pending{}, false, nil
	}
	p := q.items[0]
	q.items = q.items[1:]
	q.seq++
	p.Receipt = strconv.FormatInt(q.seq, 10)
	q.inflight = append(q.inflight, p)
	return p, true, nil
}

func (q *queue) Ack(ctx context.Context, p audit.Pending) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.inflight {
		if it.Receipt == p.Receipt {
			q.inflight = append(q.inflight[:i], q.inflight[i+1:]...)
			return nil
		}
	}
	return nil
}

// Restore devuelve lo reclamado al frente de la cola, en el orden original.
func (q *queue) Restore(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.inflight)
	if n == 0 {
		return 0, nil
	}
	back := make([]audit.Pending, 0, n+len(q.items))
	for _, p := range q.inflight {
		p.Receipt = ""
		back = append(back, p)
	}
	q.items = append(back, q.items...)
	q.inflight = nil
	return n, nil
}

func (q *queue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
