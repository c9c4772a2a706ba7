// Package audit implementa el historial append-only que acompaña a toda
// entidad mutable (casos, evidencias, laudos y fichas dentales).
//
// Las lecturas por ID también escriben: cada fetch registra una entrada
// "view" antes de devolver la entidad.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/platform/logger"
)

type Trail struct {
	repo    Repository
	queue   Queue
	metrics FailureRecorder
	log     logger.Logger
	now     func() time.Time

	reconcileMu sync.Mutex
}

type Option func(*Trail)

func WithQueue(q Queue) Option {
	return func(t *Trail) { t.queue = q }
}

func WithMetrics(m FailureRecorder) Option {
	return func(t *Trail) { t.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(t *Trail) { t.log = l }
}

func NewTrail(repo Repository, opts ...Option) *Trail {
	t := &Trail{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.log == nil {
		t.log = logger.NewFromEnv()
	}
	return t
}

// Append valida y persiste una entrada. Si el store falla se reintenta una
// vez; si vuelve a fallar la entrada se encola para reconciliación y se
// devuelve un error que envuelve apperr.ErrAuditAppendFailed.
func (t *Trail) Append(ctx context.Context, ref Ref, action Action, actor UserRef, details string) (Entry, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return Entry{}, apperr.Validation("audit: entity id required")
	}
	if !Allowed(ref.Kind, action) {
		return Entry{}, apperr.Validation("audit: action %q not allowed for %s", action, ref.Kind)
	}
	if strings.TrimSpace(actor.ID) == "" {
		return Entry{}, apperr.Validation("audit: actor required")
	}

	e := Entry{
		ID:        uuid.NewString(),
		Action:    action,
		Actor:     actor,
		Details:   strings.TrimSpace(details),
		Timestamp: t.now(),
	}

	stored, err := t.repo.Append(ctx, ref, e)
	if err == nil {
		return stored, nil
	}

	// La entidad fue borrada (su historial también): no hay a dónde agregar.
	if errors.Is(err, apperr.ErrNotFound) {
		return Entry{}, err
	}

	// best-effort: un reintento inmediato
	stored, retryErr := t.repo.Append(ctx, ref, e)
	if retryErr == nil {
		return stored, nil
	}

	t.fail(ctx, ref, e, retryErr)
	return Entry{}, fmt.Errorf("%w: %s %s: %v", apperr.ErrAuditAppendFailed, ref.Kind, ref.ID, retryErr)
}

// Record se usa después de una mutación ya confirmada: la falla del
// historial no se propaga al usuario (queda logueada, medida y encolada).
func (t *Trail) Record(ctx context.Context, ref Ref, action Action, actor UserRef, details string) {
	if _, err := t.Append(ctx, ref, action, actor, details); err != nil {
		if errors.Is(err, apperr.ErrAuditAppendFailed) {
			return // ya reportado en fail()
		}
		t.log.Error("audit entry rejected", map[string]any{
			"entity_kind": string(ref.Kind),
			"entity_id":   ref.ID,
			"action":      string(action),
			"error":       err.Error(),
		})
	}
}

// Entries devuelve el historial en orden de inserción (más viejo primero).
func (t *Trail) Entries(ctx context.Context, ref Ref) ([]Entry, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return nil, apperr.Validation("audit: entity id required")
	}
	return t.repo.List(ctx, ref)
}

// Purge borra el historial junto con su entidad (cascade). No existe otro
// camino para eliminar entradas.
func (t *Trail) Purge(ctx context.Context, ref Ref) error {
	return t.repo.DeleteAll(ctx, ref)
}

type ReconcileResult struct {
	Applied   int   `json:"applied"`
	Requeued  int   `json:"requeued"`
	Dropped   int   `json:"dropped"`
	Malformed int   `json:"malformed"`
	Remaining int64 `json:"remaining"`
}

// Reconcile reintenta las entradas pendientes, a lo sumo max y nunca más de
// las que había al empezar (una entrada que sigue fallando no se reintenta
// dos veces en la misma pasada). Las que siguen fallando vuelven a la cola;
// las de entidades ya borradas se descartan.
//
// Una entrada sale de la cola solo con Ack, después de aplicarse o de
// reencolarse. Si el reencolado falla la entrada queda en proceso y la
// próxima pasada la recupera con Restore.
func (t *Trail) Reconcile(ctx context.Context, max int) (ReconcileResult, error) {
	var res ReconcileResult
	if t.queue == nil {
		return res, nil
	}
	if max <= 0 {
		max = 100
	}

	t.reconcileMu.Lock()
	defer t.reconcileMu.Unlock()

	if n, err := t.queue.Restore(ctx); err != nil {
		return res, fmt.Errorf("audit reconcile: restore: %w", err)
	} else if n > 0 {
		t.log.Warn("audit entries restored from an interrupted reconcile", map[string]any{"count": n})
	}

	pending, err := t.queue.Len(ctx)
	if err != nil {
		return res, fmt.Errorf("audit reconcile: len: %w", err)
	}
	limit := max
	if pending < int64(limit) {
		limit = int(pending)
	}

	defer func() {
		if t.metrics != nil && res.Applied > 0 {
			t.metrics.AuditReconciled(res.Applied)
		}
	}()

	for i := 0; i < limit; i++ {
		p, ok, err := t.queue.Claim(ctx)
		if errors.Is(err, ErrMalformedPending) {
			res.Malformed++
			t.stranded("malformed", Pending{}, err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("audit reconcile: claim: %w", err)
		}
		if !ok {
			break
		}

		_, err = t.repo.Append(ctx, p.Ref, p.Entry)
		switch {
		case err == nil:
			res.Applied++
		case errors.Is(err, apperr.ErrNotFound):
			res.Dropped++
			t.log.Warn("audit entry dropped, entity no longer exists", pendingFields(p))
		default:
			retry := p
			retry.Attempts++
			retry.Receipt = ""
			if pushErr := t.queue.Push(ctx, retry); pushErr != nil {
				t.stranded("requeue", p, pushErr)
				return res, fmt.Errorf("audit reconcile: requeue entry %s: %w", p.Entry.ID, pushErr)
			}
			res.Requeued++
		}

		if err := t.queue.Ack(ctx, p); err != nil {
			t.stranded("ack", p, err)
			return res, fmt.Errorf("audit reconcile: ack entry %s: %w", p.Entry.ID, err)
		}
	}

	n, err := t.queue.Len(ctx)
	if err != nil {
		return res, fmt.Errorf("audit reconcile: len: %w", err)
	}
	res.Remaining = n
	return res, nil
}

// stranded loguea la entrada completa que no pudo volver a la cola.
func (t *Trail) stranded(reason string, p Pending, cause error) {
	fields := pendingFields(p)
	fields["reason"] = reason
	fields["error"] = cause.Error()
	if t.metrics != nil {
		t.metrics.AuditReconcileFailed(reason)
	}
	t.log.Error("audit reconcile could not settle pending entry", fields)
}

func pendingFields(p Pending) map[string]any {
	return map[string]any{
		"entity_kind": string(p.Ref.Kind),
		"entity_id":   p.Ref.ID,
		"entry_id":    p.Entry.ID,
		"action":      string(p.Entry.Action),
		"actor_id":    p.Entry.Actor.ID,
		"actor_name":  p.Entry.Actor.Name,
		"details":     p.Entry.Details,
		"timestamp":   p.Entry.Timestamp,
		"attempts":    p.Attempts,
	}
}

func (t *Trail) fail(ctx context.Context, ref Ref, e Entry, cause error) {
	fields := map[string]any{
		"entity_kind": string(ref.Kind),
		"entity_id":   ref.ID,
		"action":      string(e.Action),
		"entry_id":    e.ID,
		"error":       cause.Error(),
	}

	if t.metrics != nil {
		t.metrics.AuditAppendFailed(string(ref.Kind))
	}

	if t.queue == nil {
		t.log.Error("audit append failed, no reconciliation queue configured", fields)
		return
	}

	// El contexto del request puede estar cancelado; la cola usa uno propio.
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := t.queue.Push(qctx, Pending{Ref: ref, Entry: e, Attempts: 2, FailedAt: t.now()}); err != nil {
		fields["queue_error"] = err.Error()
		t.log.Error("audit append failed and could not be queued", fields)
		return
	}
	t.log.Warn("audit append failed, queued for reconciliation", fields)
}
