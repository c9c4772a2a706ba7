package audit

import (
	"context"
	"errors"
)

// Repository persiste historiales. Append debe ser atómico por entidad:
// dos appends concurrentes sobre la misma Ref no pueden perderse ni pisarse.
//
// DeleteAll deja la Ref marcada como borrada; un Append posterior sobre esa
// Ref devuelve apperr.ErrNotFound.
type Repository interface {
	Append(ctx context.Context, ref Ref, e Entry) (Entry, error)
	List(ctx context.Context, ref Ref) ([]Entry, error)
	DeleteAll(ctx context.Context, ref Ref) error
}

// ErrMalformedPending lo devuelve Queue.Claim cuando un mensaje no se puede
// decodificar. La cola ya lo apartó (dead letter); el reconciliador sigue.
var ErrMalformedPending = errors.New("malformed pending audit entry")

// Queue guarda entradas pendientes de reconciliación (FIFO).
//
// Claim no borra: mueve la entrada a "en proceso" y la completa en
// Pending.Receipt. Solo Ack la quita. Restore devuelve a la cola lo que quedó
// en proceso (p.ej. una pasada que cortó a mitad de camino).
type Queue interface {
	Push(ctx context.Context, p Pending) error
	Claim(ctx context.Context) (Pending, bool, error)
	Ack(ctx context.Context, p Pending) error
	Restore(ctx context.Context) (int, error)
	Len(ctx context.Context) (int64, error)
}

// FailureRecorder recibe las fallas de append (métricas).
type FailureRecorder interface {
	AuditAppendFailed(kind string)
	AuditReconciled(n int)
	AuditReconcileFailed(reason string)
}
