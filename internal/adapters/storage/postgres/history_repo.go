package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
)

// HistoryRepo guarda los historiales en una sola tabla. seq (BIGSERIAL) da
// el orden de inserción.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Append es idempotente por ID de entrada: un reintento de reconciliación
// devuelve la fila ya guardada. Sobre una Ref con tombstone no inserta y
// devuelve apperr.ErrNotFound.
func (r *HistoryRepo) Append(ctx context.Context, ref audit.Ref, e audit.Entry) (audit.Entry, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return audit.Entry{}, apperr.Validation("history: entity id required")
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO history_entries (id, entity_kind, entity_id, action, actor_id, actor_name, details, ts)
		SELECT $1,$2,$3,$4,$5,$6,$7,$8
		WHERE NOT EXISTS (
			SELECT 1 FROM history_tombstones WHERE entity_kind = $2 AND entity_id = $3
		)
		ON CONFLICT (id) DO NOTHING
		RETURNING seq
	`,
		e.ID, string(ref.Kind), ref.ID, string(e.Action), e.Actor.ID, e.Actor.Name, e.Details, e.Timestamp,
	).Scan(&e.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		gone, terr := r.purged(ctx, ref)
		if terr != nil {
			return audit.Entry{}, terr
		}
		if gone {
			return audit.Entry{}, apperr.NotFound("history: %s %s was deleted", ref.Kind, ref.ID)
		}
		return r.getByID(ctx, e.ID)
	}
	if err != nil {
		return audit.Entry{}, err
	}
	return e, nil
}

func (r *HistoryRepo) purged(ctx context.Context, ref audit.Ref) (bool, error) {
	var gone bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM history_tombstones WHERE entity_kind = $1 AND entity_id = $2)
	`, string(ref.Kind), ref.ID).Scan(&gone)
	return gone, err
}

func (r *HistoryRepo) getByID(ctx context.Context, id string) (audit.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `
		SELECT id, seq, action, actor_id, actor_name, details, ts
		FROM history_entries WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Entry{}, apperr.NotFound("history entry %s", id)
	}
	return e, err
}

func (r *HistoryRepo) List(ctx context.Context, ref audit.Ref) ([]audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seq, action, actor_id, actor_name, details, ts
		FROM history_entries
		WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY seq ASC
	`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteAll borra el historial y deja el tombstone en la misma transacción.
func (r *HistoryRepo) DeleteAll(ctx context.Context, ref audit.Ref) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO history_tombstones (entity_kind, entity_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, string(ref.Kind), ref.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM history_entries WHERE entity_kind = $1 AND entity_id = $2`,
			string(ref.Kind), ref.ID)
		return err
	})
}

func scanEntry(s scanner) (audit.Entry, error) {
	var (
		e      audit.Entry
		action string
	)
	if err := s.Scan(&e.ID, &e.Seq, &action, &e.Actor.ID, &e.Actor.Name, &e.Details, &e.Timestamp); err != nil {
		return audit.Entry{}, err
	}
	e.Action = audit.Action(action)
	return e, nil
}
