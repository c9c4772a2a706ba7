package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/evidence"
)

type EvidenceRepo struct {
	db *sql.DB
}

func NewEvidenceRepo(db *sql.DB) *EvidenceRepo {
	return &EvidenceRepo{db: db}
}

type fileRow struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	StoragePath  string    `json:"storage_path"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

func encodeFiles(files []evidence.FileRef) ([]byte, error) {
	rows := make([]fileRow, 0, len(files))
	for _, f := range files {
		rows = append(rows, fileRow(f))
	}
	return json.Marshal(rows)
}

func decodeFiles(raw []byte) ([]evidence.FileRef, error) {
	var rows []fileRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make([]evidence.FileRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, evidence.FileRef(r))
	}
	return out, nil
}

const evidenceColumns = `
	id, case_id, type, title, description, category, files, metadata,
	created_by, created_at, updated_at`

func scanEvidence(s scanner) (evidence.Evidence, error) {
	var (
		e                 evidence.Evidence
		typ, category     string
		filesRaw, metaRaw []byte
	)
	if err := s.Scan(
		&e.ID, &e.CaseID, &typ, &e.Title, &e.Description, &category, &filesRaw, &metaRaw,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return evidence.Evidence{}, err
	}
	e.Type = evidence.Type(typ)
	e.Category = evidence.Category(category)

	files, err := decodeFiles(filesRaw)
	if err != nil {
		return evidence.Evidence{}, fmt.Errorf("evidence %s: decode files: %w", e.ID, err)
	}
	e.Files = files

	e.Metadata = map[string]string{}
	if err := json.Unmarshal(metaRaw, &e.Metadata); err != nil {
		return evidence.Evidence{}, fmt.Errorf("evidence %s: decode metadata: %w", e.ID, err)
	}
	return e, nil
}

func evidencePayload(e evidence.Evidence) (files, meta []byte, err error) {
	files, err = encodeFiles(e.Files)
	if err != nil {
		return nil, nil, err
	}
	m := e.Metadata
	if m == nil {
		m = map[string]string{}
	}
	meta, err = json.Marshal(m)
	return files, meta, err
}

func (r *EvidenceRepo) Create(ctx context.Context, e evidence.Evidence) error {
	files, meta, err := evidencePayload(e)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO evidence (`+evidenceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		e.ID, e.CaseID, string(e.Type), e.Title, e.Description, string(e.Category), files, meta,
		e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *EvidenceRepo) GetByID(ctx context.Context, id string) (evidence.Evidence, error) {
	e, err := scanEvidence(r.db.QueryRowContext(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return evidence.Evidence{}, apperr.NotFound("evidence %s", id)
	}
	return e, err
}

func (r *EvidenceRepo) Update(ctx context.Context, id string, mutate func(*evidence.Evidence) error) (evidence.Evidence, error) {
	var out evidence.Evidence
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		e, err := scanEvidence(tx.QueryRowContext(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("evidence %s", id)
		}
		if err != nil {
			return err
		}
		if err := mutate(&e); err != nil {
			return err
		}
		files, meta, err := evidencePayload(e)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE evidence SET
				type = $2, title = $3, description = $4, category = $5,
				files = $6, metadata = $7, updated_at = $8
			WHERE id = $1
		`, e.ID, string(e.Type), e.Title, e.Description, string(e.Category), files, meta, e.UpdatedAt)
		out = e
		return err
	})
	if err != nil {
		return evidence.Evidence{}, err
	}
	return out, nil
}

func (r *EvidenceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM evidence WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("evidence %s", id)
	}
	return nil
}

func (r *EvidenceRepo) DeleteByCase(ctx context.Context, caseID string) ([]evidence.Evidence, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM evidence WHERE case_id = $1 RETURNING `+evidenceColumns, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvidence(rows)
}

func (r *EvidenceRepo) List(ctx context.Context, caseID string, offset, limit int) ([]evidence.Evidence, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + evidenceColumns + ` FROM evidence WHERE 1=1`)
	args := []any{}
	argN := 1
	if caseID != "" {
		sb.WriteString(fmt.Sprintf(" AND case_id = $%d", argN))
		args = append(args, caseID)
		argN++
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	args = appendPaging(&sb, args, argN, offset, limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvidence(rows)
}

func collectEvidence(rows *sql.Rows) ([]evidence.Evidence, error) {
	out := make([]evidence.Evidence, 0)
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
