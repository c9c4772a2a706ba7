package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/reports"
)

// ReportsRepo guarda el laudo en reports y la cadena de snapshots en
// report_versions (append-only).
type ReportsRepo struct {
	db *sql.DB
}

func NewReportsRepo(db *sql.DB) *ReportsRepo {
	return &ReportsRepo{db: db}
}

type contentRow struct {
	Introduction string   `json:"introduction"`
	Methodology  string   `json:"methodology"`
	Analysis     string   `json:"analysis"`
	Conclusion   string   `json:"conclusion"`
	References   []string `json:"references"`
}

type attachmentRow struct {
	EvidenceID  string `json:"evidence_id"`
	Description string `json:"description"`
	Page        int    `json:"page"`
}

func encodeContent(c reports.Content) ([]byte, error) {
	refs := c.References
	if refs == nil {
		refs = []string{}
	}
	return json.Marshal(contentRow{
		Introduction: c.Introduction,
		Methodology:  c.Methodology,
		Analysis:     c.Analysis,
		Conclusion:   c.Conclusion,
		References:   refs,
	})
}

func decodeContent(raw []byte) (reports.Content, error) {
	var row contentRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return reports.Content{}, err
	}
	return reports.Content{
		Introduction: row.Introduction,
		Methodology:  row.Methodology,
		Analysis:     row.Analysis,
		Conclusion:   row.Conclusion,
		References:   row.References,
	}, nil
}

func encodeAttachments(atts []reports.Attachment) ([]byte, error) {
	rows := make([]attachmentRow, 0, len(atts))
	for _, a := range atts {
		rows = append(rows, attachmentRow(a))
	}
	return json.Marshal(rows)
}

func decodeAttachments(raw []byte) ([]reports.Attachment, error) {
	var rows []attachmentRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make([]reports.Attachment, 0, len(rows))
	for _, a := range rows {
		out = append(out, reports.Attachment(a))
	}
	return out, nil
}

const reportColumns = `
	id, case_id, title, template, content, attachments, status, version,
	created_by, reviewed_by, review_date, created_at, updated_at`

func scanReport(s scanner) (reports.Report, error) {
	var (
		rep             reports.Report
		template, st    string
		contentRaw, att []byte
		reviewDate      sql.NullTime
	)
	if err := s.Scan(
		&rep.ID, &rep.CaseID, &rep.Title, &template, &contentRaw, &att, &st, &rep.Version,
		&rep.CreatedBy, &rep.ReviewedBy, &reviewDate, &rep.CreatedAt, &rep.UpdatedAt,
	); err != nil {
		return reports.Report{}, err
	}
	rep.Template = reports.Template(template)
	rep.Status = reports.Status(st)
	rep.ReviewDate = timePtr(reviewDate)

	var err error
	if rep.Content, err = decodeContent(contentRaw); err != nil {
		return reports.Report{}, fmt.Errorf("report %s: decode content: %w", rep.ID, err)
	}
	if rep.Attachments, err = decodeAttachments(att); err != nil {
		return reports.Report{}, fmt.Errorf("report %s: decode attachments: %w", rep.ID, err)
	}
	return rep, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadVersions(ctx context.Context, q querier, reportID string) ([]reports.VersionSnapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT version, content, modified_by_id, modified_by_name, modified_at, comments
		FROM report_versions
		WHERE report_id = $1
		ORDER BY version ASC
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reports.VersionSnapshot, 0)
	for rows.Next() {
		var (
			v   reports.VersionSnapshot
			raw []byte
		)
		if err := rows.Scan(&v.Version, &raw, &v.ModifiedBy.ID, &v.ModifiedBy.Name, &v.ModifiedAt, &v.Comments); err != nil {
			return nil, err
		}
		if v.Content, err = decodeContent(raw); err != nil {
			return nil, fmt.Errorf("report %s v%d: decode content: %w", reportID, v.Version, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertVersions(ctx context.Context, ex execer, reportID string, versions []reports.VersionSnapshot) error {
	for _, v := range versions {
		raw, err := encodeContent(v.Content)
		if err != nil {
			return err
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO report_versions (report_id, version, content, modified_by_id, modified_by_name, modified_at, comments)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, reportID, v.Version, raw, v.ModifiedBy.ID, v.ModifiedBy.Name, v.ModifiedAt, v.Comments); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReportsRepo) Create(ctx context.Context, rep reports.Report) error {
	content, err := encodeContent(rep.Content)
	if err != nil {
		return err
	}
	atts, err := encodeAttachments(rep.Attachments)
	if err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reports (`+reportColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`,
			rep.ID, rep.CaseID, rep.Title, string(rep.Template), content, atts, string(rep.Status), rep.Version,
			rep.CreatedBy, rep.ReviewedBy, nullTime(rep.ReviewDate), rep.CreatedAt, rep.UpdatedAt,
		); err != nil {
			return err
		}
		return insertVersions(ctx, tx, rep.ID, rep.PreviousVersions)
	})
}

func (r *ReportsRepo) GetByID(ctx context.Context, id string) (reports.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return reports.Report{}, apperr.NotFound("report %s", id)
	}
	if err != nil {
		return reports.Report{}, err
	}
	if rep.PreviousVersions, err = loadVersions(ctx, r.db, id); err != nil {
		return reports.Report{}, err
	}
	return rep, nil
}

// Update serializa ediciones con FOR UPDATE sobre la fila del laudo. Sólo se
// insertan los snapshots nuevos: los existentes no se reescriben.
func (r *ReportsRepo) Update(ctx context.Context, id string, mutate func(*reports.Report) error) (reports.Report, error) {
	var out reports.Report
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rep, err := scanReport(tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("report %s", id)
		}
		if err != nil {
			return err
		}
		if rep.PreviousVersions, err = loadVersions(ctx, tx, id); err != nil {
			return err
		}
		known := len(rep.PreviousVersions)

		if err := mutate(&rep); err != nil {
			return err
		}
		if len(rep.PreviousVersions) < known {
			return fmt.Errorf("report %s: version history cannot shrink", id)
		}

		content, err := encodeContent(rep.Content)
		if err != nil {
			return err
		}
		atts, err := encodeAttachments(rep.Attachments)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE reports SET
				title = $2, template = $3, content = $4, attachments = $5, status = $6, version = $7,
				reviewed_by = $8, review_date = $9, updated_at = $10
			WHERE id = $1
		`,
			rep.ID, rep.Title, string(rep.Template), content, atts, string(rep.Status), rep.Version,
			rep.ReviewedBy, nullTime(rep.ReviewDate), rep.UpdatedAt,
		); err != nil {
			return err
		}
		if err := insertVersions(ctx, tx, id, rep.PreviousVersions[known:]); err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err != nil {
		return reports.Report{}, err
	}
	return out, nil
}

// List no carga los snapshots; GetByID sí.
func (r *ReportsRepo) List(ctx context.Context, caseID string, offset, limit int) ([]reports.Report, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + reportColumns + ` FROM reports WHERE 1=1`)
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

	out := make([]reports.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *ReportsRepo) DeleteByCase(ctx context.Context, caseID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM reports WHERE case_id = $1 RETURNING id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ reports.Repository = (*ReportsRepo)(nil)
