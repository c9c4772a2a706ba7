package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/cases"
)

type CasesRepo struct {
	db *sql.DB
}

func NewCasesRepo(db *sql.DB) *CasesRepo {
	return &CasesRepo{db: db}
}

const caseColumns = `
	id, title, description, type, status, assigned_to,
	patient_name, patient_birth_date, patient_gender, patient_identification,
	created_by, created_at, updated_at`

func scanCase(s scanner) (cases.Case, error) {
	var (
		c               cases.Case
		typ, st, gender string
		birth           sql.NullTime
	)
	if err := s.Scan(
		&c.ID, &c.Title, &c.Description, &typ, &st, &c.AssignedTo,
		&c.Patient.Name, &birth, &gender, &c.Patient.Identification,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return cases.Case{}, err
	}
	c.Type = cases.Type(typ)
	c.Status = cases.Status(st)
	c.Patient.Gender = cases.Gender(gender)
	c.Patient.BirthDate = timePtr(birth)
	return c, nil
}

func (r *CasesRepo) Create(ctx context.Context, c cases.Case) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		c.ID, c.Title, c.Description, string(c.Type), string(c.Status), c.AssignedTo,
		c.Patient.Name, nullTime(c.Patient.BirthDate), string(c.Patient.Gender), c.Patient.Identification,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *CasesRepo) GetByID(ctx context.Context, id string) (cases.Case, error) {
	c, err := scanCase(r.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return cases.Case{}, apperr.NotFound("case %s", id)
	}
	return c, err
}

// Update bloquea la fila (FOR UPDATE) durante el read-modify-write.
func (r *CasesRepo) Update(ctx context.Context, id string, mutate func(*cases.Case) error) (cases.Case, error) {
	var out cases.Case
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		c, err := scanCase(tx.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("case %s", id)
		}
		if err != nil {
			return err
		}
		if err := mutate(&c); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE cases SET
				title = $2, description = $3, type = $4, status = $5, assigned_to = $6,
				patient_name = $7, patient_birth_date = $8, patient_gender = $9, patient_identification = $10,
				updated_at = $11
			WHERE id = $1
		`,
			c.ID, c.Title, c.Description, string(c.Type), string(c.Status), c.AssignedTo,
			c.Patient.Name, nullTime(c.Patient.BirthDate), string(c.Patient.Gender), c.Patient.Identification,
			c.UpdatedAt,
		)
		out = c
		return err
	})
	if err != nil {
		return cases.Case{}, err
	}
	return out, nil
}

func (r *CasesRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("case %s", id)
	}
	return nil
}

func (r *CasesRepo) List(ctx context.Context, f cases.ListFilter) ([]cases.Case, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + caseColumns + ` FROM cases WHERE 1=1`)

	args := []any{}
	argN := 1

	if f.Status != "" {
		sb.WriteString(fmt.Sprintf(" AND status = $%d", argN))
		args = append(args, string(f.Status))
		argN++
	}
	if f.Type != "" {
		sb.WriteString(fmt.Sprintf(" AND type = $%d", argN))
		args = append(args, string(f.Type))
		argN++
	}
	if f.AssignedTo != "" {
		sb.WriteString(fmt.Sprintf(" AND assigned_to = $%d", argN))
		args = append(args, f.AssignedTo)
		argN++
	}
	if f.From != nil {
		sb.WriteString(fmt.Sprintf(" AND created_at >= $%d", argN))
		args = append(args, *f.From)
		argN++
	}
	if f.To != nil {
		sb.WriteString(fmt.Sprintf(" AND created_at <= $%d", argN))
		args = append(args, *f.To)
		argN++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		sb.WriteString(fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", argN, argN))
		args = append(args, likePattern(q))
		argN++
	}

	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	args = appendPaging(&sb, args, argN, f.Offset, f.Limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]cases.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// appendPaging agrega LIMIT/OFFSET. limit <= 0 = sin límite.
func appendPaging(sb *strings.Builder, args []any, argN, offset, limit int) []any {
	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
		args = append(args, limit)
		argN++
	}
	if offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", argN))
		args = append(args, offset)
	}
	return args
}
