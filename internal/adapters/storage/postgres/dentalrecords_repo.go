package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/cases"
	"odontolegal/internal/domain/characteristics"
	"odontolegal/internal/domain/dentalrecords"
)

type DentalRecordsRepo struct {
	db *sql.DB
}

func NewDentalRecordsRepo(db *sql.DB) *DentalRecordsRepo {
	return &DentalRecordsRepo{db: db}
}

const dentalRecordColumns = `
	id, patient_name, patient_birth_date, patient_gender, patient_identification,
	status, characteristics, radiographs, photographs,
	created_by, created_at, updated_at`

// normalizeSet evita nulls en el JSONB para que las consultas con
// jsonb_array_elements no tengan que contemplarlos.
func normalizeSet(cs characteristics.CharacteristicSet) characteristics.CharacteristicSet {
	out := cs
	out.Teeth = make([]characteristics.ToothRecord, 0, len(cs.Teeth))
	for _, t := range cs.Teeth {
		if t.Treatments == nil {
			t.Treatments = []characteristics.Treatment{}
		}
		out.Teeth = append(out.Teeth, t)
	}
	if out.General.Anomalies == nil {
		out.General.Anomalies = []string{}
	}
	return out
}

func encodeIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func scanDentalRecord(s scanner) (dentalrecords.DentalRecord, error) {
	var (
		rec                     dentalrecords.DentalRecord
		birth                   sql.NullTime
		gender, st              string
		identification          sql.NullString
		charRaw, radRaw, phoRaw []byte
	)
	if err := s.Scan(
		&rec.ID, &rec.Patient.Name, &birth, &gender, &identification,
		&st, &charRaw, &radRaw, &phoRaw,
		&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return dentalrecords.DentalRecord{}, err
	}
	rec.Patient.BirthDate = timePtr(birth)
	rec.Patient.Gender = cases.Gender(gender)
	rec.Patient.Identification = identification.String
	rec.Status = dentalrecords.Status(st)

	if err := json.Unmarshal(charRaw, &rec.Characteristics); err != nil {
		return dentalrecords.DentalRecord{}, fmt.Errorf("dental record %s: decode characteristics: %w", rec.ID, err)
	}
	if err := json.Unmarshal(radRaw, &rec.Radiographs); err != nil {
		return dentalrecords.DentalRecord{}, fmt.Errorf("dental record %s: decode radiographs: %w", rec.ID, err)
	}
	if err := json.Unmarshal(phoRaw, &rec.Photographs); err != nil {
		return dentalrecords.DentalRecord{}, fmt.Errorf("dental record %s: decode photographs: %w", rec.ID, err)
	}
	return rec, nil
}

type dentalRecordPayload struct {
	characteristics, radiographs, photographs []byte
}

func encodeDentalRecord(rec dentalrecords.DentalRecord) (dentalRecordPayload, error) {
	var (
		p   dentalRecordPayload
		err error
	)
	if p.characteristics, err = json.Marshal(normalizeSet(rec.Characteristics)); err != nil {
		return p, err
	}
	if p.radiographs, err = encodeIDs(rec.Radiographs); err != nil {
		return p, err
	}
	p.photographs, err = encodeIDs(rec.Photographs)
	return p, err
}

func identificationConflict(err error, identification string) error {
	if isUniqueViolation(err) {
		return apperr.Conflict("patient identification %q already registered", identification)
	}
	return err
}

func (r *DentalRecordsRepo) Create(ctx context.Context, rec dentalrecords.DentalRecord) error {
	p, err := encodeDentalRecord(rec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dental_records (`+dentalRecordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		rec.ID, rec.Patient.Name, nullTime(rec.Patient.BirthDate), string(rec.Patient.Gender), nullString(rec.Patient.Identification),
		string(rec.Status), p.characteristics, p.radiographs, p.photographs,
		rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	return identificationConflict(err, rec.Patient.Identification)
}

func (r *DentalRecordsRepo) GetByID(ctx context.Context, id string) (dentalrecords.DentalRecord, error) {
	rec, err := scanDentalRecord(r.db.QueryRowContext(ctx, `SELECT `+dentalRecordColumns+` FROM dental_records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return dentalrecords.DentalRecord{}, apperr.NotFound("dental record %s", id)
	}
	return rec, err
}

func (r *DentalRecordsRepo) Update(ctx context.Context, id string, mutate func(*dentalrecords.DentalRecord) error) (dentalrecords.DentalRecord, error) {
	var out dentalrecords.DentalRecord
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rec, err := scanDentalRecord(tx.QueryRowContext(ctx, `SELECT `+dentalRecordColumns+` FROM dental_records WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("dental record %s", id)
		}
		if err != nil {
			return err
		}
		if err := mutate(&rec); err != nil {
			return err
		}
		p, err := encodeDentalRecord(rec)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE dental_records SET
				patient_name = $2, patient_birth_date = $3, patient_gender = $4, patient_identification = $5,
				status = $6, characteristics = $7, radiographs = $8, photographs = $9, updated_at = $10
			WHERE id = $1
		`,
			rec.ID, rec.Patient.Name, nullTime(rec.Patient.BirthDate), string(rec.Patient.Gender), nullString(rec.Patient.Identification),
			string(rec.Status), p.characteristics, p.radiographs, p.photographs, rec.UpdatedAt,
		)
		if err != nil {
			return identificationConflict(err, rec.Patient.Identification)
		}
		out = rec
		return nil
	})
	if err != nil {
		return dentalrecords.DentalRecord{}, err
	}
	return out, nil
}

func (r *DentalRecordsRepo) List(ctx context.Context, f dentalrecords.ListFilter) ([]dentalrecords.DentalRecord, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + dentalRecordColumns + ` FROM dental_records WHERE 1=1`)
	args := []any{}
	argN := 1

	if f.Status != "" {
		sb.WriteString(fmt.Sprintf(" AND status = $%d", argN))
		args = append(args, string(f.Status))
		argN++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		sb.WriteString(fmt.Sprintf(" AND (patient_name ILIKE $%d OR COALESCE(patient_identification, '') ILIKE $%d)", argN, argN))
		args = append(args, likePattern(q))
		argN++
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	args = appendPaging(&sb, args, argN, f.Offset, f.Limit)

	return r.query(ctx, sb.String(), args...)
}

// SearchByCharacteristics traduce CharacteristicQuery a condiciones JSONB.
// Misma semántica que CharacteristicQuery.Matches.
func (r *DentalRecordsRepo) SearchByCharacteristics(ctx context.Context, q dentalrecords.CharacteristicQuery) ([]dentalrecords.DentalRecord, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + dentalRecordColumns + ` FROM dental_records d WHERE 1=1`)
	args := []any{}
	argN := 1

	if len(q.ToothStatuses) > 0 {
		statuses := make([]string, 0, len(q.ToothStatuses))
		for _, s := range q.ToothStatuses {
			statuses = append(statuses, string(s))
		}
		sb.WriteString(fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(d.characteristics->'teeth') t
			WHERE t->>'status' = ANY($%d))`, argN))
		args = append(args, statuses)
		argN++
	}
	if len(q.Treatments) > 0 {
		treatments := make([]string, 0, len(q.Treatments))
		for _, tr := range q.Treatments {
			treatments = append(treatments, string(tr))
		}
		sb.WriteString(fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(d.characteristics->'teeth') t,
				jsonb_array_elements_text(COALESCE(t->'treatments', '[]'::jsonb)) tr
			WHERE tr = ANY($%d))`, argN))
		args = append(args, treatments)
		argN++
	}

	general := []struct{ field, value string }{
		{"occlusion", q.Occlusion},
		{"palate", q.Palate},
		{"other", q.Other},
	}
	for _, g := range general {
		if g.value == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf(" AND COALESCE(d.characteristics->'general_characteristics'->>'%s', '') ILIKE $%d", g.field, argN))
		args = append(args, likePattern(g.value))
		argN++
	}
	if q.Anomaly != "" {
		sb.WriteString(fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(COALESCE(d.characteristics->'general_characteristics'->'anomalies', '[]'::jsonb)) a
			WHERE a ILIKE $%d)`, argN))
		args = append(args, likePattern(q.Anomaly))
		argN++
	}

	sb.WriteString(" ORDER BY d.created_at DESC, d.id DESC")
	args = appendPaging(&sb, args, argN, q.Offset, q.Limit)

	return r.query(ctx, sb.String(), args...)
}

func (r *DentalRecordsRepo) query(ctx context.Context, query string, args ...any) ([]dentalrecords.DentalRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]dentalrecords.DentalRecord, 0)
	for rows.Next() {
		rec, err := scanDentalRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type MatchesRepo struct {
	db *sql.DB
}

func NewMatchesRepo(db *sql.DB) *MatchesRepo {
	return &MatchesRepo{db: db}
}

func (r *MatchesRepo) Append(ctx context.Context, m dentalrecords.MatchRecord) error {
	details, err := encodeIDs(m.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO match_records (id, record_id, counterpart_kind, counterpart_id, score, details, matched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.RecordID, string(m.Counterpart.Kind), m.Counterpart.ID, m.Score, details, m.MatchedAt)
	return err
}

func (r *MatchesRepo) ListByRecord(ctx context.Context, recordID string) ([]dentalrecords.MatchRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, record_id, counterpart_kind, counterpart_id, score, details, matched_at
		FROM match_records
		WHERE record_id = $1
		ORDER BY seq ASC
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]dentalrecords.MatchRecord, 0)
	for rows.Next() {
		var (
			m    dentalrecords.MatchRecord
			kind string
			raw  []byte
		)
		if err := rows.Scan(&m.ID, &m.RecordID, &kind, &m.Counterpart.ID, &m.Score, &raw, &m.MatchedAt); err != nil {
			return nil, err
		}
		m.Counterpart.Kind = dentalrecords.CounterpartKind(kind)
		if err := json.Unmarshal(raw, &m.Details); err != nil {
			return nil, fmt.Errorf("match %s: decode details: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
