package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/characteristics"
	"odontolegal/internal/domain/dentalrecords"
)

type dentalRecordRepo struct {
	mu   sync.RWMutex
	byID map[string]dentalrecords.DentalRecord
}

func NewDentalRecordRepo() dentalrecords.Repository {
	return &dentalRecordRepo{
		byID: make(map[string]dentalrecords.DentalRecord),
	}
}

func cloneRecord(r dentalrecords.DentalRecord) dentalrecords.DentalRecord {
	teeth := make([]characteristics.ToothRecord, len(r.Characteristics.Teeth))
	for i, t := range r.Characteristics.Teeth {
		t.Treatments = append([]characteristics.Treatment(nil), t.Treatments...)
		teeth[i] = t
	}
	r.Characteristics.Teeth = teeth
	r.Characteristics.General.Anomalies = append([]string(nil), r.Characteristics.General.Anomalies...)
	r.Radiographs = append([]string(nil), r.Radiographs...)
	r.Photographs = append([]string(nil), r.Photographs...)
	return r
}

// identificationTaken se llama con el lock tomado.
func (r *dentalRecordRepo) identificationTaken(id, identification string) bool {
	if identification == "" {
		return false
	}
	for _, rec := range r.byID {
		if rec.ID != id && rec.Patient.Identification == identification {
			return true
		}
	}
	return false
}

func (r *dentalRecordRepo) Create(ctx context.Context, rec dentalrecords.DentalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("dental record id required")
	}
	if _, exists := r.byID[rec.ID]; exists {
		return errors.New("dental record already exists")
	}
	if r.identificationTaken(rec.ID, rec.Patient.Identification) {
		return apperr.Conflict("patient identification %q already registered", rec.Patient.Identification)
	}
	r.byID[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *dentalRecordRepo) GetByID(ctx context.Context, id string) (dentalrecords.DentalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return dentalrecords.DentalRecord{}, apperr.NotFound("dental record %s", id)
	}
	return cloneRecord(rec), nil
}

func (r *dentalRecordRepo) Update(ctx context.Context, id string, mutate func(*dentalrecords.DentalRecord) error) (dentalrecords.DentalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return dentalrecords.DentalRecord{}, apperr.NotFound("dental record %s", id)
	}
	rec = cloneRecord(rec)
	if err := mutate(&rec); err != nil {
		return dentalrecords.DentalRecord{}, err
	}
	if r.identificationTaken(rec.ID, rec.Patient.Identification) {
		return dentalrecords.DentalRecord{}, apperr.Conflict("patient identification %q already registered", rec.Patient.Identification)
	}
	r.byID[id] = cloneRecord(rec)
	return rec, nil
}

func (r *dentalRecordRepo) List(ctx context.Context, f dentalrecords.ListFilter) ([]dentalrecords.DentalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]dentalrecords.DentalRecord, 0)
	for _, rec := range r.byID {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(rec.Patient.Name), q) &&
			!strings.Contains(strings.ToLower(rec.Patient.Identification), q) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sortRecords(out)
	return page(out, f.Offset, f.Limit), nil
}

func (r *dentalRecordRepo) SearchByCharacteristics(ctx context.Context, q dentalrecords.CharacteristicQuery) ([]dentalrecords.DentalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]dentalrecords.DentalRecord, 0)
	for _, rec := range r.byID {
		if q.Matches(rec.Characteristics) {
			out = append(out, cloneRecord(rec))
		}
	}
	sortRecords(out)
	return page(out, q.Offset, q.Limit), nil
}

func sortRecords(items []dentalrecords.DentalRecord) {
	newestFirst(items,
		func(r dentalrecords.DentalRecord) time.Time { return r.CreatedAt },
		func(r dentalrecords.DentalRecord) string { return r.ID })
}

type matchRepo struct {
	mu       sync.RWMutex
	byRecord map[string][]dentalrecords.MatchRecord
}

func NewMatchRepo() dentalrecords.MatchRepository {
	return &matchRepo{
		byRecord: make(map[string][]dentalrecords.MatchRecord),
	}
}

func (r *matchRepo) Append(ctx context.Context, m dentalrecords.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.Details = append([]string(nil), m.Details...)
	r.byRecord[m.RecordID] = append(r.byRecord[m.RecordID], m)
	return nil
}

func (r *matchRepo) ListByRecord(ctx context.Context, recordID string) ([]dentalrecords.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]dentalrecords.MatchRecord{}, r.byRecord[recordID]...), nil
}
