package dentalrecords

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/audit/audittest"
	c "odontolegal/internal/domain/characteristics"
	"odontolegal/internal/platform/logger"
	"odontolegal/internal/ports/auth"
)

// -------------------------
// Fakes
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]DentalRecord
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]DentalRecord{}} }

func (r *testRepo) identificationTaken(id, ident string) bool {
	if ident == "" {
		return false
	}
	for _, rec := range r.byID {
		if rec.ID != id && rec.Patient.Identification == ident {
			return true
		}
	}
	return false
}

func (r *testRepo) Create(ctx context.Context, rec DentalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identificationTaken(rec.ID, rec.Patient.Identification) {
		return apperr.Conflict("identification already registered")
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (DentalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return DentalRecord{}, apperr.NotFound("dental record %s", id)
	}
	return rec, nil
}

func (r *testRepo) Update(ctx context.Context, id string, mutate func(*DentalRecord) error) (DentalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return DentalRecord{}, apperr.NotFound("dental record %s", id)
	}
	if err := mutate(&rec); err != nil {
		return DentalRecord{}, err
	}
	if r.identificationTaken(rec.ID, rec.Patient.Identification) {
		return DentalRecord{}, apperr.Conflict("identification already registered")
	}
	r.byID[id] = rec
	return rec, nil
}

func (r *testRepo) List(ctx context.Context, f ListFilter) ([]DentalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DentalRecord, 0)
	for _, rec := range r.byID {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(rec.Patient.Name+" "+rec.Patient.Identification), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *testRepo) SearchByCharacteristics(ctx context.Context, q CharacteristicQuery) ([]DentalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DentalRecord, 0)
	for _, rec := range r.byID {
		if q.Matches(rec.Characteristics) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type testMatchRepo struct {
	mu   sync.Mutex
	all  []MatchRecord
	fail map[string]bool // recordID -> falla
}

func (m *testMatchRepo) Append(ctx context.Context, rec MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[rec.RecordID] {
		return errors.New("match store unavailable")
	}
	m.all = append(m.all, rec)
	return nil
}

func (m *testMatchRepo) ListByRecord(ctx context.Context, recordID string) ([]MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MatchRecord, 0)
	for _, rec := range m.all {
		if rec.RecordID == recordID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeCases struct{}

func (fakeCases) Exists(ctx context.Context, id string) error {
	if id != "case-1" {
		return apperr.NotFound("case %s", id)
	}
	return nil
}

type fakeObserver struct {
	mu       sync.Mutex
	scores   []float64
	failures map[string]int
}

func (o *fakeObserver) ObserveComparison(score float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scores = append(o.scores, score)
}

func (o *fakeObserver) AuditAppendFailed(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failures == nil {
		o.failures = map[string]int{}
	}
	o.failures[kind]++
}

// -------------------------
// Helpers
// -------------------------

var (
	owner  = auth.Claims{UserID: "u-owner", Name: "Dra. Silva"}
	expert = auth.Claims{UserID: "u-expert", Name: "Perito Rocha", Role: auth.RoleExpert}
	other  = auth.Claims{UserID: "u-other"}
)

type fixture struct {
	svc     *Service
	repo    *testRepo
	matches *testMatchRepo
	obs     *fakeObserver
	history *audittest.Repo
}

func newFixture() fixture {
	repo := newTestRepo()
	mr := &testMatchRepo{fail: map[string]bool{}}
	obs := &fakeObserver{}
	trail, history := audittest.NewTrail()
	svc := NewService(repo, NewRegistry(mr), fakeCases{}, trail, obs, logger.Nop())
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return fixture{svc: svc, repo: repo, matches: mr, obs: obs, history: history}
}

func tooth(n int, st c.ToothStatus, tr ...c.Treatment) c.ToothRecord {
	return c.ToothRecord{Number: n, Status: st, Treatments: tr}
}

func createRecord(t *testing.T, f fixture, cs c.CharacteristicSet) DentalRecord {
	t.Helper()
	rec, err := f.svc.Create(context.Background(), owner, CreateInput{Characteristics: cs})
	require.NoError(t, err)
	return rec
}

func singleTooth() c.CharacteristicSet {
	return c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(11, c.ToothPresent)}}
}

// -------------------------
// Tests
// -------------------------

func TestCreate_DefaultsAndValidation(t *testing.T) {
	f := newFixture()

	rec := createRecord(t, f, singleTooth())
	assert.Equal(t, StatusUnderAnalysis, rec.Status)
	assert.Equal(t, []audit.Action{audit.ActionCreation}, f.history.Actions(ref(rec.ID)))

	_, err := f.svc.Create(context.Background(), owner, CreateInput{
		Characteristics: c.CharacteristicSet{Teeth: []c.ToothRecord{tooth(9, c.ToothPresent)}},
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreate_DuplicateIdentificationConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, owner, CreateInput{Patient: Patient{Identification: "DNI-1"}, Characteristics: singleTooth()})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, owner, CreateInput{Patient: Patient{Identification: "DNI-1"}, Characteristics: singleTooth()})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestCompare_ScoreAndSideEffectsOnBothRecords(t *testing.T) {
	f := newFixture()
	a := createRecord(t, f, singleTooth())
	b := createRecord(t, f, singleTooth())

	res, err := f.svc.Compare(context.Background(), expert, a.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, 75.00, res.Score)
	assert.Equal(t, a.ID, res.RecordAID)
	assert.Equal(t, b.ID, res.RecordBID)
	assert.Contains(t, res.Details, "Tooth 11: same status (present)")

	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, a.ID}} {
		entries, err := f.svc.History(context.Background(), pair[0])
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, audit.ActionComparison, entries[1].Action)
		assert.Contains(t, entries[1].Details, "score 75.00%")

		ms, err := f.svc.Matches(context.Background(), pair[0])
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, Counterpart{Kind: CounterpartDentalRecord, ID: pair[1]}, ms[0].Counterpart)
		assert.Equal(t, 75.00, ms[0].Score)
	}
	assert.Equal(t, []float64{75}, f.obs.scores)
}

func TestCompare_RepeatedComparisonsAreNotDeduplicated(t *testing.T) {
	f := newFixture()
	a := createRecord(t, f, singleTooth())
	b := createRecord(t, f, singleTooth())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Compare(ctx, expert, a.ID, b.ID)
		require.NoError(t, err)
	}

	ms, err := f.svc.Matches(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, ms, 3)
}

func TestCompare_SameRecordAppendsOnce(t *testing.T) {
	f := newFixture()
	a := createRecord(t, f, singleTooth())

	_, err := f.svc.Compare(context.Background(), expert, a.ID, a.ID)
	require.NoError(t, err)

	assert.Equal(t, []audit.Action{audit.ActionCreation, audit.ActionComparison}, f.history.Actions(ref(a.ID)))
	ms, err := f.svc.Matches(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestCompare_MissingRecordIsNotFound(t *testing.T) {
	f := newFixture()
	a := createRecord(t, f, singleTooth())

	_, err := f.svc.Compare(context.Background(), expert, a.ID, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, f.matches.all)
}

func TestCompare_UnscoreableHasNoSideEffects(t *testing.T) {
	f := newFixture()
	a := createRecord(t, f, c.CharacteristicSet{})
	b := createRecord(t, f, singleTooth())

	_, err := f.svc.Compare(context.Background(), expert, a.ID, b.ID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Empty(t, f.matches.all)
	assert.Empty(t, f.obs.scores)
}

func TestCompare_OneSideRegistryFailureStillReturnsResult(t *testing.T) {
	f := newFixture()
	a := createRecord(t, f, singleTooth())
	b := createRecord(t, f, singleTooth())
	f.matches.fail[b.ID] = true

	res, err := f.svc.Compare(context.Background(), expert, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.00, res.Score)

	msA, _ := f.svc.Matches(context.Background(), a.ID)
	msB, _ := f.svc.Matches(context.Background(), b.ID)
	assert.Len(t, msA, 1)
	assert.Empty(t, msB)
	assert.Equal(t, 1, f.obs.failures["match_registry"])

	// el historial de B se escribió igual
	assert.Equal(t, []audit.Action{audit.ActionCreation, audit.ActionComparison}, f.history.Actions(ref(b.ID)))
}

func TestUpdateAndIdentify(t *testing.T) {
	f := newFixture()
	rec := createRecord(t, f, singleTooth())
	ctx := context.Background()

	st := StatusUnidentified
	_, err := f.svc.Update(ctx, other, rec.ID, UpdateInput{Status: &st})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	got, err := f.svc.Update(ctx, expert, rec.ID, UpdateInput{Status: &st, Radiographs: []string{"ev-1", "ev-1", " "}})
	require.NoError(t, err)
	assert.Equal(t, StatusUnidentified, got.Status)
	assert.Equal(t, []string{"ev-1"}, got.Radiographs)

	got, err = f.svc.Identify(ctx, owner, rec.ID, Patient{Name: "Juan Pérez", Identification: "DNI-7"})
	require.NoError(t, err)
	assert.Equal(t, StatusIdentified, got.Status)
	assert.Equal(t, "Juan Pérez", got.Patient.Name)

	assert.Equal(t, []audit.Action{
		audit.ActionCreation, audit.ActionEdit, audit.ActionIdentification,
	}, f.history.Actions(ref(rec.ID)))
}

func TestRecordCaseMatch(t *testing.T) {
	f := newFixture()
	rec := createRecord(t, f, singleTooth())
	ctx := context.Background()

	_, err := f.svc.RecordCaseMatch(ctx, owner, rec.ID, "case-1", 80, nil)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.RecordCaseMatch(ctx, expert, rec.ID, "case-9", 80, nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.RecordCaseMatch(ctx, expert, rec.ID, "case-1", 120, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	m, err := f.svc.RecordCaseMatch(ctx, expert, rec.ID, "case-1", 80, []string{"manual"})
	require.NoError(t, err)
	assert.Equal(t, Counterpart{Kind: CounterpartCase, ID: "case-1"}, m.Counterpart)
}

func TestSearchByCharacteristics(t *testing.T) {
	f := newFixture()
	crowned := createRecord(t, f, c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(16, c.ToothTreated, c.TreatmentCrown)},
		General: c.GeneralCharacteristics{Occlusion: "Class II", Anomalies: []string{"Diastema superior"}},
	})
	createRecord(t, f, c.CharacteristicSet{
		Teeth:   []c.ToothRecord{tooth(16, c.ToothTreated, c.TreatmentCanal)},
		General: c.GeneralCharacteristics{Occlusion: "class II"},
	})
	ctx := context.Background()

	got, err := f.svc.SearchByCharacteristics(ctx, CharacteristicQuery{
		ToothStatuses: []c.ToothStatus{c.ToothTreated},
		Treatments:    []c.Treatment{c.TreatmentCrown},
		Occlusion:     "class ii",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, crowned.ID, got[0].ID)

	got, err = f.svc.SearchByCharacteristics(ctx, CharacteristicQuery{Anomaly: "diastema"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = f.svc.SearchByCharacteristics(ctx, CharacteristicQuery{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.SearchByCharacteristics(ctx, CharacteristicQuery{Treatments: []c.Treatment{"veneer"}})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestGet_RecordsView(t *testing.T) {
	f := newFixture()
	rec := createRecord(t, f, singleTooth())

	d, err := f.svc.Get(context.Background(), expert, rec.ID)
	require.NoError(t, err)
	require.Len(t, d.History, 2)
	assert.Equal(t, audit.ActionView, d.History[1].Action)
}
