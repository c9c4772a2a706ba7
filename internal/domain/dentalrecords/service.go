package dentalrecords

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/cases"
	"odontolegal/internal/domain/characteristics"
	"odontolegal/internal/domain/matching"
	"odontolegal/internal/domain/policy"
	"odontolegal/internal/platform/logger"
	"odontolegal/internal/ports/auth"
)

// CaseLookup permite registrar matches contra casos existentes.
type CaseLookup interface {
	Exists(ctx context.Context, id string) error
}

// Observer recibe métricas de comparaciones y fallas del registro de matches.
type Observer interface {
	ObserveComparison(score float64)
	AuditAppendFailed(kind string)
}

type Service struct {
	repo     Repository
	registry *Registry
	cases    CaseLookup
	trail    *audit.Trail
	obs      Observer
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, registry *Registry, cases CaseLookup, trail *audit.Trail, obs Observer, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewFromEnv()
	}
	return &Service{
		repo:     repo,
		registry: registry,
		cases:    cases,
		trail:    trail,
		obs:      obs,
		log:      log,
		now:      time.Now,
	}
}

type CreateInput struct {
	Patient         Patient
	Status          Status
	Characteristics characteristics.CharacteristicSet
	Radiographs     []string
	Photographs     []string
}

type Detail struct {
	Record  DentalRecord
	History []audit.Entry
}

// Comparison es el resultado devuelto al cliente.
type Comparison struct {
	Score     float64
	Details   []string
	RecordAID string
	RecordBID string
}

func ref(id string) audit.Ref {
	return audit.Ref{Kind: audit.KindDentalRecord, ID: id}
}

func (s *Service) Create(ctx context.Context, actor auth.Claims, in CreateInput) (DentalRecord, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return DentalRecord{}, apperr.Forbidden("actor required")
	}
	if in.Status == "" {
		in.Status = StatusUnderAnalysis
	}
	if !in.Status.Valid() {
		return DentalRecord{}, apperr.Validation("unknown status %q", in.Status)
	}
	patient, err := normalizePatient(in.Patient)
	if err != nil {
		return DentalRecord{}, err
	}
	if err := in.Characteristics.Validate(); err != nil {
		return DentalRecord{}, err
	}

	now := s.now()
	r := DentalRecord{
		ID:              uuid.NewString(),
		Patient:         patient,
		Status:          in.Status,
		Characteristics: in.Characteristics,
		Radiographs:     cleanIDs(in.Radiographs),
		Photographs:     cleanIDs(in.Photographs),
		CreatedBy:       actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return DentalRecord{}, err
	}

	s.trail.Record(ctx, ref(r.ID), audit.ActionCreation, audit.UserRefFrom(actor),
		fmt.Sprintf("Dental record created by %s", actor.DisplayName()))
	return r, nil
}

// Get registra "view" antes de devolver la ficha.
func (s *Service) Get(ctx context.Context, actor auth.Claims, id string) (Detail, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	s.trail.Record(ctx, ref(r.ID), audit.ActionView, audit.UserRefFrom(actor),
		fmt.Sprintf("Dental record viewed by %s", actor.DisplayName()))

	history, err := s.trail.Entries(ctx, ref(r.ID))
	if err != nil {
		return Detail{}, err
	}
	return Detail{Record: r, History: history}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (DentalRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DentalRecord{}, apperr.Validation("dental record id required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]DentalRecord, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", filter.Status)
	}
	filter.Query = strings.TrimSpace(filter.Query)
	return s.repo.List(ctx, filter)
}

// Search busca texto libre en nombre e identificación del paciente.
func (s *Service) Search(ctx context.Context, query string, offset, limit int) ([]DentalRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	return s.repo.List(ctx, ListFilter{Query: query, Offset: offset, Limit: limit})
}

func (s *Service) SearchByCharacteristics(ctx context.Context, q CharacteristicQuery) ([]DentalRecord, error) {
	for _, st := range q.ToothStatuses {
		if !st.Valid() {
			return nil, apperr.Validation("unknown tooth status %q", st)
		}
	}
	for _, t := range q.Treatments {
		if !t.Valid() {
			return nil, apperr.Validation("unknown treatment %q", t)
		}
	}
	q.Occlusion = strings.TrimSpace(q.Occlusion)
	q.Palate = strings.TrimSpace(q.Palate)
	q.Anomaly = strings.TrimSpace(q.Anomaly)
	q.Other = strings.TrimSpace(q.Other)
	if q.Empty() {
		return nil, apperr.Validation("at least one search criterion is required")
	}
	return s.repo.SearchByCharacteristics(ctx, q)
}

type UpdateInput struct {
	Patient         *Patient
	Status          *Status
	Characteristics *characteristics.CharacteristicSet
	Radiographs     []string // nil = no tocar
	Photographs     []string
}

func (s *Service) Update(ctx context.Context, actor auth.Claims, id string, in UpdateInput) (DentalRecord, error) {
	if in.Characteristics != nil {
		if err := in.Characteristics.Validate(); err != nil {
			return DentalRecord{}, err
		}
	}

	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), func(r *DentalRecord) error {
		if !policy.Allow(policy.OwnerAdminOrExpert, actor, r.CreatedBy) {
			return apperr.Forbidden("cannot edit dental record")
		}
		if in.Patient != nil {
			p, err := normalizePatient(*in.Patient)
			if err != nil {
				return err
			}
			r.Patient = p
		}
		if in.Status != nil {
			if !in.Status.Valid() {
				return apperr.Validation("unknown status %q", *in.Status)
			}
			r.Status = *in.Status
		}
		if in.Characteristics != nil {
			r.Characteristics = *in.Characteristics
		}
		if in.Radiographs != nil {
			r.Radiographs = cleanIDs(in.Radiographs)
		}
		if in.Photographs != nil {
			r.Photographs = cleanIDs(in.Photographs)
		}
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return DentalRecord{}, err
	}

	s.trail.Record(ctx, ref(updated.ID), audit.ActionEdit, audit.UserRefFrom(actor),
		fmt.Sprintf("Dental record edited by %s", actor.DisplayName()))
	return updated, nil
}

// Identify marca la ficha como identificada con los datos del paciente.
func (s *Service) Identify(ctx context.Context, actor auth.Claims, id string, patient Patient) (DentalRecord, error) {
	p, err := normalizePatient(patient)
	if err != nil {
		return DentalRecord{}, err
	}
	if p.Name == "" && p.Identification == "" {
		return DentalRecord{}, apperr.Validation("patient name or identification required")
	}

	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), func(r *DentalRecord) error {
		if !policy.Allow(policy.OwnerAdminOrExpert, actor, r.CreatedBy) {
			return apperr.Forbidden("cannot identify dental record")
		}
		r.Patient = p
		r.Status = StatusIdentified
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return DentalRecord{}, err
	}

	s.trail.Record(ctx, ref(updated.ID), audit.ActionIdentification, audit.UserRefFrom(actor),
		fmt.Sprintf("Dental record identified by %s", actor.DisplayName()))
	return updated, nil
}

// Compare puntúa b contra a y deja constancia en ambas fichas. Los efectos
// (historial y registro de matches) no son atómicos entre sí: una falla en
// un lado se loguea y el resultado se devuelve igual.
func (s *Service) Compare(ctx context.Context, actor auth.Claims, idA, idB string) (Comparison, error) {
	idA, idB = strings.TrimSpace(idA), strings.TrimSpace(idB)
	if idA == "" || idB == "" {
		return Comparison{}, apperr.Validation("both record ids are required")
	}

	var a, b DentalRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.repo.GetByID(gctx, idA)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = s.repo.GetByID(gctx, idB)
		return err
	})
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}

	res, err := matching.Compare(a.Characteristics, b.Characteristics)
	if err != nil {
		return Comparison{}, err
	}
	if s.obs != nil {
		s.obs.ObserveComparison(res.Score)
	}

	details := fmt.Sprintf("Comparison performed: score %s%%", matching.FormatScore(res.Score))
	s.recordComparison(ctx, actor, a.ID, b.ID, details, res)
	if a.ID != b.ID {
		s.recordComparison(ctx, actor, b.ID, a.ID, details, res)
	}

	return Comparison{
		Score:     res.Score,
		Details:   res.Details,
		RecordAID: a.ID,
		RecordBID: b.ID,
	}, nil
}

func (s *Service) recordComparison(ctx context.Context, actor auth.Claims, self, other, details string, res matching.Result) {
	s.trail.Record(ctx, ref(self), audit.ActionComparison, audit.UserRefFrom(actor),
		fmt.Sprintf("%s against %s", details, other))

	cp := Counterpart{Kind: CounterpartDentalRecord, ID: other}
	if _, err := s.registry.Record(ctx, self, cp, res.Score, res.Details); err != nil {
		s.registryFailed(self, cp, err)
	}
}

// RecordCaseMatch guarda en la ficha un match contra un caso (admin o perito).
func (s *Service) RecordCaseMatch(ctx context.Context, actor auth.Claims, recordID, caseID string, score float64, details []string) (MatchRecord, error) {
	if !policy.Allow(policy.AdminOrExpert, actor, "") {
		return MatchRecord{}, apperr.Forbidden("cannot register case match")
	}
	r, err := s.GetByID(ctx, recordID)
	if err != nil {
		return MatchRecord{}, err
	}
	caseID = strings.TrimSpace(caseID)
	if err := s.cases.Exists(ctx, caseID); err != nil {
		return MatchRecord{}, err
	}

	m, err := s.registry.Record(ctx, r.ID, Counterpart{Kind: CounterpartCase, ID: caseID}, score, details)
	if err != nil {
		return MatchRecord{}, err
	}

	s.trail.Record(ctx, ref(r.ID), audit.ActionComparison, audit.UserRefFrom(actor),
		fmt.Sprintf("Match with case %s registered by %s: score %s%%", caseID, actor.DisplayName(), matching.FormatScore(score)))
	return m, nil
}

func (s *Service) Matches(ctx context.Context, recordID string) ([]MatchRecord, error) {
	r, err := s.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return s.registry.List(ctx, r.ID)
}

func (s *Service) History(ctx context.Context, id string) ([]audit.Entry, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.trail.Entries(ctx, ref(r.ID))
}

func (s *Service) registryFailed(recordID string, cp Counterpart, cause error) {
	err := fmt.Errorf("%w: match registry %s: %v", apperr.ErrAuditAppendFailed, recordID, cause)
	if s.obs != nil {
		s.obs.AuditAppendFailed("match_registry")
	}
	fields := map[string]any{
		"record_id":        recordID,
		"counterpart_kind": string(cp.Kind),
		"counterpart_id":   cp.ID,
		"error":            err.Error(),
	}
	if errors.Is(cause, apperr.ErrValidation) {
		s.log.Error("match record rejected", fields)
		return
	}
	s.log.Warn("match record not persisted (recoverable)", fields)
}

func normalizePatient(p Patient) (Patient, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Identification = strings.TrimSpace(p.Identification)
	if p.Gender == "" {
		p.Gender = cases.GenderNotInformed
	}
	if !p.Gender.Valid() {
		return Patient{}, apperr.Validation("unknown gender %q", p.Gender)
	}
	return p, nil
}

func cleanIDs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
