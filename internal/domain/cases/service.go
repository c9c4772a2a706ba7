package cases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/policy"
	"odontolegal/internal/ports/auth"
)

// Dependent es una entidad hija del caso (evidencias, laudos) que se borra en cascada.
type Dependent interface {
	DeleteByCase(ctx context.Context, caseID string) error
}

type Service struct {
	repo       Repository
	trail      *audit.Trail
	dependents []Dependent
	now        func() time.Time
}

func NewService(repo Repository, trail *audit.Trail) *Service {
	return &Service{
		repo:  repo,
		trail: trail,
		now:   time.Now,
	}
}

// AddDependents registra hijos para el borrado en cascada. Se llama desde
// el router para evitar ciclos de imports (cases <-> evidence/reports).
func (s *Service) AddDependents(deps ...Dependent) {
	s.dependents = append(s.dependents, deps...)
}

type CreateInput struct {
	Title       string
	Description string
	Type        Type
	AssignedTo  string
	Patient     Patient
}

// Detail es lo que devuelve una lectura por ID: el caso y su historial
// (que ya incluye la entrada "view" de esta misma lectura).
type Detail struct {
	Case    Case
	History []audit.Entry
}

func ref(id string) audit.Ref {
	return audit.Ref{Kind: audit.KindCase, ID: id}
}

func (s *Service) Create(ctx context.Context, actor auth.Claims, in CreateInput) (Case, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return Case{}, apperr.Forbidden("actor required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return Case{}, apperr.Validation("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return Case{}, apperr.Validation("description is required")
	}
	if !in.Type.Valid() {
		return Case{}, apperr.Validation("unknown case type %q", in.Type)
	}

	patient, err := normalizePatient(in.Patient)
	if err != nil {
		return Case{}, err
	}

	assigned := strings.TrimSpace(in.AssignedTo)
	if assigned == "" {
		assigned = actor.UserID
	}

	now := s.now()
	c := Case{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		Status:      StatusPending,
		AssignedTo:  assigned,
		Patient:     patient,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return Case{}, err
	}

	s.trail.Record(ctx, ref(c.ID), audit.ActionCreation, audit.UserRefFrom(actor),
		fmt.Sprintf("Case created by %s", actor.DisplayName()))
	return c, nil
}

// Get es una lectura auditada: registra "view" antes de devolver el caso.
func (s *Service) Get(ctx context.Context, actor auth.Claims, id string) (Detail, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	s.trail.Record(ctx, ref(c.ID), audit.ActionView, audit.UserRefFrom(actor),
		fmt.Sprintf("Case viewed by %s", actor.DisplayName()))

	history, err := s.trail.Entries(ctx, ref(c.ID))
	if err != nil {
		return Detail{}, err
	}
	return Detail{Case: c, History: history}, nil
}

// GetByID lectura interna sin efectos en el historial.
func (s *Service) GetByID(ctx context.Context, id string) (Case, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Case{}, apperr.Validation("case id required")
	}
	return s.repo.GetByID(ctx, id)
}

// Exists implementa CaseLookup para evidencias y laudos.
func (s *Service) Exists(ctx context.Context, id string) error {
	_, err := s.GetByID(ctx, id)
	return err
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Case, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperr.Validation("unknown case type %q", filter.Type)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperr.Validation("to must not be before from")
	}
	return s.repo.List(ctx, filter)
}

// UpdateInput usa punteros: nil = no tocar.
type UpdateInput struct {
	Title       *string
	Description *string
	Type        *Type
	AssignedTo  *string
	Patient     *Patient
}

func (s *Service) Update(ctx context.Context, actor auth.Claims, id string, in UpdateInput) (Case, error) {
	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), func(c *Case) error {
		if !policy.Allow(policy.OwnerAdminOrExpert, actor, c.CreatedBy) {
			return apperr.Forbidden("cannot edit case")
		}
		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return apperr.Validation("title cannot be empty")
			}
			c.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			if strings.TrimSpace(*in.Description) == "" {
				return apperr.Validation("description cannot be empty")
			}
			c.Description = strings.TrimSpace(*in.Description)
		}
		if in.Type != nil {
			if !in.Type.Valid() {
				return apperr.Validation("unknown case type %q", *in.Type)
			}
			c.Type = *in.Type
		}
		if in.AssignedTo != nil {
			if strings.TrimSpace(*in.AssignedTo) == "" {
				return apperr.Validation("assigned_to cannot be empty")
			}
			c.AssignedTo = strings.TrimSpace(*in.AssignedTo)
		}
		if in.Patient != nil {
			p, err := normalizePatient(*in.Patient)
			if err != nil {
				return err
			}
			c.Patient = p
		}
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return Case{}, err
	}

	s.trail.Record(ctx, ref(updated.ID), audit.ActionEdit, audit.UserRefFrom(actor),
		fmt.Sprintf("Case edited by %s", actor.DisplayName()))
	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor auth.Claims, id string, status Status) (Case, error) {
	if !status.Valid() {
		return Case{}, apperr.Validation("unknown status %q", status)
	}

	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), func(c *Case) error {
		if !policy.Allow(policy.OwnerAdminOrExpert, actor, c.CreatedBy) {
			return apperr.Forbidden("cannot change case status")
		}
		c.Status = status
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return Case{}, err
	}

	s.trail.Record(ctx, ref(updated.ID), audit.ActionStatusChanged, audit.UserRefFrom(actor),
		fmt.Sprintf("Status changed to %s by %s", status, actor.DisplayName()))
	return updated, nil
}

// Delete borra el caso, sus hijos y todos los historiales (cascade).
func (s *Service) Delete(ctx context.Context, actor auth.Claims, id string) error {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !policy.Allow(policy.OwnerOrAdmin, actor, c.CreatedBy) {
		return apperr.Forbidden("cannot delete case")
	}

	for _, d := range s.dependents {
		if err := d.DeleteByCase(ctx, c.ID); err != nil {
			return fmt.Errorf("delete case %s dependents: %w", c.ID, err)
		}
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		return err
	}
	return s.trail.Purge(ctx, ref(c.ID))
}

// RecordAttachment registra en el caso que se le anexó un documento
// (evidencia o laudo). La mutación del hijo ya está confirmada.
func (s *Service) RecordAttachment(ctx context.Context, caseID string, actor auth.Claims, details string) {
	s.trail.Record(ctx, ref(caseID), audit.ActionAttachmentAdded, audit.UserRefFrom(actor), details)
}

func (s *Service) History(ctx context.Context, id string) ([]audit.Entry, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.trail.Entries(ctx, ref(c.ID))
}

func normalizePatient(p Patient) (Patient, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Identification = strings.TrimSpace(p.Identification)
	if p.Gender == "" {
		p.Gender = GenderNotInformed
	}
	if !p.Gender.Valid() {
		return Patient{}, apperr.Validation("unknown gender %q", p.Gender)
	}
	return p, nil
}
