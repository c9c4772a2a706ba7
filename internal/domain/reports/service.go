package reports

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
	"odontolegal/internal/ports/render"
)

type CaseLookup interface {
	Exists(ctx context.Context, id string) error
	RecordAttachment(ctx context.Context, caseID string, actor auth.Claims, details string)
}

// EditCounter cuenta ediciones confirmadas (métricas). Puede ser nil.
type EditCounter interface {
	IncReportEdits()
}

type Service struct {
	repo     Repository
	cases    CaseLookup
	trail    *audit.Trail
	renderer render.Renderer
	edits    EditCounter
	now      func() time.Time
}

func NewService(repo Repository, cases CaseLookup, trail *audit.Trail, renderer render.Renderer, edits EditCounter) *Service {
	return &Service{
		repo:     repo,
		cases:    cases,
		trail:    trail,
		renderer: renderer,
		edits:    edits,
		now:      time.Now,
	}
}

type CreateInput struct {
	CaseID      string
	Title       string
	Template    Template
	Content     Content
	Attachments []Attachment
}

type Detail struct {
	Report  Report
	History []audit.Entry
}

func ref(id string) audit.Ref {
	return audit.Ref{Kind: audit.KindReport, ID: id}
}

func (s *Service) Create(ctx context.Context, actor auth.Claims, in CreateInput) (Report, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return Report{}, apperr.Forbidden("actor required")
	}
	caseID := strings.TrimSpace(in.CaseID)
	if caseID == "" {
		return Report{}, apperr.Validation("case_id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return Report{}, apperr.Validation("title is required")
	}
	if in.Template == "" {
		in.Template = TemplateGeneral
	}
	if !in.Template.Valid() {
		return Report{}, apperr.Validation("unknown template %q", in.Template)
	}
	if err := in.Content.validate(); err != nil {
		return Report{}, err
	}
	if err := s.cases.Exists(ctx, caseID); err != nil {
		return Report{}, err
	}

	now := s.now()
	r := Report{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		Title:       strings.TrimSpace(in.Title),
		Template:    in.Template,
		Content:     cloneContent(in.Content),
		Attachments: append([]Attachment(nil), in.Attachments...),
		Status:      StatusDraft,
		Version:     1,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return Report{}, err
	}

	s.trail.Record(ctx, ref(r.ID), audit.ActionCreation, audit.UserRefFrom(actor),
		fmt.Sprintf("Report created by %s", actor.DisplayName()))
	s.cases.RecordAttachment(ctx, caseID, actor,
		fmt.Sprintf("Report %q added by %s", r.Title, actor.DisplayName()))
	return r, nil
}

// Get registra "view" antes de devolver el laudo.
func (s *Service) Get(ctx context.Context, actor auth.Claims, id string) (Detail, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	s.trail.Record(ctx, ref(r.ID), audit.ActionView, audit.UserRefFrom(actor),
		fmt.Sprintf("Report viewed by %s", actor.DisplayName()))

	history, err := s.trail.Entries(ctx, ref(r.ID))
	if err != nil {
		return Detail{}, err
	}
	return Detail{Report: r, History: history}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Report{}, apperr.Validation("report id required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, caseID string, offset, limit int) ([]Report, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID != "" {
		if err := s.cases.Exists(ctx, caseID); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, caseID, offset, limit)
}

// Update aplica una edición versionada. Permiso y estado se evalúan sobre
// la lectura tomada dentro del update atómico.
func (s *Service) Update(ctx context.Context, actor auth.Claims, id string, edit Edit) (Report, error) {
	editor := audit.UserRefFrom(actor)

	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), func(r *Report) error {
		if !policy.Allow(policy.OwnerAdminOrExpert, actor, r.CreatedBy) {
			return apperr.Forbidden("cannot edit report")
		}
		next, err := CommitEdit(*r, edit, editor, s.now())
		if err != nil {
			return err
		}
		*r = next
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	if s.edits != nil {
		s.edits.IncReportEdits()
	}
	s.trail.Record(ctx, ref(updated.ID), audit.ActionEdit, editor,
		fmt.Sprintf("Report edited by %s (version %d)", actor.DisplayName(), updated.Version))
	return updated, nil
}

// SubmitForReview pasa el laudo de draft a review.
func (s *Service) SubmitForReview(ctx context.Context, actor auth.Claims, id string) (Report, error) {
	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), func(r *Report) error {
		if !policy.Allow(policy.OwnerAdminOrExpert, actor, r.CreatedBy) {
			return apperr.Forbidden("cannot submit report")
		}
		if r.Status != StatusDraft {
			return apperr.InvalidState("report %s is %s, only drafts can be submitted", r.ID, r.Status)
		}
		r.Status = StatusReview
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	s.trail.Record(ctx, ref(updated.ID), audit.ActionReview, audit.UserRefFrom(actor),
		fmt.Sprintf("Report submitted for review by %s", actor.DisplayName()))
	return updated, nil
}

func (s *Service) Finalize(ctx context.Context, actor auth.Claims, id string) (Report, error) {
	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), func(r *Report) error {
		if r.Status == StatusFinalized {
			return apperr.InvalidState("report %s is already finalized", r.ID)
		}
		if !policy.Allow(policy.AdminOrExpert, actor, r.CreatedBy) {
			return apperr.Forbidden("cannot finalize report")
		}
		now := s.now()
		r.Status = StatusFinalized
		r.ReviewedBy = actor.UserID
		r.ReviewDate = &now
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	s.trail.Record(ctx, ref(updated.ID), audit.ActionFinalization, audit.UserRefFrom(actor),
		fmt.Sprintf("Report finalized by %s", actor.DisplayName()))
	return updated, nil
}

// Versions devuelve los snapshots, el más viejo primero.
func (s *Service) Versions(ctx context.Context, id string) ([]VersionSnapshot, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.PreviousVersions, nil
}

// Export genera el documento de un laudo finalizado.
func (s *Service) Export(ctx context.Context, actor auth.Claims, id string) (render.Artifact, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return render.Artifact{}, err
	}
	if r.Status != StatusFinalized {
		return render.Artifact{}, apperr.InvalidState("report %s must be finalized before export", r.ID)
	}
	if s.renderer == nil {
		return render.Artifact{}, fmt.Errorf("export report %s: no renderer configured", r.ID)
	}

	art, err := s.renderer.Render(ctx, toDocument(r))
	if err != nil {
		return render.Artifact{}, fmt.Errorf("export report %s: %w", r.ID, err)
	}
	return art, nil
}

// DeleteByCase implementa cases.Dependent.
func (s *Service) DeleteByCase(ctx context.Context, caseID string) error {
	ids, err := s.repo.DeleteByCase(ctx, caseID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.trail.Purge(ctx, ref(id)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) History(ctx context.Context, id string) ([]audit.Entry, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.trail.Entries(ctx, ref(r.ID))
}

func toDocument(r Report) render.Document {
	return render.Document{
		ReportID: r.ID,
		CaseID:   r.CaseID,
		Title:    r.Title,
		Template: string(r.Template),
		Version:  r.Version,
		Sections: []render.Section{
			{Heading: "Introduction", Body: r.Content.Introduction},
			{Heading: "Methodology", Body: r.Content.Methodology},
			{Heading: "Analysis", Body: r.Content.Analysis},
			{Heading: "Conclusion", Body: r.Content.Conclusion},
		},
		References: r.Content.References,
		Author:     r.CreatedBy,
		Reviewer:   r.ReviewedBy,
	}
}
