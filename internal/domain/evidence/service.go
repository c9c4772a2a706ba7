package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/policy"
	"odontolegal/internal/platform/logger"
	"odontolegal/internal/ports/auth"
	"odontolegal/internal/ports/files"
)

// CaseLookup es lo que evidencias necesita del módulo de casos.
type CaseLookup interface {
	Exists(ctx context.Context, id string) error
	RecordAttachment(ctx context.Context, caseID string, actor auth.Claims, details string)
}

type Service struct {
	repo  Repository
	cases CaseLookup
	store files.Store
	trail *audit.Trail
	log   logger.Logger
	now   func() time.Time
}

func NewService(repo Repository, cases CaseLookup, store files.Store, trail *audit.Trail, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewFromEnv()
	}
	return &Service{
		repo:  repo,
		cases: cases,
		store: store,
		trail: trail,
		log:   log,
		now:   time.Now,
	}
}

type CreateInput struct {
	CaseID      string
	Type        Type
	Title       string
	Description string
	Category    Category
	Metadata    map[string]string
	Files       []files.Upload
}

type Detail struct {
	Evidence Evidence
	History  []audit.Entry
}

func ref(id string) audit.Ref {
	return audit.Ref{Kind: audit.KindEvidence, ID: id}
}

func (s *Service) Create(ctx context.Context, actor auth.Claims, in CreateInput) (Evidence, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return Evidence{}, apperr.Forbidden("actor required")
	}
	caseID := strings.TrimSpace(in.CaseID)
	if caseID == "" {
		return Evidence{}, apperr.Validation("case_id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return Evidence{}, apperr.Validation("title is required")
	}
	if !in.Type.Valid() {
		return Evidence{}, apperr.Validation("unknown evidence type %q", in.Type)
	}
	if in.Category == "" {
		in.Category = CategoryOther
	}
	if !in.Category.Valid() {
		return Evidence{}, apperr.Validation("unknown category %q", in.Category)
	}
	if err := validateUploads(in.Files, 0); err != nil {
		return Evidence{}, err
	}

	if err := s.cases.Exists(ctx, caseID); err != nil {
		return Evidence{}, err
	}

	stored, err := s.saveFiles(ctx, in.Files)
	if err != nil {
		return Evidence{}, err
	}

	now := s.now()
	e := Evidence{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Files:       stored,
		Metadata:    cleanMetadata(in.Metadata),
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		s.removeFiles(ctx, stored)
		return Evidence{}, err
	}

	s.trail.Record(ctx, ref(e.ID), audit.ActionCreation, audit.UserRefFrom(actor),
		fmt.Sprintf("Evidence created by %s", actor.DisplayName()))
	s.cases.RecordAttachment(ctx, caseID, actor,
		fmt.Sprintf("Evidence %q added by %s", e.Title, actor.DisplayName()))
	return e, nil
}

// Get registra "view" antes de devolver la evidencia.
func (s *Service) Get(ctx context.Context, actor auth.Claims, id string) (Detail, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	s.trail.Record(ctx, ref(e.ID), audit.ActionView, audit.UserRefFrom(actor),
		fmt.Sprintf("Evidence viewed by %s", actor.DisplayName()))

	history, err := s.trail.Entries(ctx, ref(e.ID))
	if err != nil {
		return Detail{}, err
	}
	return Detail{Evidence: e, History: history}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Evidence, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Evidence{}, apperr.Validation("evidence id required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByCase(ctx context.Context, caseID string, offset, limit int) ([]Evidence, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, apperr.Validation("case id required")
	}
	if err := s.cases.Exists(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, caseID, offset, limit)
}

func (s *Service) List(ctx context.Context, offset, limit int) ([]Evidence, error) {
	return s.repo.List(ctx, "", offset, limit)
}

type UpdateInput struct {
	Title       *string
	Description *string
	Type        *Type
	Category    *Category
	Metadata    map[string]string // nil = no tocar
	Files       []files.Upload    // se agregan a los existentes
}

// Update modifica campos y agrega archivos nuevos (nunca reemplaza los existentes).
func (s *Service) Update(ctx context.Context, actor auth.Claims, id string, in UpdateInput) (Evidence, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return Evidence{}, err
	}
	if !policy.Allow(policy.OwnerOrAdmin, actor, current.CreatedBy) {
		return Evidence{}, apperr.Forbidden("cannot edit evidence")
	}
	if err := validateUploads(in.Files, len(current.Files)); err != nil {
		return Evidence{}, err
	}

	stored, err := s.saveFiles(ctx, in.Files)
	if err != nil {
		return Evidence{}, err
	}

	updated, err := s.repo.Update(ctx, current.ID, func(e *Evidence) error {
		if !policy.Allow(policy.OwnerOrAdmin, actor, e.CreatedBy) {
			return apperr.Forbidden("cannot edit evidence")
		}
		if len(e.Files)+len(stored) > MaxFiles {
			return apperr.Validation("at most %d files per evidence", MaxFiles)
		}
		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return apperr.Validation("title cannot be empty")
			}
			e.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			e.Description = strings.TrimSpace(*in.Description)
		}
		if in.Type != nil {
			if !in.Type.Valid() {
				return apperr.Validation("unknown evidence type %q", *in.Type)
			}
			e.Type = *in.Type
		}
		if in.Category != nil {
			if !in.Category.Valid() {
				return apperr.Validation("unknown category %q", *in.Category)
			}
			e.Category = *in.Category
		}
		if in.Metadata != nil {
			e.Metadata = cleanMetadata(in.Metadata)
		}
		e.Files = append(e.Files, stored...)
		e.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.removeFiles(ctx, stored)
		return Evidence{}, err
	}

	s.trail.Record(ctx, ref(updated.ID), audit.ActionEdit, audit.UserRefFrom(actor),
		fmt.Sprintf("Evidence edited by %s", actor.DisplayName()))
	return updated, nil
}

// Delete borra la evidencia, su historial y sus archivos.
func (s *Service) Delete(ctx context.Context, actor auth.Claims, id string) error {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !policy.Allow(policy.OwnerOrAdmin, actor, e.CreatedBy) {
		return apperr.Forbidden("cannot delete evidence")
	}

	if err := s.repo.Delete(ctx, e.ID); err != nil {
		return err
	}
	if err := s.trail.Purge(ctx, ref(e.ID)); err != nil {
		return err
	}
	s.removeFiles(ctx, e.Files)
	return nil
}

// DeleteByCase implementa cases.Dependent.
func (s *Service) DeleteByCase(ctx context.Context, caseID string) error {
	deleted, err := s.repo.DeleteByCase(ctx, caseID)
	if err != nil {
		return err
	}
	for _, e := range deleted {
		if err := s.trail.Purge(ctx, ref(e.ID)); err != nil {
			return err
		}
		s.removeFiles(ctx, e.Files)
	}
	return nil
}

func (s *Service) History(ctx context.Context, id string) ([]audit.Entry, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.trail.Entries(ctx, ref(e.ID))
}

func validateUploads(uploads []files.Upload, existing int) error {
	if existing+len(uploads) > MaxFiles {
		return apperr.Validation("at most %d files per evidence", MaxFiles)
	}
	for _, u := range uploads {
		if u.SizeBytes > MaxFileSize {
			return apperr.Validation("file %q exceeds %d bytes", u.OriginalName, MaxFileSize)
		}
		if !AllowedMimeType(u.MimeType) {
			return apperr.Validation("file %q: unsupported type %q", u.OriginalName, u.MimeType)
		}
	}
	return nil
}

func (s *Service) saveFiles(ctx context.Context, uploads []files.Upload) ([]FileRef, error) {
	out := make([]FileRef, 0, len(uploads))
	for _, u := range uploads {
		st, err := s.store.Save(ctx, u)
		if err != nil {
			s.removeFiles(ctx, out)
			return nil, fmt.Errorf("save evidence file %q: %w", u.OriginalName, err)
		}
		out = append(out, FileRef{
			Filename:     st.Filename,
			OriginalName: u.OriginalName,
			StoragePath:  st.StoragePath,
			MimeType:     u.MimeType,
			SizeBytes:    u.SizeBytes,
			UploadedAt:   s.now(),
		})
	}
	return out, nil
}

// removeFiles es best-effort: un archivo huérfano no invalida la operación.
func (s *Service) removeFiles(ctx context.Context, refs []FileRef) {
	for _, f := range refs {
		if err := s.store.Delete(ctx, f.StoragePath); err != nil {
			s.log.Warn("evidence file not removed", map[string]any{
				"storage_path": f.StoragePath,
				"error":        err.Error(),
			})
		}
	}
}

func cleanMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
