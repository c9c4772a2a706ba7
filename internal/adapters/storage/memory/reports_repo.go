package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/reports"
)

type reportRepo struct {
	mu   sync.RWMutex
	byID map[string]reports.Report
}

func NewReportRepo() reports.Repository {
	return &reportRepo{
		byID: make(map[string]reports.Report),
	}
}

func cloneReport(r reports.Report) reports.Report {
	r.Content.References = append([]string(nil), r.Content.References...)
	r.Attachments = append([]reports.Attachment(nil), r.Attachments...)
	r.PreviousVersions = append([]reports.VersionSnapshot(nil), r.PreviousVersions...)
	return r
}

func (r *reportRepo) Create(ctx context.Context, rep reports.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(rep.ID) == "" {
		return errors.New("report id required")
	}
	if _, exists := r.byID[rep.ID]; exists {
		return errors.New("report already exists")
	}
	r.byID[rep.ID] = cloneReport(rep)
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id string) (reports.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, ok := r.byID[id]
	if !ok {
		return reports.Report{}, apperr.NotFound("report %s", id)
	}
	return cloneReport(rep), nil
}

// Update serializa las ediciones del laudo bajo el lock de escritura.
func (r *reportRepo) Update(ctx context.Context, id string, mutate func(*reports.Report) error) (reports.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep, ok := r.byID[id]
	if !ok {
		return reports.Report{}, apperr.NotFound("report %s", id)
	}
	rep = cloneReport(rep)
	if err := mutate(&rep); err != nil {
		return reports.Report{}, err
	}
	r.byID[id] = cloneReport(rep)
	return rep, nil
}

func (r *reportRepo) List(ctx context.Context, caseID string, offset, limit int) ([]reports.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reports.Report, 0)
	for _, rep := range r.byID {
		if caseID != "" && rep.CaseID != caseID {
			continue
		}
		out = append(out, cloneReport(rep))
	}
	newestFirst(out, func(r reports.Report) time.Time { return r.CreatedAt }, func(r reports.Report) string { return r.ID })
	return page(out, offset, limit), nil
}

func (r *reportRepo) DeleteByCase(ctx context.Context, caseID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0)
	for id, rep := range r.byID {
		if rep.CaseID == caseID {
			ids = append(ids, id)
			delete(r.byID, id)
		}
	}
	return ids, nil
}
