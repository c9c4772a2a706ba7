package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
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
	"odontolegal/internal/platform/logger"
	"odontolegal/internal/ports/auth"
	"odontolegal/internal/ports/files"
)

// -------------------------
// Fakes
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Evidence
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Evidence{}} }

func (r *testRepo) Create(ctx context.Context, e Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[e.ID] = e
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return Evidence{}, apperr.NotFound("evidence %s", id)
	}
	return e, nil
}

func (r *testRepo) Update(ctx context.Context, id string, mutate func(*Evidence) error) (Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return Evidence{}, apperr.NotFound("evidence %s", id)
	}
	e.Files = append([]FileRef(nil), e.Files...)
	if err := mutate(&e); err != nil {
		return Evidence{}, err
	}
	r.byID[id] = e
	return e, nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *testRepo) DeleteByCase(ctx context.Context, caseID string) ([]Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Evidence
	for id, e := range r.byID {
		if e.CaseID == caseID {
			out = append(out, e)
			delete(r.byID, id)
		}
	}
	return out, nil
}

func (r *testRepo) List(ctx context.Context, caseID string, offset, limit int) ([]Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Evidence, 0)
	for _, e := range r.byID {
		if caseID == "" || e.CaseID == caseID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeCases struct {
	known       map[string]bool
	attachments []string
}

func (c *fakeCases) Exists(ctx context.Context, id string) error {
	if !c.known[id] {
		return apperr.NotFound("case %s", id)
	}
	return nil
}

func (c *fakeCases) RecordAttachment(ctx context.Context, caseID string, actor auth.Claims, details string) {
	c.attachments = append(c.attachments, caseID+": "+details)
}

type fakeStore struct {
	saved   []string
	deleted []string
	failOn  string
}

func (s *fakeStore) Save(ctx context.Context, u files.Upload) (files.Stored, error) {
	if u.OriginalName == s.failOn {
		return files.Stored{}, errors.New("disk full")
	}
	_, _ = io.Copy(io.Discard, u.Body)
	name := fmt.Sprintf("f-%d", len(s.saved)+1)
	s.saved = append(s.saved, name)
	return files.Stored{Filename: name, StoragePath: "/uploads/" + name}, nil
}

func (s *fakeStore) Delete(ctx context.Context, path string) error {
	s.deleted = append(s.deleted, path)
	return nil
}

// -------------------------
// Helpers
// -------------------------

var (
	owner = auth.Claims{UserID: "u-1", Name: "Dra. Silva"}
	admin = auth.Claims{UserID: "u-admin", Role: auth.RoleAdmin}
	other = auth.Claims{UserID: "u-2", Role: auth.RoleExpert}
)

type fixture struct {
	svc     *Service
	repo    *testRepo
	cases   *fakeCases
	store   *fakeStore
	history *audittest.Repo
}

func newFixture() fixture {
	repo := newTestRepo()
	cs := &fakeCases{known: map[string]bool{"case-1": true}}
	st := &fakeStore{}
	trail, history := audittest.NewTrail()
	svc := NewService(repo, cs, st, trail, logger.Nop())
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return fixture{svc: svc, repo: repo, cases: cs, store: st, history: history}
}

func upload(name, mime string, size int64) files.Upload {
	return files.Upload{OriginalName: name, MimeType: mime, SizeBytes: size, Body: strings.NewReader("data")}
}

func createEvidence(t *testing.T, f fixture, uploads ...files.Upload) Evidence {
	t.Helper()
	e, err := f.svc.Create(context.Background(), owner, CreateInput{
		CaseID:   "case-1",
		Type:     TypeImage,
		Title:    "Radiografía panorámica",
		Category: CategoryRadiograph,
		Files:    uploads,
	})
	require.NoError(t, err)
	return e
}

// -------------------------
// Tests
// -------------------------

func TestCreate_StoresFilesAndRecordsOnBothTrails(t *testing.T) {
	f := newFixture()

	e := createEvidence(t, f, upload("pano.png", "image/png", 1024))

	require.Len(t, e.Files, 1)
	assert.Equal(t, "pano.png", e.Files[0].OriginalName)
	assert.Equal(t, "/uploads/f-1", e.Files[0].StoragePath)
	assert.Equal(t, []audit.Action{audit.ActionCreation}, f.history.Actions(ref(e.ID)))
	require.Len(t, f.cases.attachments, 1)
	assert.Contains(t, f.cases.attachments[0], "case-1: Evidence \"Radiografía panorámica\" added by Dra. Silva")
}

func TestCreate_UnknownCase(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), owner, CreateInput{CaseID: "nope", Type: TypeDocument, Title: "x"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, f.store.saved)
}

func TestCreate_UploadLimits(t *testing.T) {
	cases := []struct {
		name    string
		uploads []files.Upload
	}{
		{"too big", []files.Upload{upload("a.pdf", "application/pdf", MaxFileSize+1)}},
		{"bad mime", []files.Upload{upload("a.exe", "application/x-msdownload", 10)}},
		{"too many", func() []files.Upload {
			out := make([]files.Upload, MaxFiles+1)
			for i := range out {
				out[i] = upload(fmt.Sprintf("%d.jpg", i), "image/jpeg", 10)
			}
			return out
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Create(context.Background(), owner, CreateInput{
				CaseID: "case-1", Type: TypeImage, Title: "x", Files: tc.uploads,
			})
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Empty(t, f.store.saved)
		})
	}
}

func TestCreate_StoreFailureRollsBackSavedFiles(t *testing.T) {
	f := newFixture()
	f.store.failOn = "b.png"

	_, err := f.svc.Create(context.Background(), owner, CreateInput{
		CaseID: "case-1", Type: TypeImage, Title: "x",
		Files: []files.Upload{upload("a.png", "image/png", 10), upload("b.png", "image/png", 10)},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"/uploads/f-1"}, f.store.deleted)
	assert.Empty(t, f.repo.byID)
}

func TestGet_RecordsView(t *testing.T) {
	f := newFixture()
	e := createEvidence(t, f)

	d, err := f.svc.Get(context.Background(), other, e.ID)
	require.NoError(t, err)
	require.Len(t, d.History, 2)
	assert.Equal(t, audit.ActionView, d.History[1].Action)
}

func TestUpdate_AppendsFilesAndChecksOwnership(t *testing.T) {
	f := newFixture()
	e := createEvidence(t, f, upload("a.png", "image/png", 10))
	ctx := context.Background()
	title := "Periapical 21"

	_, err := f.svc.Update(ctx, other, e.ID, UpdateInput{Title: &title})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	got, err := f.svc.Update(ctx, owner, e.ID, UpdateInput{
		Title: &title,
		Files: []files.Upload{upload("b.pdf", "application/pdf", 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Periapical 21", got.Title)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "a.png", got.Files[0].OriginalName)
	assert.Equal(t, "b.pdf", got.Files[1].OriginalName)
	assert.Equal(t, []audit.Action{audit.ActionCreation, audit.ActionEdit}, f.history.Actions(ref(e.ID)))
}

func TestUpdate_InvalidFieldDiscardsNewFiles(t *testing.T) {
	f := newFixture()
	e := createEvidence(t, f)
	bad := Category("xray")

	_, err := f.svc.Update(context.Background(), admin, e.ID, UpdateInput{
		Category: &bad,
		Files:    []files.Upload{upload("c.gif", "image/gif", 10)},
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, []string{"/uploads/f-1"}, f.store.deleted)
}

func TestDelete_PurgesHistoryAndFiles(t *testing.T) {
	f := newFixture()
	e := createEvidence(t, f, upload("a.png", "image/png", 10))
	ctx := context.Background()

	assert.True(t, errors.Is(f.svc.Delete(ctx, other, e.ID), apperr.ErrForbidden))

	require.NoError(t, f.svc.Delete(ctx, admin, e.ID))
	assert.Empty(t, f.repo.byID)
	assert.Empty(t, f.history.Actions(ref(e.ID)))
	assert.Equal(t, []string{"/uploads/f-1"}, f.store.deleted)
}

func TestDeleteByCase(t *testing.T) {
	f := newFixture()
	e1 := createEvidence(t, f)
	e2 := createEvidence(t, f)

	require.NoError(t, f.svc.DeleteByCase(context.Background(), "case-1"))
	assert.Empty(t, f.repo.byID)
	assert.Empty(t, f.history.Actions(ref(e1.ID)))
	assert.Empty(t, f.history.Actions(ref(e2.ID)))
}
