package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/cases"
	"odontolegal/internal/domain/dentalrecords"
	"odontolegal/internal/domain/reports"
	"odontolegal/internal/ports/files"
)

func TestHistoryRepo_ConcurrentAppendsAreNotLost(t *testing.T) {
	repo := NewHistoryRepo()
	ref := audit.Ref{Kind: audit.KindCase, ID: "c-1"}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Append(context.Background(), ref, audit.Entry{ID: fmt.Sprintf("e-%d", i), Action: audit.ActionView})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := repo.List(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, entries, n)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
	}
}

func TestHistoryRepo_RetryWithSameEntryIDIsIdempotent(t *testing.T) {
	repo := NewHistoryRepo()
	ref := audit.Ref{Kind: audit.KindReport, ID: "r-1"}

	_, err := repo.Append(context.Background(), ref, audit.Entry{ID: "e-1"})
	require.NoError(t, err)
	_, err = repo.Append(context.Background(), ref, audit.Entry{ID: "e-1"})
	require.NoError(t, err)

	entries, _ := repo.List(context.Background(), ref)
	assert.Len(t, entries, 1)
}

func TestReportRepo_FailedMutationPersistsNothing(t *testing.T) {
	repo := NewReportRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, reports.Report{ID: "r-1", Version: 1, Title: "t"}))

	_, err := repo.Update(ctx, "r-1", func(r *reports.Report) error {
		r.Title = "changed"
		r.Version = 99
		return apperr.InvalidState("nope")
	})
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	got, err := repo.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, 1, got.Version)

	_, err = repo.Update(ctx, "missing", func(*reports.Report) error { return nil })
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCaseRepo_ListFiltersAndPaging(t *testing.T) {
	repo := NewCaseRepo()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		st := cases.StatusPending
		if i%2 == 0 {
			st = cases.StatusInProgress
		}
		require.NoError(t, repo.Create(ctx, cases.Case{
			ID:        fmt.Sprintf("c-%d", i),
			Title:     fmt.Sprintf("Caso %d", i),
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := repo.List(ctx, cases.ListFilter{Status: cases.StatusInProgress, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c-4", got[0].ID)

	got, err = repo.List(ctx, cases.ListFilter{Offset: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-2", got[0].ID)

	from := base.Add(3 * time.Hour)
	got, err = repo.List(ctx, cases.ListFilter{From: &from, Query: "caso", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDentalRecordRepo_UniqueIdentification(t *testing.T) {
	repo := NewDentalRecordRepo()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, dentalrecords.DentalRecord{ID: "a", Patient: dentalrecords.Patient{Identification: "X"}}))
	require.NoError(t, repo.Create(ctx, dentalrecords.DentalRecord{ID: "b"}))
	require.NoError(t, repo.Create(ctx, dentalrecords.DentalRecord{ID: "c"}))

	err := repo.Create(ctx, dentalrecords.DentalRecord{ID: "d", Patient: dentalrecords.Patient{Identification: "X"}})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = repo.Update(ctx, "b", func(r *dentalrecords.DentalRecord) error {
		r.Patient.Identification = "X"
		return nil
	})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestQueue_FIFO(t *testing.T) {
	q := NewAuditQueue()
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, audit.Pending{Entry: audit.Entry{ID: "1"}}))
	require.NoError(t, q.Push(ctx, audit.Pending{Entry: audit.Entry{ID: "2"}}))

	n, _ := q.Len(ctx)
	assert.Equal(t, int64(2), n)

	p, ok, err := q.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", p.Entry.ID)
	assert.NotEmpty(t, p.Receipt)
	require.NoError(t, q.Ack(ctx, p))

	p, _, _ = q.Claim(ctx)
	require.NoError(t, q.Ack(ctx, p))
	_, ok, err = q.Claim(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_RestoreReturnsUnackedEntriesFirst(t *testing.T) {
	q := NewAuditQueue()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, q.Push(ctx, audit.Pending{Entry: audit.Entry{ID: id}}))
	}
	first, _, _ := q.Claim(ctx)
	second, _, _ := q.Claim(ctx)
	require.NoError(t, q.Ack(ctx, second))

	n, _ := q.Len(ctx)
	assert.Equal(t, int64(1), n)

	restored, err := q.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	p, ok, err := q.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Entry.ID, p.Entry.ID)
}

func TestHistory_AppendAfterDeleteAllIsNotFound(t *testing.T) {
	repo := NewHistoryRepo()
	ctx := context.Background()
	ref := audit.Ref{Kind: audit.KindCase, ID: "c1"}

	_, err := repo.Append(ctx, ref, audit.Entry{ID: "e1", Action: audit.ActionCreation})
	require.NoError(t, err)
	require.NoError(t, repo.DeleteAll(ctx, ref))

	_, err = repo.Append(ctx, ref, audit.Entry{ID: "e2", Action: audit.ActionView})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	list, err := repo.List(ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_SaveOpenDelete(t *testing.T) {
	s := NewFileStore()
	ctx := context.Background()

	st, err := s.Save(ctx, files.Upload{OriginalName: "rx.PNG", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(st.StoragePath, "mem://"))
	assert.True(t, strings.HasSuffix(st.Filename, ".png"))

	b, err := s.Open(st.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))

	require.NoError(t, s.Delete(ctx, st.StoragePath))
	_, err = s.Open(st.StoragePath)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Zero(t, s.Len())
}
