package reports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/domain/apperr"
	"odontolegal/internal/domain/audit"
)

func sampleContent(conclusion string) Content {
	return Content{
		Introduction: "Solicitud de identificación",
		Methodology:  "Comparación ante/post mortem",
		Analysis:     "Coincidencias en piezas 11 a 21",
		Conclusion:   conclusion,
		References:   []string{"Interpol DVI Guide"},
	}
}

func TestCommitEdit_SnapshotsPreviousContent(t *testing.T) {
	r := Report{ID: "r-1", Status: StatusDraft, Version: 3, Content: sampleContent("v3")}
	editor := audit.UserRef{ID: "u-1", Name: "Dra. Silva"}
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	next := sampleContent("v4")

	got, err := CommitEdit(r, Edit{Content: &next, Comments: "ajuste conclusión"}, editor, now)
	require.NoError(t, err)

	assert.Equal(t, 4, got.Version)
	assert.Equal(t, "v4", got.Content.Conclusion)
	require.Len(t, got.PreviousVersions, 1)
	snap := got.PreviousVersions[0]
	assert.Equal(t, 3, snap.Version)
	assert.Equal(t, "v3", snap.Content.Conclusion)
	assert.Equal(t, editor, snap.ModifiedBy)
	assert.Equal(t, now, snap.ModifiedAt)
	assert.Equal(t, "ajuste conclusión", snap.Comments)

	// el original no se modifica
	assert.Equal(t, 3, r.Version)
	assert.Empty(t, r.PreviousVersions)
}

func TestCommitEdit_RejectsFinalized(t *testing.T) {
	r := Report{ID: "r-1", Status: StatusFinalized, Version: 2}
	c := sampleContent("x")

	_, err := CommitEdit(r, Edit{Content: &c}, audit.UserRef{ID: "u"}, time.Now())
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestCommitEdit_ValidatesContent(t *testing.T) {
	r := Report{ID: "r-1", Status: StatusReview, Version: 1}
	c := sampleContent("")

	_, err := CommitEdit(r, Edit{Content: &c}, audit.UserRef{ID: "u"}, time.Now())
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCommitEdit_ChainOfEdits(t *testing.T) {
	r := Report{ID: "r-1", Status: StatusDraft, Version: 1, Content: sampleContent("v1")}
	editor := audit.UserRef{ID: "u-1"}

	const edits = 5
	for i := 0; i < edits; i++ {
		var err error
		r, err = CommitEdit(r, Edit{Comments: "edit"}, editor, time.Now())
		require.NoError(t, err)
	}

	assert.Equal(t, 1+edits, r.Version)
	require.Len(t, r.PreviousVersions, edits)
	for i, s := range r.PreviousVersions {
		assert.Equal(t, i+1, s.Version)
	}
}
