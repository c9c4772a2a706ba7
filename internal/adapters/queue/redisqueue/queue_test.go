package redisqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/domain/audit"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := audit.Pending{
		Ref: audit.Ref{Kind: audit.KindReport, ID: "r1"},
		Entry: audit.Entry{
			ID:        "e1",
			Action:    audit.ActionEdit,
			Actor:     audit.UserRef{ID: "u1", Name: "Ana"},
			Details:   "Report edited by Ana (version 2)",
			Timestamp: at,
		},
		Attempts: 2,
		FailedAt: at.Add(time.Second),
	}

	raw, err := encode(p)
	require.NoError(t, err)
	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestNew_DefaultKey(t *testing.T) {
	assert.Equal(t, DefaultKey, New(nil, "").key)
	q := New(nil, "k")
	assert.Equal(t, "k", q.key)
	assert.Equal(t, "k:processing", q.processing)
	assert.Equal(t, "k:dead", q.dead)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := decode([]byte("not json"))
	assert.Error(t, err)
}
