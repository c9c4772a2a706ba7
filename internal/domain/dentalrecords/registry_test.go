package dentalrecords

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/domain/apperr"
)

func TestRegistry_RecordValidatesScore(t *testing.T) {
	g := NewRegistry(&testMatchRepo{})
	cp := Counterpart{Kind: CounterpartCase, ID: "case-1"}
	ctx := context.Background()

	for _, score := range []float64{-0.01, 100.01, math.NaN()} {
		_, err := g.Record(ctx, "dr-1", cp, score, nil)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "score %v", score)
	}

	_, err := g.Record(ctx, "dr-1", Counterpart{Kind: "person", ID: "x"}, 50, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	for _, score := range []float64{0, 100} {
		_, err := g.Record(ctx, "dr-1", cp, score, nil)
		assert.NoError(t, err)
	}
}

func TestRegistry_ListKeepsInsertionOrder(t *testing.T) {
	g := NewRegistry(&testMatchRepo{})
	ctx := context.Background()

	for _, id := range []string{"dr-2", "dr-3", "dr-2"} {
		_, err := g.Record(ctx, "dr-1", Counterpart{Kind: CounterpartDentalRecord, ID: id}, 10, []string{"x"})
		require.NoError(t, err)
	}

	ms, err := g.List(ctx, "dr-1")
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, "dr-2", ms[0].Counterpart.ID)
	assert.Equal(t, "dr-3", ms[1].Counterpart.ID)
	assert.Equal(t, "dr-2", ms[2].Counterpart.ID)
}
