//go:build integration

package redisqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"odontolegal/internal/domain/audit"
)

func startQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "test:pending"), client
}

func pending(id string) audit.Pending {
	return audit.Pending{
		Ref:   audit.Ref{Kind: audit.KindCase, ID: "c1"},
		Entry: audit.Entry{ID: id, Action: audit.ActionView, Actor: audit.UserRef{ID: "u1"}},
	}
}

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q, _ := startQueue(t)

	_, ok, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, q.Push(ctx, pending(id)))
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	for _, want := range []string{"e1", "e2", "e3"} {
		p, ok, err := q.Claim(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, p.Entry.ID)
		require.NoError(t, q.Ack(ctx, p))
	}
}

func TestQueue_UnackedEntriesSurviveAndRestoreInOrder(t *testing.T) {
	ctx := context.Background()
	q, client := startQueue(t)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, q.Push(ctx, pending(id)))
	}
	_, _, err := q.Claim(ctx)
	require.NoError(t, err)
	_, _, err = q.Claim(ctx)
	require.NoError(t, err)

	inflight, err := client.LLen(ctx, q.processing).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, inflight)

	restored, err := q.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	for _, want := range []string{"e1", "e2", "e3"} {
		p, ok, err := q.Claim(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, p.Entry.ID)
	}
}

func TestQueue_MalformedMessageGoesToDeadLetter(t *testing.T) {
	ctx := context.Background()
	q, client := startQueue(t)

	require.NoError(t, client.LPush(ctx, q.key, "{broken").Err())
	require.NoError(t, q.Push(ctx, pending("e1")))

	_, _, err := q.Claim(ctx)
	assert.True(t, errors.Is(err, audit.ErrMalformedPending))

	dead, err := client.LRange(ctx, q.dead, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"{broken"}, dead)

	p, ok, err := q.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "e1", p.Entry.ID)
}
