package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"odontolegal/internal/domain/audit"
)

const DefaultKey = "odontolegal:audit:pending"

// Queue implementa audit.Queue sobre listas de Redis (reliable queue):
// LPUSH para encolar, LMOVE a "<key>:processing" para reclamar y LREM al
// confirmar. Los mensajes que no decodifican van a "<key>:dead".
type Queue struct {
	client     *redis.Client
	key        string
	processing string
	dead       string
}

func New(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{
		client:     client,
		key:        key,
		processing: key + ":processing",
		dead:       key + ":dead",
	}
}

// Connect parsea la URL (redis://...) y verifica la conexión.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

type pendingMsg struct {
	Kind     string    `json:"kind"`
	EntityID string    `json:"entity_id"`
	EntryID  string    `json:"entry_id"`
	Action   string    `json:"action"`
	ActorID  string    `json:"actor_id"`
	Actor    string    `json:"actor_name"`
	Details  string    `json:"details"`
	At       time.Time `json:"timestamp"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

func encode(p audit.Pending) ([]byte, error) {
	return json.Marshal(pendingMsg{
		Kind:     string(p.Ref.Kind),
		EntityID: p.Ref.ID,
		EntryID:  p.Entry.ID,
		Action:   string(p.Entry.Action),
		ActorID:  p.Entry.Actor.ID,
		Actor:    p.Entry.Actor.Name,
		Details:  p.Entry.Details,
		At:       p.Entry.Timestamp,
		Attempts: p.Attempts,
		FailedAt: p.FailedAt,
	})
}

func decode(raw []byte) (audit.Pending, error) {
	var m pendingMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return audit.Pending{}, err
	}
	return audit.Pending{
		Ref: audit.Ref{Kind: audit.EntityKind(m.Kind), ID: m.EntityID},
		Entry: audit.Entry{
			ID:        m.EntryID,
			Action:    audit.Action(m.Action),
			Actor:     audit.UserRef{ID: m.ActorID, Name: m.Actor},
			Details:   m.Details,
			Timestamp: m.At,
		},
		Attempts: m.Attempts,
		FailedAt: m.FailedAt,
	}, nil
}

func (q *Queue) Push(ctx context.Context, p audit.Pending) error {
	raw, err := encode(p)
	if err != nil {
		return fmt.Errorf("redisqueue: encode: %w", err)
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Claim mueve el mensaje más viejo a la lista de proceso. El payload crudo
// queda como Receipt para el LREM de Ack.
func (q *Queue) Claim(ctx context.Context) (audit.Pending, bool, error) {
	raw, err := q.client.LMove(ctx, q.key, q.processing, "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return audit.Pending{}, false, nil
	}
	if err != nil {
		return audit.Pending{}, false, err
	}

	p, err := decode([]byte(raw))
	if err != nil {
		if derr := q.deadLetter(ctx, raw); derr != nil {
			return audit.Pending{}, false, fmt.Errorf("redisqueue: dead letter: %w", derr)
		}
		return audit.Pending{}, false, fmt.Errorf("%w: %v (payload %q, kept in %s)", audit.ErrMalformedPending, err, raw, q.dead)
	}
	p.Receipt = raw
	return p, true, nil
}

func (q *Queue) deadLetter(ctx context.Context, raw string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.dead, raw)
		pipe.LRem(ctx, q.processing, 1, raw)
		return nil
	})
	return err
}

func (q *Queue) Ack(ctx context.Context, p audit.Pending) error {
	if p.Receipt == "" {
		return errors.New("redisqueue: ack without receipt")
	}
	return q.client.LRem(ctx, q.processing, 1, p.Receipt).Err()
}

// Restore devuelve a la cola lo que quedó en proceso, listo para salir
// primero y en el orden en que se había reclamado.
func (q *Queue) Restore(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

var _ audit.Queue = (*Queue)(nil)
