package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores notes as JSON values in one hash per session.
type Redis struct {
	client *redis.Client
	prefix string
}

// ConnectRedis dials addr and verifies the connection.
func ConnectRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(sessionID string) string {
	return r.prefix + "notes:" + sessionID
}

func (r *Redis) List(ctx context.Context, sessionID string) ([]Note, error) {
	vals, err := r.client.HVals(ctx, r.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	out := make([]Note, 0, len(vals))
	for _, v := range vals {
		var n Note
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			return nil, fmt.Errorf("decode note: %w", err)
		}
		out = append(out, n)
	}
	Sort(out)
	return out, nil
}

func (r *Redis) Add(ctx context.Context, n Note) (Note, error) {
	seq, err := r.client.Incr(ctx, r.prefix+"notes:seq").Result()
	if err != nil {
		return Note{}, fmt.Errorf("allocate note id: %w", err)
	}
	n.ID = fmt.Sprintf("n%d", seq)
	if n.Created.IsZero() {
		n.Created = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return Note{}, fmt.Errorf("marshal note: %w", err)
	}
	if err := r.client.HSet(ctx, r.key(n.SessionID), n.ID, string(data)).Err(); err != nil {
		return Note{}, fmt.Errorf("store note: %w", err)
	}
	return n, nil
}

func (r *Redis) Delete(ctx context.Context, sessionID, id string) error {
	removed, err := r.client.HDel(ctx, r.key(sessionID), id).Result()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
