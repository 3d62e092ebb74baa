package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionTTL matches a typical browser session lifetime; every Save
// refreshes it.
const sessionTTL = 24 * time.Hour

// RedisStore keeps sessions and pending checkouts in Redis. Pending
// checkouts get their own keys so the TTL can enforce the mandatory expiry
// independently of the session.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr, prefix string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

func (r *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisStore) pendingKey(token string) string {
	return fmt.Sprintf("%s:pending:%s", r.prefix, token)
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return &Session{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// A corrupt session is replaced, not fatal.
		return &Session{ID: id}, nil
	}
	sess.ID = id
	return &sess, nil
}

func (r *RedisStore) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", sess.ID, err)
	}
	if err := r.client.Set(ctx, r.sessionKey(sess.ID), raw, sessionTTL).Err(); err != nil {
		return fmt.Errorf("session: save %s: %w", sess.ID, err)
	}
	return nil
}

func (r *RedisStore) StagePending(ctx context.Context, pending *PendingCheckout) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("session: encode pending %s: %w", pending.Token, err)
	}
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, r.pendingKey(pending.Token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("session: stage pending %s: %w", pending.Token, err)
	}
	return nil
}

func (r *RedisStore) Pending(ctx context.Context, token string) (*PendingCheckout, error) {
	raw, err := r.client.Get(ctx, r.pendingKey(token)).Result()
	return r.decodePending(token, raw, err)
}

// TakePending consumes the staged checkout with a single GETDEL, so two
// concurrent finalizations cannot both observe it.
func (r *RedisStore) TakePending(ctx context.Context, token string) (*PendingCheckout, error) {
	raw, err := r.client.GetDel(ctx, r.pendingKey(token)).Result()
	return r.decodePending(token, raw, err)
}

func (r *RedisStore) decodePending(token, raw string, err error) (*PendingCheckout, error) {
	if token == "" || errors.Is(err, redis.Nil) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: read pending %s: %w", token, err)
	}

	var pending PendingCheckout
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("session: decode pending %s: %w", token, err)
	}
	if pending.Expired() {
		return nil, ErrPendingNotFound
	}
	return &pending, nil
}
