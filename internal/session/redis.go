package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the session redis. url may be a redis://
// URL or a bare host:port.
func NewRedisClient(url string) *redis.Client {
	if url == "" {
		url = "localhost:6379"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return redis.NewClient(opts)
}

// RedisPersister stores one browser session under prefix+sessionID.
// Every save refreshes the TTL.
type RedisPersister struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisPersister(client redis.Cmdable, prefix, sessionID string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, key: prefix + sessionID, ttl: ttl}
}

func (r *RedisPersister) Load(ctx context.Context) (*State, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, nil
	}
	return &st, nil
}

func (r *RedisPersister) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisPersister) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
