// Package redis provides a Redis-backed credential persister, for setups
// where several processes share one member session.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

// Persister implements memberauth.Persister on a Redis key.
type Persister struct {
	rdb redis.UniversalClient
	key string
}

var _ memberauth.Persister = (*Persister)(nil)

// New returns a Persister storing the credential under
// prefix + memberauth.StorageKey. An empty prefix uses the bare key.
func New(rdb redis.UniversalClient, prefix string) *Persister {
	return &Persister{rdb: rdb, key: prefix + memberauth.StorageKey}
}

// Key returns the Redis key in use.
func (p *Persister) Key() string { return p.key }

func (p *Persister) Load(ctx context.Context) (string, error) {
	v, err := p.rdb.Get(ctx, p.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credential: %w", err)
	}
	return v, nil
}

func (p *Persister) Save(ctx context.Context, cred string) error {
	if err := p.rdb.Set(ctx, p.key, cred, 0).Err(); err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	return nil
}

func (p *Persister) Delete(ctx context.Context) error {
	if err := p.rdb.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}
