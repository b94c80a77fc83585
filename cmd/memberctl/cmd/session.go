package cmd

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"

	"github.com/alexlup06-authgate/memberauth-go/internal/config"
	"github.com/alexlup06-authgate/memberauth-go/internal/observability"
	"github.com/alexlup06-authgate/memberauth-go/memberauth"
	boltstore "github.com/alexlup06-authgate/memberauth-go/storage/bbolt"
	"github.com/alexlup06-authgate/memberauth-go/storage/memory"
	redisstore "github.com/alexlup06-authgate/memberauth-go/storage/redis"
)

// openPersister returns the durable side of the credential store selected by
// c and a function releasing it.
func openPersister(c *config.Config) (memberauth.Persister, func() error, error) {
	switch c.Storage {
	case config.StorageMemory:
		return memory.New(""), func() error { return nil }, nil

	case config.StorageBolt:
		p, err := boltstore.Open(c.BoltPath, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
		}
		return p, p.Close, nil

	case config.StorageRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: c.RedisAddr})
		return redisstore.New(rdb, c.RedisPrefix), rdb.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.Storage)
	}
}

// openSDK wires the session core from the loaded configuration. The cookie
// jar lives only as long as the process, so the refresh anchor does not
// outlive a single command.
func openSDK(ctx context.Context, metrics memberauth.Metrics) (*memberauth.SDK, func() error, error) {
	p, closer, err := openPersister(cfg)
	if err != nil {
		return nil, nil, err
	}

	sdk, err := memberauth.New(ctx, memberauth.Config{
		BaseURL:    cfg.APIBase,
		Persister:  p,
		Timeout:    cfg.RequestTimeout,
		EntryPoint: cfg.EntryPoint,
		Logger:     observability.FromContext(ctx),
		Metrics:    metrics,
	})
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return sdk, closer, nil
}
