package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

func newTestPersister(t *testing.T, prefix string) (*Persister, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, prefix), mr
}

func TestPersister_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestPersister(t, "memberauth:")

	cred, err := p.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, cred)

	require.NoError(t, p.Save(ctx, "cred-1"))
	require.Equal(t, "memberauth:access_token", p.Key())
	mr.CheckGet(t, "memberauth:access_token", "cred-1")
	require.Zero(t, mr.TTL(p.Key()), "credential has no expiry of its own")

	cred, err = p.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "cred-1", cred)

	require.NoError(t, p.Delete(ctx))
	require.False(t, mr.Exists(p.Key()))
	require.NoError(t, p.Delete(ctx), "deleting a missing key is not an error")
}

func TestPersister_SharedAcrossStores(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersister(t, "")

	a, err := memberauth.NewStore(ctx, p)
	require.NoError(t, err)
	b, err := memberauth.NewStore(ctx, p)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "from-a"))
	require.Empty(t, b.Get())

	cred, err := b.Reload(ctx)
	require.NoError(t, err)
	require.Equal(t, "from-a", cred)
	require.Equal(t, "from-a", b.Get())
}

func TestPersister_ServerDown(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestPersister(t, "")
	mr.Close()

	_, err := p.Load(ctx)
	require.Error(t, err)
	require.Error(t, p.Save(ctx, "x"))
}
