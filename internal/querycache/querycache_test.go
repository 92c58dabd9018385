package querycache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type device struct {
	ID     int64  `json:"id"`
	Serial string `json:"serial"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client)
}

func stores(t *testing.T) map[string]Store {
	_, rs := setupRedis(t)
	return map[string]Store{"memory": NewMemoryStore(), "redis": rs}
}

func TestStore_GetSetMiss(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "absent")
			assert.True(t, errors.Is(err, ErrCacheMiss))

			require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", got)
		})
	}
}

func TestStore_DeleteByPrefixRespectsSeparator(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"device:1:detail", "device:1:movements@u2", "device:10:detail", "devices:list:page=1"} {
				require.NoError(t, s.Set(ctx, k, "x", time.Minute))
			}

			n, err := s.DeleteByPrefix(ctx, DevicePrefix(1))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, err = s.Get(ctx, "device:1:detail")
			assert.ErrorIs(t, err, ErrCacheMiss)
			_, err = s.Get(ctx, "device:10:detail")
			assert.NoError(t, err)
			_, err = s.Get(ctx, "devices:list:page=1")
			assert.NoError(t, err)
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "short", "v", time.Second))
	require.NoError(t, s.Set(ctx, "forever", "v", 0))

	now = now.Add(2 * time.Second)
	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, s := setupRedis(t)

	require.NoError(t, s.Set(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_PrefixWithGlobCharacters(t *testing.T) {
	ctx := context.Background()
	_, s := setupRedis(t)

	require.NoError(t, s.Set(ctx, "inventory:list:q=[a]", "x", time.Minute))
	require.NoError(t, s.Set(ctx, "inventory:list:qa", "x", time.Minute))

	n, err := s.DeleteByPrefix(ctx, "inventory:list:q=[")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_JSONRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := New(s, time.Minute, "eic:", zap.NewNop())

			key := Scoped(DevicePrefix(5)+"detail", 3)
			require.NoError(t, c.SetJSON(ctx, key, device{ID: 5, Serial: "SN-5"}))

			var got device
			require.True(t, c.GetJSON(ctx, key, &got))
			assert.Equal(t, "SN-5", got.Serial)

			other := Scoped(DevicePrefix(5)+"detail", 4)
			assert.False(t, c.GetJSON(ctx, other, &got))

			require.NoError(t, c.Invalidate(ctx, DevicePrefix(5), DeviceListPrefix))
			assert.False(t, c.GetJSON(ctx, key, &got))
		})
	}
}

func TestCache_UndecodableEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "ns:k", "{not json", 0))

	c := New(s, time.Minute, "ns:", nil)
	var v device
	assert.False(t, c.GetJSON(ctx, "k", &v))
}

func TestCache_RedisDownIsMiss(t *testing.T) {
	ctx := context.Background()
	mr, s := setupRedis(t)
	c := New(s, time.Minute, "eic:", zap.NewNop())
	mr.Close()

	var v device
	assert.False(t, c.GetJSON(ctx, "k", &v))
	assert.Error(t, c.Invalidate(ctx, "device:1:"))
}

func TestCache_Disabled(t *testing.T) {
	ctx := context.Background()
	var nilCache *Cache
	var v device

	assert.False(t, nilCache.GetJSON(ctx, "k", &v))
	assert.NoError(t, nilCache.SetJSON(ctx, "k", v))
	assert.NoError(t, nilCache.Invalidate(ctx, "k"))
	assert.NoError(t, nilCache.Close())

	noStore := New(nil, time.Minute, "", nil)
	assert.NoError(t, noStore.SetJSON(ctx, "k", v))
	assert.False(t, noStore.GetJSON(ctx, "k", &v))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "device:7:", DevicePrefix(7))
	assert.Equal(t, "inventory:3:", InventoryEventPrefix(3))
	assert.Equal(t, "task:9:", TaskPrefix(9))
	assert.Equal(t, "writeoff:2:", WriteOffPrefix(2))
	assert.Equal(t, "devices:list:limit=10&page=2", Query(DeviceListPrefix, url.Values{"page": {"2"}, "limit": {"10"}}))
	assert.Equal(t, "locations:tree@u1", Scoped(LocationsPrefix+"tree", 1))
}
