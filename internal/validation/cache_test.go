package validation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/blastcampaign/internal/domain"
)

type fakeTransport struct {
	mu    sync.Mutex
	calls int
	exist map[string]bool
	err   error
}

func (f *fakeTransport) ExistsOnPlatform(ctx context.Context, address string) (bool, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return false, "", f.err
	}
	return f.exist[address], "handle-" + address, nil
}

type fakeL3 struct {
	mu      sync.Mutex
	entries map[string]domain.ValidationCacheEntry
}

func newFakeL3() *fakeL3 { return &fakeL3{entries: map[string]domain.ValidationCacheEntry{}} }

func (f *fakeL3) Get(ctx context.Context, address string) (*domain.ValidationCacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[address]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (f *fakeL3) Put(ctx context.Context, entry domain.ValidationCacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.Address] = entry
	return nil
}

func TestValidateCachesResultAndWarmsL1(t *testing.T) {
	cache := NewCache(Config{}, nil, nil)
	transport := &fakeTransport{exist: map[string]bool{"+1555": true}}

	res, err := cache.Validate(context.Background(), "+1555", transport)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, 1, transport.calls)

	res2, ok := cache.Lookup(context.Background(), "+1555")
	require.True(t, ok)
	assert.Equal(t, domain.LayerL1, res2.Layer)
	assert.Equal(t, 1, transport.calls, "second lookup must not hit transport again")
}

func TestTransportFailureNotCached(t *testing.T) {
	cache := NewCache(Config{}, nil, nil)
	transport := &fakeTransport{err: errors.New("boom")}

	_, err := cache.Validate(context.Background(), "+1555", transport)
	assert.Error(t, err)

	_, ok := cache.Lookup(context.Background(), "+1555")
	assert.False(t, ok, "failed validation must not be cached")
}

func TestL3HitWarmsL1(t *testing.T) {
	l3 := newFakeL3()
	l3.entries["+1555"] = domain.ValidationCacheEntry{Address: "+1555", Exists: true}

	cache := NewCache(Config{}, nil, l3)
	res, ok := cache.Lookup(context.Background(), "+1555")
	require.True(t, ok)
	assert.Equal(t, domain.LayerL3, res.Layer)

	res2, ok := cache.Lookup(context.Background(), "+1555")
	require.True(t, ok)
	assert.Equal(t, domain.LayerL1, res2.Layer)
}

func TestL2DownTriesL3(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	l3 := newFakeL3()
	l3.entries["+1555"] = domain.ValidationCacheEntry{Address: "+1555", Exists: true}

	cache := NewCache(Config{}, client, l3)
	mr.Close() // simulate L2 outage

	res, ok := cache.Lookup(context.Background(), "+1555")
	require.True(t, ok)
	assert.Equal(t, domain.LayerL3, res.Layer)
}

func TestMissAcrossAllLayers(t *testing.T) {
	cache := NewCache(Config{}, nil, nil)
	_, ok := cache.Lookup(context.Background(), "+1555")
	assert.False(t, ok)
}
