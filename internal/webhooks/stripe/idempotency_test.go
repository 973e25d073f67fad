package stripewebhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ttlEntry struct {
	value string
	ttl   time.Duration
}

type recordingStore struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
	err     error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{entries: map[string]ttlEntry{}}
}

func (s *recordingStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = ttlEntry{value: value.(string), ttl: ttl}
	return true, nil
}

func (s *recordingStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = ttlEntry{value: value.(string), ttl: ttl}
	return nil
}

func (s *recordingStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func (s *recordingStore) IdempotencyKey(scope, id string) string {
	return "vm:idempotency:" + scope + ":" + id
}

func TestGuardClaimCompleteLifecycle(t *testing.T) {
	store := newRecordingStore()
	guard, err := NewIdempotencyGuard(store, 24*time.Hour, "stripe-webhook")
	require.NoError(t, err)
	ctx := context.Background()
	key := "vm:idempotency:stripe-webhook:evt_1"

	ok, err := guard.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ttlEntry{value: claimProcessing, ttl: DefaultProcessingTTL}, store.entries[key])

	ok, err = guard.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, guard.Complete(ctx, "evt_1"))
	assert.Equal(t, ttlEntry{value: claimDone, ttl: 24 * time.Hour}, store.entries[key])
}

func TestGuardReleaseAllowsReclaim(t *testing.T) {
	store := newRecordingStore()
	guard, err := NewIdempotencyGuard(store, time.Minute, "stripe-webhook")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.Claim(ctx, "evt_2")
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "evt_2"))

	ok, err := guard.Claim(ctx, "evt_2")
	require.NoError(t, err)
	assert.True(t, ok)
	// processing TTL never outlives the retention window
	assert.Equal(t, time.Minute, store.entries["vm:idempotency:stripe-webhook:evt_2"].ttl)
}

func TestGuardErrors(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Minute, "s")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(newRecordingStore(), 0, "s")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(newRecordingStore(), time.Minute, "")
	assert.Error(t, err)

	store := newRecordingStore()
	store.err = errors.New("redis down")
	guard, err := NewIdempotencyGuard(store, time.Minute, "s")
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), "evt")
	assert.ErrorContains(t, err, "redis down")
	_, err = guard.Claim(context.Background(), "")
	assert.Error(t, err)
	assert.Error(t, guard.Complete(context.Background(), ""))
}
