package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/vowmarket-backend/pkg/redis"
)

const (
	claimProcessing = "processing"
	claimDone       = "done"

	// DefaultProcessingTTL bounds how long a crashed worker's claim can block
	// a redelivery of the same event.
	DefaultProcessingTTL = 5 * time.Minute
)

// IdempotencyGuard deduplicates provider deliveries by event id. A claim
// starts short-lived and is extended to the full retention only once the
// event settled. Redis is a fast path; the payments unique index remains the
// final word on duplicates.
type IdempotencyGuard struct {
	store         redis.IdempotencyStore
	scope         string
	retention     time.Duration
	processingTTL time.Duration
}

func NewIdempotencyGuard(store redis.IdempotencyStore, retention time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case retention <= 0:
		return nil, errors.New("retention must be positive")
	case scope == "":
		return nil, errors.New("scope is required")
	}
	processing := DefaultProcessingTTL
	if processing > retention {
		processing = retention
	}
	return &IdempotencyGuard{store: store, scope: scope, retention: retention, processingTTL: processing}, nil
}

// Claim reserves eventID for this delivery. false means another delivery holds
// or finished it.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	ok, err := g.store.SetNX(ctx, key, claimProcessing, g.processingTTL)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return ok, nil
}

// Complete marks eventID settled for the full retention window.
func (g *IdempotencyGuard) Complete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, claimDone, g.retention); err != nil {
		return fmt.Errorf("complete webhook event: %w", err)
	}
	return nil
}

// Release drops the claim so a redelivery is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}
