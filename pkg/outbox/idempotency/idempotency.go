// Package idempotency keeps Pub/Sub redeliveries from repeating a consumer's
// side effects.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	markerInFlight = "processing"
	markerDone     = "done"

	// DefaultInFlightTTL bounds how long a crashed consumer's claim blocks a
	// redelivery.
	DefaultInFlightTTL = 5 * time.Minute
)

// Store is the subset of the redis client the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager tracks events per consumer in two steps. Begin claims the event for
// a short in-flight window; Complete extends the marker to the full ttl once
// the side effect is durable; Abandon drops the claim so a redelivery retries.
type Manager struct {
	store    Store
	ttl      time.Duration
	inFlight time.Duration
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	inFlight := DefaultInFlightTTL
	if ttl < inFlight {
		inFlight = ttl
	}
	return &Manager{store: store, ttl: ttl, inFlight: inFlight}, nil
}

// Begin reports duplicate=true when the event is already claimed or done.
func (m *Manager) Begin(ctx context.Context, consumer string, eventID uuid.UUID) (duplicate bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, markerInFlight, m.inFlight)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

func (m *Manager) Abandon(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
