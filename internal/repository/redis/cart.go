package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/checkoutcore/internal/domain"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

const (
	keyPrefix       = "cart:"
	maxWatchRetries = 10
)

// CartStore keeps each session's entries as one JSON document under
// cart:<session>. Read-modify-write cycles run inside WATCH/MULTI so two
// writers on the same cart retry instead of overwriting each other.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStore creates a Redis-backed cart store. Carts expire ttl after their
// last write.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string {
	return keyPrefix + sessionID
}

func load(ctx context.Context, get func(ctx context.Context, key string) *redis.StringCmd, key string) ([]domain.CartEntry, error) {
	data, err := get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.CartEntry{}, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	var entries []domain.CartEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return entries, nil
}

// update applies mutate to the stored entries under an optimistic lock.
func (s *CartStore) update(ctx context.Context, sessionID string, mutate func([]domain.CartEntry) ([]domain.CartEntry, error)) error {
	key := cartKey(sessionID)
	txf := func(tx *redis.Tx) error {
		entries, err := load(ctx, tx.Get, key)
		if err != nil {
			return err
		}
		entries, err = mutate(entries)
		if err != nil {
			return err
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return apperrors.Conflict(fmt.Sprintf("cart %s modified concurrently", sessionID))
}

// Append increments the entry for productID or inserts a new one at the end.
func (s *CartStore) Append(ctx context.Context, sessionID, productID string, qty int) error {
	if qty < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	return s.update(ctx, sessionID, func(entries []domain.CartEntry) ([]domain.CartEntry, error) {
		for i := range entries {
			if entries[i].ProductID == productID {
				entries[i].Quantity += qty
				entries[i].Reserved += qty
				return entries, nil
			}
		}
		return append(entries, domain.CartEntry{ProductID: productID, Quantity: qty, Reserved: qty}), nil
	})
}

// Snapshot returns the session's entries in insertion order.
func (s *CartStore) Snapshot(ctx context.Context, sessionID string) ([]domain.CartEntry, error) {
	return load(ctx, s.client.Get, cartKey(sessionID))
}

// SetReserved records the held quantity of an existing entry.
func (s *CartStore) SetReserved(ctx context.Context, sessionID, productID string, reserved int) error {
	if reserved < 0 {
		return apperrors.InvalidInput("reserved must be non-negative")
	}
	return s.update(ctx, sessionID, func(entries []domain.CartEntry) ([]domain.CartEntry, error) {
		for i := range entries {
			if entries[i].ProductID == productID {
				entries[i].Reserved = reserved
				return entries, nil
			}
		}
		return nil, apperrors.NotFound("cart entry", productID)
	})
}

// Clear deletes the session's cart document.
func (s *CartStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}
