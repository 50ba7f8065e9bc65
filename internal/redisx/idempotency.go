// Package redisx keeps short-lived coordination state in Redis.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// idem:order:create:{store_id}:{key} -> "pending" | order_id
	keyIdemOrderCreate = "idem:order:create:%s:%s"

	pending = "pending"
)

var TTLIdempotency = 24 * time.Hour

// ErrInFlight means another request holding the same key is still running.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// client is the part of *redis.Client the idempotency store uses.
type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Idempotency deduplicates order creation requests by client-supplied key.
type Idempotency struct {
	rdb client
}

func NewIdempotency(rdb client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func key(storeID uuid.UUID, k string) string {
	return fmt.Sprintf(keyIdemOrderCreate, storeID, k)
}

// Claim reserves k for the caller. If k already finished, it returns the
// order it produced; if it is still running, ErrInFlight. uuid.Nil with a nil
// error means the caller owns the key and must Complete or Release it.
func (i *Idempotency) Claim(ctx context.Context, storeID uuid.UUID, k string) (uuid.UUID, error) {
	ok, err := i.rdb.SetNX(ctx, key(storeID, k), pending, TTLIdempotency).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return uuid.Nil, nil
	}

	v, err := i.rdb.Get(ctx, key(storeID, k)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			return i.Claim(ctx, storeID, k)
		}
		return uuid.Nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if v == pending {
		return uuid.Nil, ErrInFlight
	}
	orderID, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt idempotency key %q: %w", v, err)
	}
	return orderID, nil
}

// Complete records the order created under k.
func (i *Idempotency) Complete(ctx context.Context, storeID uuid.UUID, k string, orderID uuid.UUID) error {
	return i.rdb.Set(ctx, key(storeID, k), orderID.String(), TTLIdempotency).Err()
}

// Release frees k after a failed attempt so the client can retry.
func (i *Idempotency) Release(ctx context.Context, storeID uuid.UUID, k string) error {
	return i.rdb.Del(ctx, key(storeID, k)).Err()
}
