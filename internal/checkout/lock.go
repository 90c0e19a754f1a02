package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

const defaultLockTTL = 30 * time.Second

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CartLockKey(userID string) string
}

// RedisLocker serialises checkouts of the same buyer across API instances.
type RedisLocker struct {
	store lockStore
	ttl   time.Duration
}

func NewRedisLocker(store lockStore, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, ttl: ttl}
}

// Lock returns a release func, or a Conflict error when another checkout for
// the buyer is in flight.
func (l *RedisLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := l.store.CartLockKey(userID.String())
	ok, err := l.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), l.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	return func() {
		_ = l.store.Del(context.WithoutCancel(ctx), key)
	}, nil
}
