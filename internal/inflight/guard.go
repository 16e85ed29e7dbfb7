package inflight

import (
	"time"

	cache "github.com/patrickmn/go-cache"

	apperrors "clinic-console/pkg/errors"
)

// Guard rejects a mutating operation while an identical one is still
// pending, so a double-triggered action cannot produce duplicate
// backend entities. Entries expire so a crashed caller cannot wedge
// an operation forever.
type Guard struct {
	ops *cache.Cache
}

func New(ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Guard{ops: cache.New(ttl, ttl)}
}

// Begin marks key as pending. It fails with an OperationPending error
// when the same key is already in flight.
func (g *Guard) Begin(key string) error {
	if err := g.ops.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return apperrors.OperationPending(key)
	}
	return nil
}

// End releases key. Safe to call for a key that already expired.
func (g *Guard) End(key string) {
	g.ops.Delete(key)
}
