package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
)

const blocklistKeyPrefix = "blocklist:"

// BlockLookup is the persistent blocklist the cache fronts.
type BlockLookup interface {
	Insert(ctx context.Context, entry detection.BlockEntry) error
	IsBlocked(ctx context.Context, address string) (bool, error)
}

// BlocklistCache fronts the block repository with a redis lookaside. Inserts
// go to the repository first; the cache write is best-effort with TTL equal
// to the block duration, so a cache entry can never outlive its block.
// Lookups hit redis first and fall through to the repository on a miss or a
// redis failure.
type BlocklistCache struct {
	client *redis.Client
	store  BlockLookup
	logger *zap.Logger
}

// NewBlocklistCache creates the cache in front of a persistent blocklist.
func NewBlocklistCache(client *redis.Client, store BlockLookup, logger *zap.Logger) *BlocklistCache {
	return &BlocklistCache{
		client: client,
		store:  store,
		logger: logger,
	}
}

func blocklistKey(address string) string {
	return blocklistKeyPrefix + address
}

// Insert persists the block and primes the cache.
func (c *BlocklistCache) Insert(ctx context.Context, entry detection.BlockEntry) error {
	if err := c.store.Insert(ctx, entry); err != nil {
		return err
	}

	if err := c.client.Set(ctx, blocklistKey(entry.Address), entry.Reason, entry.Duration).Err(); err != nil {
		// The repository holds the truth; a failed cache prime only costs a
		// fallthrough on the next lookup.
		c.logger.Warn("blocklist cache prime failed",
			zap.String("address", entry.Address),
			zap.Error(err))
	}
	return nil
}

// IsBlocked reports whether the address currently has an active block.
func (c *BlocklistCache) IsBlocked(ctx context.Context, address string) (bool, error) {
	exists, err := c.client.Exists(ctx, blocklistKey(address)).Result()
	if err != nil {
		c.logger.Warn("blocklist cache lookup failed, falling through",
			zap.String("address", address),
			zap.Error(err))
		return c.store.IsBlocked(ctx, address)
	}
	if exists > 0 {
		return true, nil
	}
	return c.store.IsBlocked(ctx, address)
}

// TTL reports how long the cache entry for an address has left. Zero means
// no cache entry; the persistent store may still hold an active block.
func (c *BlocklistCache) TTL(ctx context.Context, address string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, blocklistKey(address)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
