// Package cache keeps recently read catalog products in Redis. Every Redis
// failure degrades to a database read.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/store"
)

const (
	notFoundMarker = "notfound"
	notFoundTTL    = time.Minute
	keyPrefix      = "assetdesk:product:"
)

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a Redis client and checks that the server answers.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Catalog reads products through Redis. A nil client disables caching.
type Catalog struct {
	db  *sql.DB
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewCatalog returns a catalog reader. rdb may be nil.
func NewCatalog(db *sql.DB, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{db: db, rdb: rdb, ttl: ttl, log: log.Named("cache")}
}

// Enabled reports whether a Redis client is attached.
func (c *Catalog) Enabled() bool {
	return c.rdb != nil
}

func key(id string) string {
	return keyPrefix + id
}

// Get returns a product, from the cache when possible. Missing products are
// remembered briefly so repeated lookups of a bad id stay off the database.
func (c *Catalog) Get(ctx context.Context, id string) (*model.Product, error) {
	if c.rdb == nil {
		return store.GetProduct(ctx, c.db, id)
	}

	data, err := c.rdb.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
		var p model.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		c.log.Warn("discarding undecodable cache entry", zap.String("product_id", id))
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("redis read failed, using database", zap.Error(err))
	}

	p, err := store.GetProduct(ctx, c.db, id)
	if errors.Is(err, store.ErrNotFound) {
		if setErr := c.rdb.Set(ctx, key(id), notFoundMarker, notFoundTTL).Err(); setErr != nil {
			c.log.Warn("failed to cache missing product", zap.Error(setErr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key(id), data, c.ttl).Err(); err != nil {
			c.log.Warn("failed to cache product", zap.Error(err))
		}
	}
	return p, nil
}

// Invalidate drops cached entries for the given products.
func (c *Catalog) Invalidate(ctx context.Context, ids ...string) {
	if c.rdb == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("failed to invalidate cached products", zap.Strings("product_ids", ids), zap.Error(err))
	}
}
