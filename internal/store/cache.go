package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const hashKeyPrefix = "lexiguard:hash:"

// CachedStore decorates a Store with a redis lookaside cache for
// fingerprint lookups. Redis failures degrade to the inner store.
type CachedStore struct {
	Store
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStore(inner Store, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{Store: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func hashKey(hash string) string { return hashKeyPrefix + hash }

func (c *CachedStore) AddContract(ctx context.Context, rec *Record) (string, error) {
	id, err := c.Store.AddContract(ctx, rec)
	if err != nil {
		return "", err
	}
	// SetNX keeps the first record for a hash, matching FindByHash.
	c.remember(ctx, rec, true)
	return id, nil
}

func (c *CachedStore) FindByHash(ctx context.Context, hash string) (*Record, error) {
	val, err := c.rdb.Get(ctx, hashKey(hash)).Result()
	switch {
	case err == nil:
		var rec Record
		if jsonErr := json.Unmarshal([]byte(val), &rec); jsonErr == nil {
			return &rec, nil
		}
		c.logger.Warn("dropping undecodable cache entry", zap.String("hash", hash))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("fingerprint cache read failed", zap.String("hash", hash), zap.Error(err))
	}

	rec, err := c.Store.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, rec, false)
	return rec, nil
}

func (c *CachedStore) remember(ctx context.Context, rec *Record, onlyIfAbsent bool) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if onlyIfAbsent {
		err = c.rdb.SetNX(ctx, hashKey(rec.Hash), string(data), c.ttl).Err()
	} else {
		err = c.rdb.Set(ctx, hashKey(rec.Hash), string(data), c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("fingerprint cache write failed", zap.String("hash", rec.Hash), zap.Error(err))
	}
}
