// Package cache keeps donation center listings in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"redblood/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const centerKeyPrefix = "redblood:centers:"

// Connect opens a Redis client from url. It returns nil when url is empty.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Centers caches center listings as JSON. Redis failures are logged and
// treated as misses so the store stays the source of truth.
type Centers struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewCenters(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *Centers {
	return &Centers{client: client, ttl: ttl, logger: logger}
}

func (c *Centers) Centers(ctx context.Context, key string) ([]*types.DonationCenter, bool) {
	raw, err := c.client.Get(ctx, centerKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("center cache read failed")
		return nil, false
	}

	var centers []*types.DonationCenter
	if err := json.Unmarshal(raw, &centers); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("discarding undecodable center cache entry")
		return nil, false
	}
	return centers, true
}

func (c *Centers) SetCenters(ctx context.Context, key string, centers []*types.DonationCenter) {
	raw, err := json.Marshal(centers)
	if err != nil {
		c.logger.WithError(err).Warn("failed to encode centers for cache")
		return
	}
	if err := c.client.Set(ctx, centerKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("center cache write failed")
	}
}

// Invalidate drops every cached listing.
func (c *Centers) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, centerKeyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("center cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).Warn("center cache invalidation failed")
	}
}
