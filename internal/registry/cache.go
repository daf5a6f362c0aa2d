package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"certproof/internal/models"
)

const cacheKeyPrefix = "certproof:cert:"

// Cached decorates a Registry with a redis read cache keyed by hash key.
// Cache failures degrade to the inner store; they are logged, never surfaced.
type Cached struct {
	inner  Registry
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewCached(inner Registry, client *redis.Client, ttl time.Duration, log *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{inner: inner, client: client, ttl: ttl, log: log}
}

func (c *Cached) Register(ctx context.Context, rec models.CertificateRecord) (models.CertificateRecord, error) {
	stored, err := c.inner.Register(ctx, rec)
	if err != nil {
		return models.CertificateRecord{}, err
	}
	c.put(ctx, stored)
	return stored, nil
}

func (c *Cached) Lookup(ctx context.Context, hashKey string) (models.CertificateRecord, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+hashKey).Bytes()
	if err == nil {
		var rec models.CertificateRecord
		if uerr := json.Unmarshal(data, &rec); uerr == nil {
			return rec, nil
		}
		c.drop(ctx, hashKey)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("registry cache get failed", zap.Error(err))
	}

	rec, err := c.inner.Lookup(ctx, hashKey)
	if err != nil {
		return models.CertificateRecord{}, err
	}
	c.put(ctx, rec)
	return rec, nil
}

// List always hits the inner store; pages are too varied to cache usefully.
func (c *Cached) List(ctx context.Context, f Filter) ([]models.CertificateRecord, error) {
	return c.inner.List(ctx, f)
}

func (c *Cached) Delete(ctx context.Context, hashKey string) error {
	if err := c.inner.Delete(ctx, hashKey); err != nil {
		return err
	}
	c.drop(ctx, hashKey)
	return nil
}

func (c *Cached) SetVerified(ctx context.Context, hashKey string, verified bool) error {
	if err := c.inner.SetVerified(ctx, hashKey, verified); err != nil {
		return err
	}
	c.drop(ctx, hashKey)
	return nil
}

func (c *Cached) put(ctx context.Context, rec models.CertificateRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+rec.HashKey, data, c.ttl).Err(); err != nil {
		c.log.Warn("registry cache set failed", zap.Error(err))
	}
}

func (c *Cached) drop(ctx context.Context, hashKey string) {
	if err := c.client.Del(ctx, cacheKeyPrefix+hashKey).Err(); err != nil {
		c.log.Warn("registry cache invalidation failed", zap.Error(err))
	}
}
