package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	// artifactCacheKeyPrefix is the prefix for artifact keys in Redis.
	artifactCacheKeyPrefix = "artifact:"
)

// artifactJSON is the JSON representation of an Artifact for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type artifactJSON struct {
	ID         string `json:"id"`
	OutputName string `json:"output_name"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	StorageKey string `json:"storage_key"`
	CreatedAt  string `json:"created_at"`
	ExpiresAt  string `json:"expires_at"`
}

// RedisArtifactCache implements ArtifactCache using Redis as the backing store.
type RedisArtifactCache struct {
	client *redis.Client
}

// Compile-time verification that RedisArtifactCache implements ArtifactCache.
var _ ArtifactCache = (*RedisArtifactCache)(nil)

// NewRedisArtifactCache creates a new Redis-backed artifact cache.
func NewRedisArtifactCache(client *redis.Client) *RedisArtifactCache {
	return &RedisArtifactCache{
		client: client,
	}
}

// Get retrieves an artifact from Redis.
// Returns nil, nil on cache miss.
func (c *RedisArtifactCache) Get(ctx context.Context, artifactID uuid.UUID) (*model.Artifact, error) {
	key := c.buildKey(artifactID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.record(metrics.CacheOpGet, metrics.CacheStatusMiss)
			return nil, nil // Cache miss
		}
		c.record(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("redis get: %w", err)
	}

	artifact, err := c.deserialize(data)
	if err != nil {
		c.record(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("deserialize artifact: %w", err)
	}

	c.record(metrics.CacheOpGet, metrics.CacheStatusHit)
	return artifact, nil
}

// Set stores an artifact in Redis with the specified TTL.
func (c *RedisArtifactCache) Set(ctx context.Context, artifact *model.Artifact, ttl time.Duration) error {
	key := c.buildKey(artifact.ID)

	data, err := c.serialize(artifact)
	if err != nil {
		c.record(metrics.CacheOpSet, metrics.CacheStatusError)
		return fmt.Errorf("serialize artifact: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.record(metrics.CacheOpSet, metrics.CacheStatusError)
		return fmt.Errorf("redis set: %w", err)
	}

	c.record(metrics.CacheOpSet, metrics.CacheStatusSuccess)
	return nil
}

// Delete removes an artifact from Redis.
func (c *RedisArtifactCache) Delete(ctx context.Context, artifactID uuid.UUID) error {
	key := c.buildKey(artifactID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.record(metrics.CacheOpDelete, metrics.CacheStatusError)
		return fmt.Errorf("redis del: %w", err)
	}

	c.record(metrics.CacheOpDelete, metrics.CacheStatusSuccess)
	return nil
}

func (c *RedisArtifactCache) record(op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(op, status, metrics.CacheTypeRedis).Inc()
}

// buildKey constructs the Redis key for an artifact.
func (c *RedisArtifactCache) buildKey(artifactID uuid.UUID) string {
	return artifactCacheKeyPrefix + artifactID.String()
}

// serialize converts an Artifact to JSON bytes.
func (c *RedisArtifactCache) serialize(artifact *model.Artifact) ([]byte, error) {
	a := artifactJSON{
		ID:         artifact.ID.String(),
		OutputName: artifact.OutputName,
		MimeType:   artifact.MimeType,
		Size:       artifact.Size,
		StorageKey: artifact.StorageKey,
		CreatedAt:  artifact.CreatedAt.Format(time.RFC3339Nano),
		ExpiresAt:  artifact.ExpiresAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(a)
}

// deserialize converts JSON bytes to an Artifact.
func (c *RedisArtifactCache) deserialize(data []byte) (*model.Artifact, error) {
	var a artifactJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(a.ID)
	if err != nil {
		return nil, fmt.Errorf("parse artifact ID: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, a.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &model.Artifact{
		ID:         id,
		OutputName: a.OutputName,
		MimeType:   a.MimeType,
		Size:       a.Size,
		StorageKey: a.StorageKey,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}
