package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// ProfileCache stores user profiles between requests
type ProfileCache interface {
	Get(ctx context.Context, userID models.ID) (models.UserProfile, bool, error)
	Set(ctx context.Context, userID models.ID, profile models.UserProfile, ttl time.Duration) error
}

// RedisCache keeps profiles in Redis under profile:<user_id>
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, address, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func profileKey(userID models.ID) string {
	return "profile:" + userID.String()
}

// Get returns the cached profile; ok is false on a miss
func (c *RedisCache) Get(ctx context.Context, userID models.ID) (models.UserProfile, bool, error) {
	data, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.UserProfile{}, false, nil
	}
	if err != nil {
		return models.UserProfile{}, false, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return models.UserProfile{}, false, fmt.Errorf("failed to decode cached profile: %w", err)
	}
	return profile, true, nil
}

// Set stores a profile for ttl
func (c *RedisCache) Set(ctx context.Context, userID models.ID, profile models.UserProfile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
