// Package cache holds read-side projections in Valkey. Cached entries are
// advisory; admission and check-in decisions never consult them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ropewalk/internal/models"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type ValkeyClient struct {
	client *redis.Client
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	slog.Info("Connected to Valkey", "addr", cfg.Addr, "db", cfg.DB)

	return &ValkeyClient{client: client}, nil
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}

func capacityKey(eventID int64) string {
	return fmt.Sprintf("capacity:event:%d", eventID)
}

// GetCapacityInfo returns the cached capacity projection for an event, or
// nil on a miss. Cache errors degrade to a miss so the caller falls back to
// the live matrix.
func (v *ValkeyClient) GetCapacityInfo(ctx context.Context, eventID int64) (*models.CapacityInfo, error) {
	data, err := v.client.Get(ctx, capacityKey(eventID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capacity info: %w", err)
	}

	var info models.CapacityInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capacity info: %w", err)
	}

	return &info, nil
}

// SetCapacityInfo stores the capacity projection with the given TTL.
func (v *ValkeyClient) SetCapacityInfo(ctx context.Context, eventID int64, info *models.CapacityInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal capacity info: %w", err)
	}

	if err := v.client.Set(ctx, capacityKey(eventID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set capacity info: %w", err)
	}

	return nil
}

// InvalidateCapacityInfo drops the cached projection after a check-in or
// admission changes the real counts.
func (v *ValkeyClient) InvalidateCapacityInfo(ctx context.Context, eventID int64) error {
	if err := v.client.Del(ctx, capacityKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate capacity info: %w", err)
	}
	return nil
}

func authKey(username, passwordHash string) string {
	return fmt.Sprintf("auth:%s:%s", username, passwordHash)
}

// GetUserIDByAuth resolves basic-auth credentials to a user ID. Used by the
// auth middleware; a miss returns 0 with no error.
func (v *ValkeyClient) GetUserIDByAuth(ctx context.Context, username, passwordHash string) (int64, error) {
	userID, err := v.client.Get(ctx, authKey(username, passwordHash)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get user by auth: %w", err)
	}
	return userID, nil
}

// SetUserAuth caches a credentials to user ID mapping.
func (v *ValkeyClient) SetUserAuth(ctx context.Context, username, passwordHash string, userID int64, ttl time.Duration) error {
	if err := v.client.Set(ctx, authKey(username, passwordHash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set auth mapping: %w", err)
	}
	return nil
}
