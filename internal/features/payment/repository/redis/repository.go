package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cvelasquez94/raffle-fast/internal/features/payment/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/payment/repository"
	"github.com/cvelasquez94/raffle-fast/internal/platform/redis"
)

type redisMarkerRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) repository.MarkerRepository {
	return &redisMarkerRepository{client: client}
}

func markerKey(clientID string) string {
	return "pending_payment:" + clientID
}

func (r *redisMarkerRepository) Get(ctx context.Context, clientID string) (*models.Marker, error) {
	data, err := r.client.Get(ctx, markerKey(clientID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, models.ErrNoMarker
		}
		return nil, fmt.Errorf("failed to get marker: %w", err)
	}

	var marker models.Marker
	if err := json.Unmarshal([]byte(data), &marker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal marker: %w", err)
	}

	return &marker, nil
}

func (r *redisMarkerRepository) Set(ctx context.Context, clientID string, marker *models.Marker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	// The TTL mirrors the marker's own expiry; Redis just garbage-collects
	// slots nobody ever comes back for.
	if err := r.client.Set(ctx, markerKey(clientID), string(data), models.MarkerTTL).Err(); err != nil {
		return fmt.Errorf("failed to set marker: %w", err)
	}

	return nil
}

func (r *redisMarkerRepository) Clear(ctx context.Context, clientID string) error {
	if err := r.client.Del(ctx, markerKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to clear marker: %w", err)
	}

	return nil
}
