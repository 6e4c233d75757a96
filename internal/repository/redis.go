package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "trace:"

// Hash fields
const (
	fieldProjectURL = "projectURL"
	fieldProjectID  = "projectID"
	fieldLastFetch  = "lastFetch"
	fieldLastCount  = "lastCount"
	fieldFetchCount = "fetchCount"
)

// RedisRepository implements BindingRepository with one Redis hash per kind
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository instance
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// Key returns the hash key of a kind
func Key(kind string) string {
	return keyPrefix + kind
}

// SaveBinding stores the resolved project of a kind
func (r *RedisRepository) SaveBinding(ctx context.Context, kind string, binding Binding) error {
	key := Key(kind)
	slog.Debug("Saving project binding",
		"key", key,
		"project_url", binding.ProjectURL,
		"project_id", binding.ProjectID,
	)

	err := r.client.HSet(ctx, key,
		fieldProjectURL, binding.ProjectURL,
		fieldProjectID, strconv.Itoa(binding.ProjectID),
	).Err()
	if err != nil {
		slog.Error("Failed to save project binding", "error", err, "key", key)
		return fmt.Errorf("error saving binding: %w", err)
	}

	slog.Debug("Project binding saved", "key", key)
	return nil
}

// GetBinding returns the stored binding, or nil when none was saved
func (r *RedisRepository) GetBinding(ctx context.Context, kind string) (*Binding, error) {
	key := Key(kind)
	slog.Debug("Retrieving project binding", "key", key)

	values, err := r.client.HMGet(ctx, key, fieldProjectURL, fieldProjectID).Result()
	if err != nil {
		slog.Error("Failed to retrieve project binding", "error", err, "key", key)
		return nil, fmt.Errorf("error retrieving binding: %w", err)
	}

	projectURL, _ := values[0].(string)
	rawID, _ := values[1].(string)
	if projectURL == "" || rawID == "" {
		slog.Debug("No project binding stored", "key", key)
		return nil, nil
	}

	id, err := strconv.Atoi(rawID)
	if err != nil {
		slog.Error("Stored project id is not a number", "error", err, "key", key, "value", rawID)
		return nil, fmt.Errorf("invalid stored project id %q: %w", rawID, err)
	}

	return &Binding{ProjectURL: projectURL, ProjectID: id}, nil
}

// RecordFetch stores the outcome of a completed fetch and returns the fetch counter
func (r *RedisRepository) RecordFetch(ctx context.Context, kind string, count int, timestamp string) (int, error) {
	key := Key(kind)
	slog.Debug("Recording fetch", "key", key, "count", count, "timestamp", timestamp)

	err := r.client.HSet(ctx, key,
		fieldLastFetch, timestamp,
		fieldLastCount, strconv.Itoa(count),
	).Err()
	if err != nil {
		slog.Error("Failed to record fetch", "error", err, "key", key)
		return 0, fmt.Errorf("error recording fetch: %w", err)
	}

	total, err := r.client.HIncrBy(ctx, key, fieldFetchCount, 1).Result()
	if err != nil {
		slog.Error("Failed to increment fetch counter", "error", err, "key", key)
		return 0, fmt.Errorf("error incrementing fetch counter: %w", err)
	}

	return int(total), nil
}

// GetStatus retrieves every stored field of a kind. An unknown kind yields an empty map.
func (r *RedisRepository) GetStatus(ctx context.Context, kind string) (map[string]string, error) {
	key := Key(kind)
	slog.Debug("Retrieving status", "key", key)

	data, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		slog.Error("Failed to retrieve status", "error", err, "key", key)
		return nil, fmt.Errorf("error retrieving status: %w", err)
	}

	slog.Debug("Status retrieved", "key", key, "field_count", len(data))
	return data, nil
}
