package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

// SnapshotRepository stores the widget snapshot in Redis and announces every update on a channel.
type SnapshotRepository struct {
	client  *redis.Client
	key     string
	channel string
	logger  *zap.Logger
}

// NewSnapshotRepository constructs the repository. A nil client disables Redis entirely.
func NewSnapshotRepository(client *redis.Client, key, channel string, logger *zap.Logger) *SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRepository{client: client, key: key, channel: channel, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (r *SnapshotRepository) Enabled() bool {
	return r != nil && r.client != nil
}

// Publish stores the snapshot under the configured key and notifies subscribers with the same payload.
func (r *SnapshotRepository) Publish(ctx context.Context, snapshot models.WidgetSnapshot) error {
	if !r.Enabled() {
		return nil
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal widget snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key, payload, 0)
	if r.channel != "" {
		pipe.Publish(ctx, r.channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.key, err)
	}
	return nil
}

// Get returns the last stored snapshot or ErrCacheMiss.
func (r *SnapshotRepository) Get(ctx context.Context) (*models.WidgetSnapshot, error) {
	if !r.Enabled() {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}

	var snapshot models.WidgetSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal widget snapshot: %w", err)
	}
	return &snapshot, nil
}

// Close releases the underlying Redis connection if present.
func (r *SnapshotRepository) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}
