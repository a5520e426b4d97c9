package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/backstage/services/calendar/config"
	"example.com/backstage/services/calendar/internal/models"
)

// TemplateCache is a read-through cache of template event rows.
// Resolved instances are never cached since exceptions change them independently.
type TemplateCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

// NewTemplateCache creates a template cache, disabled when Redis is turned off
func NewTemplateCache(cfg config.RedisConfig) (*TemplateCache, error) {
	if !cfg.Enabled {
		return &TemplateCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewTemplateCacheWithClient(client, cfg.TemplateTTL), nil
}

// NewTemplateCacheWithClient wraps an existing client
func NewTemplateCacheWithClient(client *redis.Client, ttl time.Duration) *TemplateCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TemplateCache{
		client:  client,
		ttl:     ttl,
		enabled: client != nil,
	}
}

// Enabled reports whether lookups reach Redis
func (c *TemplateCache) Enabled() bool {
	return c != nil && c.enabled
}

// GetTemplates returns the cached templates and the ids that were not cached.
// A disabled cache reports every id as missing.
func (c *TemplateCache) GetTemplates(ctx context.Context, ids []uuid.UUID) ([]models.Event, []uuid.UUID, error) {
	if !c.Enabled() || len(ids) == 0 {
		return nil, ids, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = TemplateCacheKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, ids, errors.Wrap(err, "failed to get templates from Redis")
	}

	var found []models.Event
	var missing []uuid.UUID
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}

		var event models.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		found = append(found, event)
	}

	return found, missing, nil
}

// SetTemplates stores templates in one pipeline
func (c *TemplateCache) SetTemplates(ctx context.Context, templates []models.Event) error {
	if !c.Enabled() || len(templates) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, template := range templates {
		data, err := json.Marshal(template)
		if err != nil {
			return errors.Wrap(err, "failed to marshal template for caching")
		}
		pipe.Set(ctx, TemplateCacheKey(template.ID), data, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to set templates in Redis")
	}

	return nil
}

// TemplateCacheKey generates a cache key for a template event
func TemplateCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("calendar:template:%s", id.String())
}

// Close closes the Redis connection
func (c *TemplateCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}
