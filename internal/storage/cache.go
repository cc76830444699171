package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"consentry/pkg/platform/sentinel"
)

const defaultCacheTTL = 5 * time.Minute

// Cache is a Redis read-through layer in front of another adapter. It caches
// FindOne results for the configured lookup-heavy models (domains by name,
// purposes by code) and invalidates by bumping a per-model generation counter
// on any write, so stale keys simply expire instead of being tracked.
//
// Cache failures never fail the request: Redis errors degrade to the
// underlying adapter with a debug diagnostic.
type Cache struct {
	next   Adapter
	client *redis.Client
	ttl    time.Duration
	models map[string]bool
	logger *slog.Logger
}

// NewCache wraps next with a read-through cache over the given models.
func NewCache(next Adapter, client *redis.Client, models []string, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	cacheable := make(map[string]bool, len(models))
	for _, model := range models {
		cacheable[model] = true
	}
	return &Cache{next: next, client: client, ttl: ttl, models: cacheable, logger: logger}
}

func (c *Cache) Create(ctx context.Context, model string, data map[string]any) (map[string]any, error) {
	record, err := c.next.Create(ctx, model, data)
	if err == nil {
		c.invalidate(ctx, model)
	}
	return record, err
}

func (c *Cache) FindOne(ctx context.Context, model string, where []Condition) (map[string]any, error) {
	if !c.models[model] {
		return c.next.FindOne(ctx, model, where)
	}

	key, ok := c.cacheKey(ctx, model, where)
	if ok {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var record map[string]any
			if err := json.Unmarshal(payload, &record); err == nil {
				return record, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.DebugContext(ctx, "cache read failed", "model", model, "error", err)
		}
	}

	record, err := c.next.FindOne(ctx, model, where)
	if err != nil {
		return nil, err
	}
	if ok {
		if payload, err := json.Marshal(record); err == nil {
			if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				c.logger.DebugContext(ctx, "cache write failed", "model", model, "error", err)
			}
		}
	}
	return record, nil
}

func (c *Cache) FindMany(ctx context.Context, model string, where []Condition) ([]map[string]any, error) {
	return c.next.FindMany(ctx, model, where)
}

func (c *Cache) Update(ctx context.Context, model string, update map[string]any, where []Condition) (map[string]any, error) {
	record, err := c.next.Update(ctx, model, update, where)
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		c.invalidate(ctx, model)
	}
	return record, err
}

func (c *Cache) UpdateMany(ctx context.Context, model string, update map[string]any, where []Condition) (int, error) {
	count, err := c.next.UpdateMany(ctx, model, update, where)
	if err == nil {
		c.invalidate(ctx, model)
	}
	return count, err
}

// cacheKey builds a generation-scoped key for a where clause. Returns false
// when the generation counter cannot be read, which disables caching for this
// call only.
func (c *Cache) cacheKey(ctx context.Context, model string, where []Condition) (string, bool) {
	gen, err := c.client.Get(ctx, genKey(model)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.DebugContext(ctx, "cache generation read failed", "model", model, "error", err)
		return "", false
	}

	predicates := make([]string, 0, len(where))
	for _, cond := range where {
		predicates = append(predicates, fmt.Sprintf("%s:%s:%v", cond.Field, cond.Operator, cond.Value))
	}
	sort.Strings(predicates)
	return fmt.Sprintf("consentry:cache:%s:%d:%s", model, gen, strings.Join(predicates, "|")), true
}

func (c *Cache) invalidate(ctx context.Context, model string) {
	if !c.models[model] {
		return
	}
	if err := c.client.Incr(ctx, genKey(model)).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache invalidation failed", "model", model, "error", err)
	}
}

func genKey(model string) string {
	return "consentry:cachegen:" + model
}
