package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisCatalogKey = "ingredients:catalog"

// listReader is the part of a Redis client the source needs.
type listReader interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisSource reads a catalog published as a Redis list of JSON records.
// List order is the catalog order.
type RedisSource struct {
	client listReader
	key    string
}

func NewRedisSource(client listReader, key string) *RedisSource {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultRedisCatalogKey
	}
	return &RedisSource{client: client, key: key}
}

func (r *RedisSource) Name() string {
	return normalizeSourceName("redis", r.key)
}

func (r *RedisSource) Load(ctx context.Context) ([]RawRecord, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis catalog source has no client")
	}
	items, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read redis list %s: %w", r.key, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: redis list %s is empty or missing", ErrMalformedCatalog, r.key)
	}
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		raw = append(raw, json.RawMessage(item))
	}
	return decodeRawItems(raw), nil
}
