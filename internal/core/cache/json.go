package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

var negative = []byte("null")

// GetOrLoadJSON load 返回 (nil, nil) 表示不存在，同样缓存 ttl
func GetOrLoadJSON[T any](c *Cache, ctx context.Context, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		switch {
		case err != nil:
			return nil, err
		case v == nil:
			return negative, nil
		}
		return json.Marshal(v)
	})
	if err != nil || bytes.Equal(b, negative) {
		return nil, err
	}

	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
