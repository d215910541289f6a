// Package cache redis 读穿缓存：singleflight 合并回源，redis 故障时直接回源
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "instantclip_cache_lookups_total", Help: "Redis cache lookups by result"},
	[]string{"result"}, // hit / miss / error / stale
)

func init() { prometheus.MustRegister(lookups) }

const (
	// 回源最长时间，与发起请求的生命周期无关
	loadTimeout = 5 * time.Second
	// 代数 key 需活得比任何一次回源都久
	genTTL = time.Hour
)

// setIfGen 只有代数没变时才回写；KEYS[1]=数据 KEYS[2]=代数，ARGV: 值, 读到的代数, ttl 毫秒
var setIfGen = redis.NewScript(`
local cur = redis.call('GET', KEYS[2]) or '0'
if cur ~= ARGV[2] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // 所有 key 的命名空间，如 "instantclip:"
}

type Cache struct {
	rdb    *redis.Client
	prefix string
	sf     singleflight.Group
}

func New(o Options) *Cache {
	return &Cache{
		rdb:    redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}),
		prefix: o.Prefix,
	}
}

func (c *Cache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.rdb.Close() }

func (c *Cache) genKey(key string) string { return c.prefix + "gen:" + key }

// generation 读不到（redis 故障）时 ok=false，此时不回写
func (c *Cache) generation(ctx context.Context, key string) (gen string, ok bool) {
	gen, err := c.rdb.Get(ctx, c.genKey(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		return "", false
	}
	return gen, true
}

// GetOrLoad 未命中或 redis 出错时调用 load。
// 回源期间 key 被 Delete 过，则结果只返回给本轮调用方，不写回 redis
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	full := c.prefix + key
	b, err := c.rdb.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		lookups.WithLabelValues("hit").Inc()
		return b, nil
	case errors.Is(err, redis.Nil):
		lookups.WithLabelValues("miss").Inc()
	default:
		lookups.WithLabelValues("error").Inc()
	}

	ch := c.sf.DoChan(full, func() (any, error) {
		// 多个调用方共享这次回源，不能被第一个调用方的取消影响
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		gen, genOK := c.generation(lctx, key)
		b, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if genOK {
			n, err := setIfGen.Run(lctx, c.rdb, []string{full, c.genKey(key)}, b, gen, ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				lookups.WithLabelValues("stale").Inc()
			}
		}
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}

// Delete 递增代数并删除 key；进行中的回源因代数变化不会写回旧值
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, c.genKey(k))
			p.Expire(ctx, c.genKey(k), genTTL)
		}
		p.Del(ctx, full...)
		return nil
	})
	// 之后的调用方重新回源，不再加入旧的那一轮
	for _, k := range full {
		c.sf.Forget(k)
	}
	return err
}
