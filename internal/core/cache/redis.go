package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{RDB: rdb}
}

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

func genKey(key string) string { return key + ":gen" }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	// 先读缓存
	if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		return b, nil
	}
	// 同 key 并发回源只执行一次
	v, err, _ := c.sf.Do(key, func() (any, error) {
		gen, _ := c.RDB.Get(ctx, genKey(key)).Int64()
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		c.setIfCurrent(ctx, key, gen, b, ttl)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// setIfCurrent 回源期间发生过 Invalidate（版本号变化）则不回写，避免旧值覆盖
func (c *Cache) setIfCurrent(ctx context.Context, key string, gen int64, b []byte, ttl time.Duration) {
	gk := genKey(key)
	_ = c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		now, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if now != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, gk)
}

// Invalidate 删除缓存键并推进版本号，写操作提交后调用
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		for _, k := range keys {
			p.Incr(ctx, genKey(k))
		}
		return nil
	})
	return err
}

// Hit 固定窗口计数：窗口内第一次命中时设置过期，返回当前计数与剩余时间
func (c *Cache) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	n, err := c.RDB.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if n == 1 {
		if err := c.RDB.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return n, window, nil
	}
	left, err := c.RDB.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if left < 0 {
		// 过期设置丢失时补上，避免计数永不清零
		_ = c.RDB.PExpire(ctx, key, window).Err()
		left = window
	}
	return n, left, nil
}
