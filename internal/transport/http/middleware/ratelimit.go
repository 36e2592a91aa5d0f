package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	resp "inventory-erp/internal/transport/http/response"
)

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTooManyRequests, "too many requests"))
	}
}

// RateLimitPerIP 每 IP 限速（进程内）
func RateLimitPerIP(rps rate.Limit, burst int) gin.HandlerFunc {
	set := newIPLimiters(rps, burst)
	return func(c *gin.Context) {
		if set.allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTooManyRequests, "too many requests"))
	}
}

type ipEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipLimiters 空闲超过 idle 的桶已回满，与新建等价，可直接回收
type ipLimiters struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	buckets   map[string]*ipEntry
	now       func() time.Time
}

func newIPLimiters(rps rate.Limit, burst int) *ipLimiters {
	idle := time.Minute
	if rps > 0 && rps != rate.Inf {
		if full := time.Duration(float64(burst) / float64(rps) * float64(time.Second)); full > idle {
			idle = full
		}
	}
	return &ipLimiters{
		rps:     rps,
		burst:   burst,
		idle:    idle,
		buckets: make(map[string]*ipEntry),
		now:     time.Now,
	}
}

func (s *ipLimiters) allow(ip string) bool {
	now := s.now()
	s.mu.Lock()
	if now.Sub(s.lastSweep) >= s.idle {
		for k, e := range s.buckets {
			if now.Sub(e.lastSeen) >= s.idle {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}
	e, ok := s.buckets[ip]
	if !ok {
		e = &ipEntry{lim: rate.NewLimiter(s.rps, s.burst)}
		s.buckets[ip] = e
	}
	e.lastSeen = now
	s.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

func (s *ipLimiters) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// WindowCounter 固定窗口计数器，由 cache.Cache 实现
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// LoginThrottle 按 IP 的固定窗口限流（多实例共享 redis 计数）；redis 异常时放行
func LoginThrottle(counter WindowCounter, limit int, window time.Duration, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		n, left, err := counter.Hit(c, "throttle:login:"+c.ClientIP(), window)
		if err != nil {
			l.Warn("login throttle unavailable", zap.Error(err))
			c.Next()
			return
		}
		if n > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(left.Seconds()))))
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTooManyRequests, "too many login attempts"))
			return
		}
		c.Next()
	}
}

// LoginThrottleLocal 未启用 redis 时的进程内版本：窗口内 limit 次，均匀回填
func LoginThrottleLocal(limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return RateLimitPerIP(rate.Every(window/time.Duration(limit)), limit)
}
