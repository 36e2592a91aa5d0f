package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"inventory-erp/internal/core/server"
	"inventory-erp/internal/service"
	mdw "inventory-erp/internal/transport/http/middleware"
)

// Deps 两个 engine 共用的依赖
type Deps struct {
	Log   *zap.Logger
	JWT   mdw.TokenParser
	Auth  *service.AuthService
	Users *service.UserService
	RBAC  *service.RBACService

	// LoginCounter 为 nil 时登录限流退化为进程内令牌桶
	LoginCounter     mdw.WindowCounter
	LoginLimit       int
	LoginLimitWindow time.Duration

	// TrustedProxies 为空时不信任 X-Forwarded-For（限流按连接地址）
	TrustedProxies []string
}

type Limits struct {
	RPS         rate.Limit
	Burst       int
	Concurrency int64
	MaxBody     int64
	Timeout     time.Duration
}

var DefaultLimits = Limits{RPS: 200, Burst: 400, Concurrency: 300, MaxBody: 1 << 20, Timeout: 10 * time.Second}

func newEngine(name string, d Deps, lim Limits) (*gin.Engine, error) {
	l := d.Log
	r, err := server.NewRouter(l, d.TrustedProxies)
	if err != nil {
		return nil, err
	}
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(lim.RPS, lim.Burst),
		mdw.ConcurrencyLimit(lim.Concurrency),
		mdw.MaxBodyBytes(lim.MaxBody),
		mdw.Timeout(lim.Timeout),
		mdw.Metrics(name),
		mdw.AccessLog(l),
	)

	// 健康检查 + 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())
	return r, nil
}

func (d Deps) loginThrottle() gin.HandlerFunc {
	if d.LoginCounter == nil {
		return mdw.LoginThrottleLocal(d.LoginLimit, d.LoginLimitWindow)
	}
	return mdw.LoginThrottle(d.LoginCounter, d.LoginLimit, d.LoginLimitWindow, d.Log)
}
