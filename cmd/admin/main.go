package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"inventory-erp/internal/core/auth"
	"inventory-erp/internal/core/cache"
	"inventory-erp/internal/core/config"
	"inventory-erp/internal/core/database"
	"inventory-erp/internal/core/logger"
	"inventory-erp/internal/core/server"
	"inventory-erp/internal/repo"
	"inventory-erp/internal/service"
	"inventory-erp/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, cleanup := newLogger(cfg)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	gin.DefaultWriter = logger.ToWriter(log, zapcore.DebugLevel)

	// 管理端只连库，不负责建表和初始化数据（由用户端启动完成）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	// JWT（密钥过短等配置错误在这里直接退出）
	jwter, err := auth.NewJWTer(cfg.JWT.IssuerConfig())
	if err != nil {
		log.Fatal("jwt config", zap.Error(err))
	}

	rc := mustOpenCache(cfg, log)
	if rc != nil {
		defer rc.Close()
	}

	users := repo.NewUserRepo(db)
	store := repo.NewRBACStore(db)
	opts := service.Options{PhoneRegion: cfg.Security.PhoneRegion, Logger: log}
	authSvc := service.NewAuthService(users, store, jwter, opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := router.Deps{
		Log:            log,
		JWT:            jwter,
		Auth:           authSvc,
		Users:          service.NewUserService(users, store, opts),
		RBAC:           service.NewRBACService(store, rc, log),
		TrustedProxies: cfg.App.TrustedProxies,
	}
	r, err := router.NewAdminEngine(deps, router.DefaultLimits)
	if err != nil {
		log.Fatal("admin api engine", zap.Error(err))
	}

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, 5*time.Second, 10*time.Second, 60*time.Second)

	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api",
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	if err := server.Run(ctx, srv, "admin api", log); err != nil {
		log.Fatal("admin api FAILED", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, func()) {
	rot := cfg.Log.Rotate
	return logger.NewWithOptions(logger.Options{
		Level:       cfg.Log.Level,
		JSON:        cfg.Log.JSON,
		AddCaller:   true,
		Development: !cfg.Log.JSON,
		Rotate: logger.FileRotate{
			Enable:     rot.Enable,
			Filename:   rot.Filename,
			MaxSizeMB:  rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAgeDays: rot.MaxAgeDays,
			Compress:   rot.Compress,
		},
	})
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}

// mustOpenCache redis 未启用时返回 nil（模块列表不走缓存）
func mustOpenCache(cfg *config.Config, l *zap.Logger) *cache.Cache {
	if !cfg.Redis.Enable {
		return nil
	}
	rc := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Fatal("redis ping", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	l.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	return rc
}
