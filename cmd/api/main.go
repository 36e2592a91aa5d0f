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

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

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

	if cfg.Seed.Enable {
		res, err := service.Bootstrap(ctx, store, users, authSvc, service.BootstrapConfig{
			AdminUsername: cfg.Seed.AdminUsername,
			AdminEmail:    cfg.Seed.AdminEmail,
			AdminPassword: cfg.Seed.AdminPassword,
			AdminPhone:    cfg.Seed.AdminPhone,
		}, log)
		if err != nil {
			log.Fatal("bootstrap failed", zap.Error(err))
		}
		log.Info("bootstrap", zap.Bool("skipped", res.Skipped))
	}

	deps := router.Deps{
		Log:              log,
		JWT:              jwter,
		Auth:             authSvc,
		Users:            service.NewUserService(users, store, opts),
		RBAC:             service.NewRBACService(store, rc, log),
		LoginLimit:       cfg.Security.LoginLimit,
		LoginLimitWindow: cfg.Security.LoginLimitWindow,
		TrustedProxies:   cfg.App.TrustedProxies,
	}
	if rc != nil {
		deps.LoginCounter = rc
	}
	r, err := router.NewAPIEngine(deps, router.DefaultLimits)
	if err != nil {
		log.Fatal("user api engine", zap.Error(err))
	}

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("user api",
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	if err := server.Run(ctx, srv, "user api", log); err != nil {
		log.Fatal("user api FAILED", zap.Error(err))
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

// mustOpenCache redis 未启用时返回 nil（登录限流退化为进程内）
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
