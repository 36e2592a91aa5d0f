package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"inventory-erp/internal/core/auth"
	"inventory-erp/internal/domain"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
	// TrustedProxies 可信反向代理（IP/CIDR）；为空时不信任 X-Forwarded-For
	TrustedProxies []string
}

type Rotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate Rotate
}

type JWT struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

func (j JWT) IssuerConfig() auth.IssuerConfig {
	return auth.IssuerConfig{Secret: j.Secret, Issuer: j.Issuer, Audience: j.Audience, TTL: j.TTL}
}

type Redis struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Seed 首次启动的默认角色/权限/管理员
type Seed struct {
	Enable        bool
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	AdminPhone    string
}

type Security struct {
	PhoneRegion      string        // 手机号默认地区，如 CN
	LoginLimit       int           // 窗口内允许的登录次数（按 IP）
	LoginLimitWindow time.Duration // 窗口长度
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	DB       DB
	Redis    Redis `mapstructure:"redis"`
	Seed     Seed
	Security Security
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "inventory-erp")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "inventory-erp")
	v.SetDefault("jwt.audience", "inventory-erp-clients")
	v.SetDefault("jwt.ttl", 7*24*time.Hour)
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 10)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.loglevel", "warn")
	v.SetDefault("seed.adminusername", "admin")
	v.SetDefault("seed.adminemail", "admin@example.com")
	v.SetDefault("security.phoneregion", "CN")
	v.SetDefault("security.loginlimit", 10)
	v.SetDefault("security.loginlimitwindow", time.Minute)
}

// Load 读取配置；文件缺失或校验失败都返回 ErrConfiguration
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, domain.Configuration("read config "+path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, domain.Configuration("unmarshal config", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if err := c.JWT.IssuerConfig().Validate(); err != nil {
		return err
	}
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return domain.Configuration(fmt.Sprintf("unsupported db driver %q", c.DB.Driver), nil)
	}
	if c.DB.DSN == "" {
		return domain.Configuration("db dsn is required", nil)
	}
	for _, p := range c.App.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return domain.Configuration(fmt.Sprintf("invalid trusted proxy %q", p), err)
			}
		}
	}
	if c.Security.LoginLimit < 0 || c.Security.LoginLimitWindow < 0 {
		return domain.Configuration("security login limit must not be negative", nil)
	}
	return nil
}
