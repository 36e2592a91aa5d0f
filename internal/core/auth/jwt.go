package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"inventory-erp/internal/domain"
)

const MinSecretBytes = 32

// Claims 固定结构的声明集合（sub = 用户 id）
type Claims struct {
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// UserID 从 sub 解析用户 id
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c *Claims) HasPermission(code string) bool {
	for _, p := range c.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

type Identity struct {
	ID       int64
	Username string
	Email    string
}

type IssuerConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Validate 启动时调用，配置缺失即为致命错误
func (c IssuerConfig) Validate() error {
	switch {
	case c.Secret == "":
		return domain.Configuration("jwt secret is required", nil)
	case len(c.Secret) < MinSecretBytes:
		return domain.Configuration(fmt.Sprintf("jwt secret must be at least %d bytes", MinSecretBytes), nil)
	case c.Issuer == "":
		return domain.Configuration("jwt issuer is required", nil)
	case c.Audience == "":
		return domain.Configuration("jwt audience is required", nil)
	case c.TTL <= 0:
		return domain.Configuration("jwt ttl must be positive", nil)
	}
	return nil
}

type JWTer struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration

	now func() time.Time
}

func NewJWTer(cfg IssuerConfig) (*JWTer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &JWTer{
		Secret:   []byte(cfg.Secret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.TTL,
		now:      time.Now,
	}, nil
}

func (j *JWTer) clock() time.Time {
	if j.now != nil {
		return j.now()
	}
	return time.Now()
}

func (j *JWTer) Issue(id Identity, roles, permissions []string) (string, error) {
	if len(j.Secret) == 0 || j.TTL <= 0 {
		return "", domain.Configuration("jwt issuer not configured", nil)
	}
	now := j.clock()
	claims := Claims{
		Email:       id.Email,
		Username:    id.Username,
		Roles:       nonNil(roles),
		Permissions: nonNil(permissions),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.ID, 10),
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			Audience:  jwt.ClaimStrings{j.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// Parse 供鉴权中间件使用：校验算法/签名/issuer/audience/过期
func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg")
		}
		return j.Secret, nil
	},
		jwt.WithIssuer(j.Issuer),
		jwt.WithAudience(j.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(60*time.Second),
		jwt.WithTimeFunc(j.clock),
	)

	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
