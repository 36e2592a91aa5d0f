package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"inventory-erp/internal/core/auth"
	"inventory-erp/internal/domain"
)

// TokenIssuer 由 auth.JWTer 实现
type TokenIssuer interface {
	Issue(id auth.Identity, roles, permissions []string) (string, error)
}

type Options struct {
	PhoneRegion string
	Logger      *zap.Logger
}

type AuthService struct {
	users       domain.UserRepository
	rbac        domain.RBACStore
	tokens      TokenIssuer
	phoneRegion string
	log         *zap.Logger
	now         func() time.Time

	// 用户不存在时也做一次哈希，避免响应时间暴露账号是否存在
	dummyHash, dummySalt string
}

func NewAuthService(users domain.UserRepository, rbac domain.RBACStore, tokens TokenIssuer, o Options) *AuthService {
	l := o.Logger
	if l == nil {
		l = zap.NewNop()
	}
	s := &AuthService{
		users:       users,
		rbac:        rbac,
		tokens:      tokens,
		phoneRegion: o.PhoneRegion,
		log:         l.Named("auth"),
		now:         time.Now,
	}
	s.dummySalt = dummySalt
	var err error
	if s.dummyHash, err = auth.HashPassword("dummy-password", dummySalt); err != nil {
		s.log.Error("dummy credential", zap.Error(err))
	}
	return s
}

// 固定且合法的盐，保证用户不存在时也走完整的哈希路径
var dummySalt = base64.StdEncoding.EncodeToString(make([]byte, auth.SaltBytes))

type AuthResult struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Token       string   `json:"token"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Authenticate 用户名或邮箱 + 密码登录；失败原因对调用方不可区分
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	u, err := s.users.FindByIdentifier(ctx, identifier)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		auth.VerifyPassword(password, s.dummyHash, s.dummySalt)
		return nil, s.loginFailed()
	case err != nil:
		loginTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !auth.VerifyPassword(password, u.PasswordHash, u.PasswordSalt) || !u.IsActive {
		return nil, s.loginFailed()
	}

	if err := s.users.TouchLastLogin(ctx, u.ID, s.now()); err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	roles, err := s.rbac.ResolveUserRoles(ctx, u.ID)
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	perms, err := s.rbac.ResolveUserPermissions(ctx, u.ID)
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	res := &AuthResult{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Roles:       domain.RoleNames(roles),
		Permissions: domain.PermissionCodes(perms),
	}
	res.Token, err = s.tokens.Issue(auth.Identity{ID: u.ID, Username: u.Username, Email: u.Email}, res.Roles, res.Permissions)
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	loginTotal.WithLabelValues("success").Inc()
	s.log.Info("login", zap.Int64("user_id", u.ID), zap.Int("roles", len(res.Roles)))
	return res, nil
}

func (s *AuthService) loginFailed() error {
	loginTotal.WithLabelValues("invalid").Inc()
	return domain.ErrInvalidCredentials
}

type RegisterInput struct {
	Username        string  `json:"username"        validate:"required,min=3,max=64"`
	Email           string  `json:"email"           validate:"required,email,max=191"`
	Password        string  `json:"password"        validate:"required,min=6,max=128"`
	ConfirmPassword string  `json:"confirmPassword" validate:"required"`
	Phone           *string `json:"phone"`
}

// Register 查重只是友好提示；并发下由唯一索引兜底
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, domain.Validation("password and confirmation do not match")
	}
	phone, err := normalizePhone(in.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}
	hash, salt, err := auth.NewCredential(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Phone:        phone,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUnique(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

type ChangePasswordInput struct {
	UserID             int64  `json:"-"`
	CurrentPassword    string `json:"currentPassword"    validate:"required"`
	NewPassword        string `json:"newPassword"        validate:"required,min=6,max=128"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required"`
}

func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if err := checkStruct(in); err != nil {
		return err
	}
	if in.NewPassword != in.ConfirmNewPassword {
		return domain.Validation("new password and confirmation do not match")
	}
	u, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(in.CurrentPassword, u.PasswordHash, u.PasswordSalt) {
		return domain.Unauthorized("current password is incorrect")
	}
	hash, salt, err := auth.NewCredential(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, salt); err != nil {
		return err
	}
	s.log.Info("password changed", zap.Int64("user_id", u.ID))
	return nil
}

// ResetPassword 返回一次性明文密码；明文不落库、不写日志
func (s *AuthService) ResetPassword(ctx context.Context, userID int64) (string, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	plain, err := auth.RandomPassword(auth.DefaultPasswordLength)
	if err != nil {
		return "", err
	}
	hash, salt, err := auth.NewCredential(plain)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, salt); err != nil {
		return "", err
	}
	s.log.Info("password reset", zap.Int64("user_id", u.ID))
	return plain, nil
}
