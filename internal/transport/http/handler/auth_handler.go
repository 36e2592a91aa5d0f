package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inventory-erp/internal/service"
	"inventory-erp/internal/transport/http/ez"
)

type AuthHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

func NewAuthHandler(a *service.AuthService, u *service.UserService) *AuthHandler {
	return &AuthHandler{auth: a, users: u}
}

type loginIn struct {
	Identifier string `json:"identifier" binding:"required"` // 用户名或邮箱
	Password   string `json:"password"   binding:"required"`
}

type meOut struct {
	service.UserView
	Permissions []string `json:"permissions"`
}

// MountPublic /auth/login、/auth/register（无需登录）；loginMW 只作用于登录
func (h *AuthHandler) MountPublic(e ez.EZ, loginMW ...gin.HandlerFunc) {
	ez.RegisterAction(e, ez.Action[loginIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Use:    loginMW,
		Handler: func(c *gin.Context, in *loginIn) (*service.AuthResult, error) {
			return h.auth.Authenticate(c.Request.Context(), in.Identifier, in.Password)
		},
	})

	ez.RegisterAction(e, ez.Action[service.RegisterInput, service.UserView]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.RegisterInput) (service.UserView, error) {
			u, err := h.auth.Register(c.Request.Context(), *in)
			if err != nil {
				return service.UserView{}, err
			}
			v, err := h.users.GetUser(c.Request.Context(), u.ID)
			if err != nil {
				return service.UserView{}, err
			}
			return *v, nil
		},
	})
}

// MountAuthed /auth/change-password、/me（需登录）
func (h *AuthHandler) MountAuthed(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[service.ChangePasswordInput, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/change-password",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *service.ChangePasswordInput) (gin.H, error) {
			uid, err := ez.UserID(c)
			if err != nil {
				return nil, err
			}
			in.UserID = uid
			if err := h.auth.ChangePassword(c.Request.Context(), *in); err != nil {
				return nil, err
			}
			return gin.H{"id": uid}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, meOut]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (meOut, error) {
			uid, err := ez.UserID(c)
			if err != nil {
				return meOut{}, err
			}
			v, err := h.users.GetUser(c.Request.Context(), uid)
			if err != nil {
				return meOut{}, err
			}
			perms, err := h.users.Permissions(c.Request.Context(), uid)
			if err != nil {
				return meOut{}, err
			}
			return meOut{UserView: *v, Permissions: perms}, nil
		},
	})
}

// MountAdmin /auth/reset-password/:id（管理端）
func (h *AuthHandler) MountAdmin(e ez.EZ) {
	type resetOut struct {
		ID       int64  `json:"id"`
		Password string `json:"password"`
	}
	ez.RegisterAction(e, ez.Action[struct{}, resetOut]{
		Method:     http.MethodPost,
		Path:       "/auth/reset-password/:id",
		Permission: "User.Edit",
		Binder:     ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (resetOut, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return resetOut{}, err
			}
			pw, err := h.auth.ResetPassword(c.Request.Context(), id)
			if err != nil {
				return resetOut{}, err
			}
			c.Header("Cache-Control", "no-store")
			return resetOut{ID: id, Password: pw}, nil
		},
	})
}
