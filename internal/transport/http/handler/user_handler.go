package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"inventory-erp/internal/domain"
	"inventory-erp/internal/service"
	"inventory-erp/internal/transport/http/ez"
	resp "inventory-erp/internal/transport/http/response"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(u *service.UserService) *UserHandler { return &UserHandler{users: u} }

type listUsersQ struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Q      string `form:"q"`      // 按用户名/邮箱模糊搜
	Active *bool  `form:"active"` // 不传则不过滤
}

type profileIn struct {
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"isActive" binding:"required"`
}

type roleIDsIn struct {
	RoleIDs []int64 `json:"roleIds" binding:"required"`
}

// Mount 管理端 /users
func (h *UserHandler) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[listUsersQ, resp.Page[service.UserView]]{
		Method:     http.MethodGet,
		Path:       "/users",
		Permission: "User.View",
		Binder:     ez.BindQuery,
		Handler: func(c *gin.Context, in *listUsersQ) (resp.Page[service.UserView], error) {
			items, total, err := h.users.ListUsers(c.Request.Context(), domain.ListUsersQuery{
				Offset: in.Offset, Limit: in.Limit, Q: strings.TrimSpace(in.Q), Active: in.Active,
			})
			if err != nil {
				return resp.Page[service.UserView]{}, err
			}
			return resp.Page[service.UserView]{Total: total, Items: items}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.UserView]{
		Method:     http.MethodGet,
		Path:       "/users/:id",
		Permission: "User.View",
		Binder:     ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.UserView, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return h.users.GetUser(c.Request.Context(), id)
		},
	})

	ez.RegisterAction(e, ez.Action[profileIn, *service.UserView]{
		Method:     http.MethodPut,
		Path:       "/users/:id",
		Permission: "User.Edit",
		Binder:     ez.BindJSON,
		Handler: func(c *gin.Context, in *profileIn) (*service.UserView, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return h.users.UpdateProfile(c.Request.Context(), id, service.ProfileInput{
				Phone: in.Phone, IsActive: *in.IsActive,
			})
		},
	})

	// 软删除：只停用
	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method:     http.MethodDelete,
		Path:       "/users/:id",
		Permission: "User.Delete",
		Binder:     ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := h.users.Deactivate(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[roleIDsIn, domain.Diff]{
		Method:     http.MethodPut,
		Path:       "/users/:id/roles",
		Permission: "User.Edit",
		Binder:     ez.BindJSON,
		Handler: func(c *gin.Context, in *roleIDsIn) (domain.Diff, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return domain.Diff{}, err
			}
			return h.users.AssignRoles(c.Request.Context(), id, in.RoleIDs)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []string]{
		Method:     http.MethodGet,
		Path:       "/users/:id/permissions",
		Permission: "User.View",
		Binder:     ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]string, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return h.users.Permissions(c.Request.Context(), id)
		},
	})
}
