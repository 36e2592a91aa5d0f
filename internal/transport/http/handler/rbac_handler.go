package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inventory-erp/internal/domain"
	"inventory-erp/internal/service"
	"inventory-erp/internal/transport/http/ez"
)

type RBACHandler struct {
	rbac *service.RBACService
}

func NewRBACHandler(s *service.RBACService) *RBACHandler { return &RBACHandler{rbac: s} }

type permissionIDsIn struct {
	PermissionIDs []int64 `json:"permissionIds" binding:"required"`
}

type listPermissionsQ struct {
	Module string `form:"module"`
}

// byID 读取 :id 后调用 fn
func byID[O any](fn func(c *gin.Context, id int64) (O, error)) func(c *gin.Context, _ *struct{}) (O, error) {
	return func(c *gin.Context, _ *struct{}) (O, error) {
		id, err := ez.ParamID(c, "id")
		if err != nil {
			var zero O
			return zero, err
		}
		return fn(c, id)
	}
}

// MountRoles 管理端 /roles
func (h *RBACHandler) MountRoles(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[struct{}, []domain.Role]{
		Method: http.MethodGet,
		Path:   "/roles",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Role, error) {
			return h.rbac.ListRoles(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Role]{
		Method: http.MethodGet,
		Path:   "/roles/:id",
		Binder: ez.BindNone,
		Handler: byID(func(c *gin.Context, id int64) (*domain.Role, error) {
			return h.rbac.GetRole(c.Request.Context(), id)
		}),
	})

	ez.RegisterAction(e, ez.Action[service.RoleInput, *domain.Role]{
		Method: http.MethodPost,
		Path:   "/roles",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.RoleInput) (*domain.Role, error) {
			return h.rbac.CreateRole(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[service.RoleInput, *domain.Role]{
		Method: http.MethodPut,
		Path:   "/roles/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.RoleInput) (*domain.Role, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return h.rbac.UpdateRole(c.Request.Context(), id, *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/roles/:id",
		Binder: ez.BindNone,
		Handler: byID(func(c *gin.Context, id int64) (gin.H, error) {
			if err := h.rbac.DeleteRole(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		}),
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Permission]{
		Method: http.MethodGet,
		Path:   "/roles/:id/permissions",
		Binder: ez.BindNone,
		Handler: byID(func(c *gin.Context, id int64) ([]domain.Permission, error) {
			return h.rbac.RolePermissions(c.Request.Context(), id)
		}),
	})

	ez.RegisterAction(e, ez.Action[permissionIDsIn, domain.Diff]{
		Method: http.MethodPut,
		Path:   "/roles/:id/permissions",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *permissionIDsIn) (domain.Diff, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return domain.Diff{}, err
			}
			return h.rbac.SetRolePermissions(c.Request.Context(), id, in.PermissionIDs)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []service.UserView]{
		Method: http.MethodGet,
		Path:   "/roles/:id/users",
		Binder: ez.BindNone,
		Handler: byID(func(c *gin.Context, id int64) ([]service.UserView, error) {
			return h.rbac.RoleUsers(c.Request.Context(), id)
		}),
	})
}

// MountPermissions 管理端 /permissions
func (h *RBACHandler) MountPermissions(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[listPermissionsQ, []domain.Permission]{
		Method: http.MethodGet,
		Path:   "/permissions",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *listPermissionsQ) ([]domain.Permission, error) {
			return h.rbac.ListPermissions(c.Request.Context(), in.Module)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []string]{
		Method: http.MethodGet,
		Path:   "/permissions/modules",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]string, error) {
			return h.rbac.ListModules(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Permission]{
		Method: http.MethodGet,
		Path:   "/permissions/:id",
		Binder: ez.BindNone,
		Handler: byID(func(c *gin.Context, id int64) (*domain.Permission, error) {
			return h.rbac.GetPermission(c.Request.Context(), id)
		}),
	})

	ez.RegisterAction(e, ez.Action[service.PermissionInput, *domain.Permission]{
		Method: http.MethodPost,
		Path:   "/permissions",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.PermissionInput) (*domain.Permission, error) {
			return h.rbac.CreatePermission(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[service.PermissionInput, *domain.Permission]{
		Method: http.MethodPut,
		Path:   "/permissions/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.PermissionInput) (*domain.Permission, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			return h.rbac.UpdatePermission(c.Request.Context(), id, *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/permissions/:id",
		Binder: ez.BindNone,
		Handler: byID(func(c *gin.Context, id int64) (gin.H, error) {
			if err := h.rbac.DeletePermission(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		}),
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Role]{
		Method: http.MethodGet,
		Path:   "/permissions/:id/roles",
		Binder: ez.BindNone,
		Handler: byID(func(c *gin.Context, id int64) ([]domain.Role, error) {
			return h.rbac.PermissionRoles(c.Request.Context(), id)
		}),
	})
}
