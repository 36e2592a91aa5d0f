package router

import (
	"github.com/gin-gonic/gin"

	"inventory-erp/internal/service"
	"inventory-erp/internal/transport/http/ez"
	"inventory-erp/internal/transport/http/handler"
	mdw "inventory-erp/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：/admin/v1，统一要求 Admin 角色
func NewAdminEngine(d Deps, lim Limits) (*gin.Engine, error) {
	r, err := newEngine("admin", d, lim)
	if err != nil {
		return nil, err
	}

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.JWT, service.RoleAdmin))
	e := ez.New(admin)

	handler.NewAuthHandler(d.Auth, d.Users).MountAdmin(e)
	handler.NewUserHandler(d.Users).Mount(e)
	rbacH := handler.NewRBACHandler(d.RBAC)
	rbacH.MountRoles(e)
	rbacH.MountPermissions(e)

	return r, nil
}
