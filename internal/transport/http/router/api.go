package router

import (
	"github.com/gin-gonic/gin"

	"inventory-erp/internal/transport/http/ez"
	"inventory-erp/internal/transport/http/handler"
	mdw "inventory-erp/internal/transport/http/middleware"
)

// NewAPIEngine 用户端：/api/v1
func NewAPIEngine(d Deps, lim Limits) (*gin.Engine, error) {
	r, err := newEngine("api", d, lim)
	if err != nil {
		return nil, err
	}
	authH := handler.NewAuthHandler(d.Auth, d.Users)

	api := r.Group("/api/v1")

	// 登录单独限流（按 IP）
	authH.MountPublic(ez.New(api), d.loginThrottle())

	// 鉴权分组（/me 必须挂这里，才能拿到 userId）
	authUser := api.Group("")
	authUser.Use(mdw.AuthJWT(d.JWT, ""))
	authH.MountAuthed(ez.New(authUser))

	return r, nil
}
