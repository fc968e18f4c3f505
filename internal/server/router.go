package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/csp2api/internal/handler"
	"github.com/Wei-Shaw/csp2api/internal/server/middleware"
)

// SetupRouter 配置路由器中间件和路由
func SetupRouter(r *gin.Engine, handlers *handler.Handlers) *gin.Engine {
	// 应用中间件
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Logger())

	// 注册路由
	registerRoutes(r, handlers)

	return r
}

// registerRoutes 注册所有 HTTP 路由
func registerRoutes(r *gin.Engine, h *handler.Handlers) {
	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API v1
	v1 := r.Group("/api/v1")

	csp := v1.Group("/csp")
	{
		csp.POST("/token", h.Token.ResolveToken)
		csp.GET("/cache", h.Token.CacheSnapshot)
		csp.DELETE("/cache/:key", h.Token.ReleaseEntry)
	}
}
