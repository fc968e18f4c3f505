package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"github.com/Wei-Shaw/csp2api/internal/config"
	"github.com/Wei-Shaw/csp2api/internal/handler"
)

// ProvideGinEngine 按配置的运行模式构建 gin 引擎
func ProvideGinEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// ProvideHTTPServer 组装路由并返回 http.Server
func ProvideHTTPServer(cfg *config.Config, engine *gin.Engine, handlers *handler.Handlers) *http.Server {
	router := SetupRouter(engine, handlers)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
}

// ProviderSet server 层依赖注入
var ProviderSet = wire.NewSet(
	ProvideGinEngine,
	ProvideHTTPServer,
)
