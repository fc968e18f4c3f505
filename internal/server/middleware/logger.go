package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Wei-Shaw/csp2api/internal/pkg/ctxkey"
	"github.com/Wei-Shaw/csp2api/internal/pkg/logger"
)

// Logger 请求日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// 跳过健康检查等高频探针路径的日志
		if path == "/healthz" {
			return
		}

		latency := time.Since(startTime)
		cacheKey, _ := c.Request.Context().Value(ctxkey.CacheKey).(string)

		fields := []zap.Field{
			zap.String("component", "http.access"),
			zap.Int("status_code", c.Writer.Status()),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		}
		if cacheKey != "" {
			fields = append(fields, zap.String("cache_key", cacheKey))
		}

		l := logger.FromContext(c.Request.Context()).With(fields...)
		l.Info("http request completed")

		if len(c.Errors) > 0 {
			l.Warn("http request contains gin errors", zap.String("errors", c.Errors.String()))
		}
	}
}
