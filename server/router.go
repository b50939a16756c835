package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter 注册 WebSocket、管理与监控接口
func NewRouter(m *Manager, mode string) *gin.Engine {
	if mode == gin.ReleaseMode || mode == gin.DebugMode || mode == gin.TestMode {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors())

	h := &api{m: m}
	r.GET("/ws", h.serveWS)
	r.GET("/metrics", h.metrics)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	admin := r.Group("/admin")
	{
		admin.GET("/config", h.getConfig)
		admin.POST("/config", h.updateConfig)
		admin.POST("/round", h.setRound)
		admin.GET("/players", h.players)

		admin.GET("/sessions", h.listSessions)
		admin.POST("/sessions", h.createSession)
		admin.DELETE("/sessions/:id", h.closeSession)
	}
	return r
}

// requestLogger 用 zap 记录每个请求（替代 gin 默认的 stdout 日志）
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		Log.Debugw("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

// cors 前后端分离部署时允许跨域访问管理接口
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
