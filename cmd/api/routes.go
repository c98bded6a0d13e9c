package main

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/blog-backend/internal/auth"
	"github.com/yourusername/blog-backend/internal/blog"
	"github.com/yourusername/blog-backend/internal/logging"
)

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "blog-api",
		"version": "0.1.0",
	})
}

// setupRoutes はミドルウェアと API グループの配線を行います。
func setupRoutes(router *gin.Engine, a *app) {
	router.Use(gin.Recovery())
	router.Use(logging.Middleware(a.logger))
	router.Use(a.metrics.Middleware())

	// CORSミドルウェアの設定（クッキー認証のため credentials を許可）
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(a.cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	// まずは誰でも叩けるヘルスチェックとメトリクスを登録
	router.GET("/health", handleHealth)
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	api := router.Group("/api")
	{
		auth.NewHandler(a.service, a.sessions).RegisterRoutes(api.Group("/auth"))

		protected := api.Group("")
		protected.Use(auth.RequireLogin(a.sessions, a.accounts))
		{
			blog.NewHandler(a.posts, a.comments, a.accounts).RegisterRoutes(protected)
			if a.jobs != nil {
				protected.GET("/jobs/:id", jobStatusHandler(a.jobs))
			}
		}
	}
}
