// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/config"
	"github.com/novel2024/novel2024.github.io/internal/di"
	"github.com/novel2024/novel2024.github.io/internal/services"
)

// SetupRouter 配置HTTP路由
// 只从容器获取服务，不在路由层创建实例
func SetupRouter(cfg *config.Config, logger *zap.Logger) (*gin.Engine, error) {
	container := di.GetContainer()

	contentService, ok := container.Get("content").(*services.ContentService)
	if !ok {
		return nil, fmt.Errorf("内容服务未正确初始化")
	}

	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未正确初始化")
	}

	updateHub, ok := container.Get("updates").(*UpdateHub)
	if !ok {
		return nil, fmt.Errorf("更新推送未正确初始化")
	}

	authMiddleware, err := NewAuthMiddleware(cfg, logger)
	if err != nil {
		return nil, err
	}

	handler := NewHandler(contentService, exportService, logger)
	adminHandler := NewAdminHandler(contentService, exportService, cfg,
		authMiddleware.TokenConfig(), logger)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// WebSocket 更新推送（后台管理页面刷新信号）
	r.GET("/ws/updates", updateHub.HandleUpdates)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		// ===============================
		// 读者端路由
		// ===============================
		storiesGroup := api.Group("/stories")
		{
			storiesGroup.GET("", handler.GetStories)
			storiesGroup.GET("/:folder", handler.GetStory)
			storiesGroup.GET("/:folder/chapters", handler.GetChapters)
			storiesGroup.GET("/:folder/chapters/:key", handler.GetChapter)
			storiesGroup.GET("/:folder/chapters/:key/read", handler.ReadChapter)
		}

		// ===============================
		// 后台管理路由（登录 + 会话保护的写操作）
		// ===============================
		api.POST("/admin/login", adminHandler.Login)

		adminGroup := api.Group("/admin", authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/logout", adminHandler.Logout)

			adminGroup.POST("/stories", adminHandler.CreateStory)
			adminGroup.PUT("/stories/:folder", adminHandler.UpdateStory)
			adminGroup.DELETE("/stories/:folder", adminHandler.DeleteStory)

			adminGroup.POST("/stories/:folder/chapters", adminHandler.SaveChapter)
			adminGroup.DELETE("/stories/:folder/chapters/:key", adminHandler.DeleteChapter)

			adminGroup.POST("/stories/:folder/export", adminHandler.ExportStory)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
