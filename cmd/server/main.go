// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/api"
	"github.com/novel2024/novel2024.github.io/internal/app"
	"github.com/novel2024/novel2024.github.io/internal/config"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// 2. 初始化日志
	var logger *zap.Logger
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("🚀 启动内容服务器",
		zap.String("port", cfg.Port),
		zap.String("data_dir", cfg.DataDir),
		zap.String("backend", cfg.StoreBackend))

	// 3. 初始化所有服务（按依赖顺序）
	cleanup, err := app.InitServices(cfg, logger)
	if err != nil {
		logger.Fatal("初始化服务失败", zap.Error(err))
	}
	defer cleanup()

	// 4. 设置路由（只获取服务，不创建）
	router, err := api.SetupRouter(cfg, logger)
	if err != nil {
		logger.Fatal("设置路由失败", zap.Error(err))
	}

	logger.Info("✅ 路由设置完成",
		zap.String("url", "http://localhost:"+cfg.Port))

	// 5. 启动服务器并等待关闭信号
	runWithGracefulShutdown(router, cfg.Port, logger)
}

// runWithGracefulShutdown 启动服务器，收到中断信号后优雅关闭
func runWithGracefulShutdown(router *gin.Engine, port string, logger *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("🛑 正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("服务器强制关闭", zap.Error(err))
	}

	logger.Info("✅ 服务器已关闭")
}
