// internal/app/app.go
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/api"
	"github.com/novel2024/novel2024.github.io/internal/config"
	"github.com/novel2024/novel2024.github.io/internal/di"
	"github.com/novel2024/novel2024.github.io/internal/services"
	"github.com/novel2024/novel2024.github.io/internal/storage"
	"github.com/novel2024/novel2024.github.io/internal/store"
)

// InitServices 按依赖顺序初始化所有服务并注册到依赖注入容器
// 返回的清理函数负责停止文件监听并关闭仓库
func InitServices(cfg *config.Config, logger *zap.Logger) (func(), error) {
	container := di.GetContainer()

	// 1. 文件存储层（数据根目录）
	fileStore, err := storage.NewFileStorage(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStore)

	// 2. 内容仓库（按配置选择后端）
	storeCfg := store.Config{
		CatalogFile: cfg.CatalogFile,
		ChaptersDir: cfg.ChaptersDir,
		ContentDir:  cfg.ContentDir,
	}

	var repo store.Repository
	var closeRepo func() error

	switch cfg.StoreBackend {
	case "sqlite":
		sqliteRepo, err := store.NewSQLiteRepository(cfg.SQLitePath, fileStore, storeCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化SQLite仓库失败: %w", err)
		}
		repo = sqliteRepo
		closeRepo = sqliteRepo.Close
	default:
		fileRepo := store.NewFileRepository(fileStore, storeCfg, logger)
		repo = fileRepo
		closeRepo = fileRepo.Close
	}
	container.Register("repository", repo)

	// 3. 业务服务
	contentService := services.NewContentService(repo, logger)
	container.Register("content", contentService)

	exportService := services.NewExportService(repo, cfg.ExportDir, logger)
	container.Register("export", exportService)

	normalizeService := services.NewNormalizeService(logger)
	container.Register("normalize", normalizeService)

	// 4. 更新推送与缓存失效监听
	updateHub := api.NewUpdateHub(logger)
	container.Register("updates", updateHub)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	watcher := storage.NewWatcher(fileStore, logger, updateHub.Broadcast)
	if err := watcher.Start(watchCtx); err != nil {
		// 监听失败只降级缓存时效性，不阻止启动
		logger.Warn("启动存储监听失败，外部修改需等待缓存过期", zap.Error(err))
	}
	container.Register("watcher", watcher)

	cleanup := func() {
		cancelWatch()
		watcher.Stop()
		if closeRepo != nil {
			if err := closeRepo(); err != nil {
				logger.Warn("关闭仓库失败", zap.Error(err))
			}
		}
	}

	return cleanup, nil
}
