// cmd/storyctl/main.go
// storyctl 是内容库的命令行维护工具，承接原先散落的站点维护脚本：
// 正文编码规范化与整本导出
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/config"
	"github.com/novel2024/novel2024.github.io/internal/services"
	"github.com/novel2024/novel2024.github.io/internal/storage"
	"github.com/novel2024/novel2024.github.io/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "storyctl",
		Short:        "内容库维护工具",
		Long:         "storyctl 对小说内容库执行维护操作：正文编码规范化、整本导出。",
		SilenceUsage: true,
	}

	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newExportCmd())

	return root
}

// newLogger 维护工具使用开发格式日志，输出到终端
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// newNormalizeCmd 对内容根目录执行 UTF-8 规范化
// 历史遗留的 GBK/BIG5 正文统一转为 UTF-8，并补齐 meta charset 声明；操作幂等
func newNormalizeCmd() *cobra.Command {
	var contentDir string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "将正文 HTML 统一规范化为 UTF-8",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if contentDir == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				contentDir = filepath.Join(cfg.DataDir, cfg.ContentDir)
			}

			result, err := services.NewNormalizeService(logger).NormalizeTree(contentDir)
			if err != nil {
				return err
			}

			fmt.Printf("处理 %d 个文件，修改 %d 个，失败 %d 个\n",
				result.Processed, result.Changed, len(result.Failed))
			for _, path := range result.Failed {
				fmt.Printf("  失败: %s\n", path)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("部分文件规范化失败")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contentDir, "content-dir", "", "正文根目录（默认取配置）")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	return cmd
}

// newExportCmd 导出整部小说为单个 HTML 或 Markdown 文档
func newExportCmd() *cobra.Command {
	var format string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "export <folder_name>",
		Short: "导出整部小说",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			fileStore, err := storage.NewFileStorage(cfg.DataDir, logger)
			if err != nil {
				return err
			}

			storeCfg := store.Config{
				CatalogFile: cfg.CatalogFile,
				ChaptersDir: cfg.ChaptersDir,
				ContentDir:  cfg.ContentDir,
			}

			var repo store.Repository
			if cfg.StoreBackend == "sqlite" {
				sqliteRepo, err := store.NewSQLiteRepository(cfg.SQLitePath, fileStore, storeCfg, logger)
				if err != nil {
					return err
				}
				defer sqliteRepo.Close()
				repo = sqliteRepo
			} else {
				fileRepo := store.NewFileRepository(fileStore, storeCfg, logger)
				defer fileRepo.Close()
				repo = fileRepo
			}

			result, err := services.NewExportService(repo, cfg.ExportDir, logger).
				ExportStory(args[0], services.ExportFormat(format))
			if err != nil {
				return err
			}

			fmt.Printf("已导出 %d 章到 %s\n", result.Chapters, result.FilePath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "html", "导出格式: html 或 markdown")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	return cmd
}
