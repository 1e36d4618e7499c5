// internal/services/export_service.go
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"go.uber.org/zap"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/store"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	ExportFormatHTML     ExportFormat = "html"
	ExportFormatMarkdown ExportFormat = "markdown"
)

// ExportResult 一次导出的结果
type ExportResult struct {
	FolderName string       `json:"folder_name"`
	Format     ExportFormat `json:"format"`
	FilePath   string       `json:"file_path"`
	Chapters   int          `json:"chapters"`
	ExportedAt time.Time    `json:"exported_at"`
}

// ExportService 将整部小说的章节按顺序汇编为单个文档
// Markdown 导出通过 html-to-markdown 转换章节正文
type ExportService struct {
	repo      store.Repository
	exportDir string
	converter *converter.Converter
	logger    *zap.Logger
}

// NewExportService 创建导出服务
func NewExportService(repo store.Repository, exportDir string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ExportService{
		repo:      repo,
		exportDir: exportDir,
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger: logger,
	}
}

// ExportStory 导出一部小说为单个文档并写入导出目录
// 章节按排序后的顺序汇编；任何一章正文缺失都是硬错误（导出要求完整）
func (s *ExportService) ExportStory(folderName string, format ExportFormat) (*ExportResult, error) {
	switch format {
	case ExportFormatHTML, ExportFormatMarkdown:
	default:
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("不支持的导出格式: %s", format), nil)
	}

	story, err := s.repo.GetStory(folderName)
	if err != nil {
		return nil, err
	}

	chapters, err := s.repo.ListChapters(folderName)
	if err != nil {
		return nil, err
	}

	var builder strings.Builder
	ext := ".html"

	switch format {
	case ExportFormatHTML:
		builder.WriteString("<!DOCTYPE html>\n<html>\n<head>\n    <meta charset=\"utf-8\">\n")
		builder.WriteString(fmt.Sprintf("    <title>%s</title>\n</head>\n<body>\n", story.Title))
		builder.WriteString(fmt.Sprintf("<h1>%s</h1>\n", story.Title))
		if story.Description != "" {
			builder.WriteString(fmt.Sprintf("<p>%s</p>\n", story.Description))
		}
	case ExportFormatMarkdown:
		ext = ".md"
		builder.WriteString(fmt.Sprintf("# %s\n\n", story.Title))
		if story.Description != "" {
			builder.WriteString(story.Description + "\n\n")
		}
	}

	for _, chapter := range chapters {
		content, err := s.repo.ReadChapterContent(chapter.ContentPath)
		if err != nil {
			return nil, apperrors.WrapError(err,
				fmt.Sprintf("导出中断于章节 %d", chapter.ChapterNumber), apperrors.ErrorTypeError)
		}

		switch format {
		case ExportFormatHTML:
			builder.WriteString(fmt.Sprintf("<h2>%s</h2>\n", chapter.Title))
			builder.WriteString(content)
			builder.WriteString("\n")
		case ExportFormatMarkdown:
			markdown, err := s.converter.ConvertString(content)
			if err != nil {
				return nil, apperrors.NewProcessingError(
					fmt.Sprintf("章节 %d 转换 Markdown 失败", chapter.ChapterNumber), err)
			}
			builder.WriteString(fmt.Sprintf("## %s\n\n", chapter.Title))
			builder.WriteString(strings.TrimSpace(markdown))
			builder.WriteString("\n\n")
		}
	}

	if format == ExportFormatHTML {
		builder.WriteString("</body>\n</html>\n")
	}

	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return nil, apperrors.NewProcessingError("创建导出目录失败", err)
	}

	fileName := fmt.Sprintf("%s_%s%s", folderName, time.Now().Format("20060102_150405"), ext)
	filePath := filepath.Join(s.exportDir, fileName)
	if err := os.WriteFile(filePath, []byte(builder.String()), 0644); err != nil {
		return nil, apperrors.NewProcessingError("写入导出文件失败", err)
	}

	s.logger.Info("导出完成",
		zap.String("folder", folderName),
		zap.String("format", string(format)),
		zap.String("path", filePath),
		zap.Int("chapters", len(chapters)))

	return &ExportResult{
		FolderName: folderName,
		Format:     format,
		FilePath:   filePath,
		Chapters:   len(chapters),
		ExportedAt: time.Now(),
	}, nil
}
