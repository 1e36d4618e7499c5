// internal/services/content_service.go
package services

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/models"
	"github.com/novel2024/novel2024.github.io/internal/store"
)

// ChapterView 是读者端单章阅读的聚合数据
type ChapterView struct {
	Story      models.Story             `json:"story"`
	Chapter    models.Chapter           `json:"chapter"`
	Content    string                   `json:"content"`
	Navigation models.ChapterNavigation `json:"navigation"`
}

// ContentService 处理内容读写的业务逻辑
// 读路径是对仓库的透传；写路径在入库前完成正文的清洗与编码规范化
type ContentService struct {
	Repo store.Repository

	sanitizer  *bluemonday.Policy
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewContentService 创建内容服务
func NewContentService(repo store.Repository, logger *zap.Logger) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 后台提交的正文按 UGC 策略清洗，保留常见的排版标签
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()

	return &ContentService{
		Repo:       repo,
		sanitizer:  policy,
		normalizer: NewNormalizer(),
		logger:     logger,
	}
}

// ----------------------------------------------------------------
// 读者端

// ListStories 返回目录中的全部小说，保持目录顺序
func (s *ContentService) ListStories() ([]models.Story, error) {
	return s.Repo.ListStories()
}

// GetStory 按目录名获取小说
func (s *ContentService) GetStory(folderName string) (*models.Story, error) {
	return s.Repo.GetStory(folderName)
}

// ListChapters 返回小说的章节列表，按章节号升序
func (s *ContentService) ListChapters(folderName string) ([]models.Chapter, error) {
	return s.Repo.ListChapters(folderName)
}

// GetChapter 按章节键获取章节元数据
func (s *ContentService) GetChapter(folderName, chapterKey string) (*models.Chapter, error) {
	return s.Repo.GetChapter(folderName, chapterKey)
}

// ReadChapterContent 读取章节正文
func (s *ContentService) ReadChapterContent(contentPath string) (string, error) {
	return s.Repo.ReadChapterContent(contentPath)
}

// GetChapterView 组装单章阅读数据：小说、章节、正文与前后章导航
// 导航按排序列表中的位置计算，以 original_file_name 定位当前章
func (s *ContentService) GetChapterView(folderName, chapterKey string) (*ChapterView, error) {
	story, err := s.Repo.GetStory(folderName)
	if err != nil {
		return nil, err
	}

	chapter, err := s.Repo.GetChapter(folderName, chapterKey)
	if err != nil {
		return nil, err
	}

	content, err := s.Repo.ReadChapterContent(chapter.ContentPath)
	if err != nil {
		return nil, err
	}

	chapters, err := s.Repo.ListChapters(folderName)
	if err != nil {
		return nil, err
	}

	return &ChapterView{
		Story:      *story,
		Chapter:    *chapter,
		Content:    content,
		Navigation: store.AdjacentChapters(chapters, chapter.OriginalFileName),
	}, nil
}

// ----------------------------------------------------------------
// 管理端

// CreateStory 创建小说
func (s *ContentService) CreateStory(title, folderName, description string) (*models.Story, error) {
	story := &models.Story{
		Title:       strings.TrimSpace(title),
		FolderName:  strings.TrimSpace(folderName),
		Description: description,
	}

	if err := s.Repo.CreateStory(story); err != nil {
		return nil, err
	}

	s.logger.Info("小说已创建",
		zap.String("folder", story.FolderName), zap.String("title", story.Title))
	return story, nil
}

// UpdateStory 更新小说的标题与简介（目录名不可变更）
func (s *ContentService) UpdateStory(folderName, title, description string) (*models.Story, error) {
	return s.Repo.UpdateStory(folderName, strings.TrimSpace(title), description)
}

// DeleteStory 删除小说
func (s *ContentService) DeleteStory(folderName string) error {
	if err := s.Repo.DeleteStory(folderName); err != nil {
		return err
	}

	s.logger.Info("小说已删除", zap.String("folder", folderName))
	return nil
}

// SaveChapter 保存章节：先落正文，再落元数据
// 正文在写入前经过 HTML 清洗与 UTF-8 规范化；content 为空时只写元数据
// （允许元数据先行、正文悬空，读取时才校验正文存在）
func (s *ContentService) SaveChapter(folderName string, chapter *models.Chapter, content []byte) error {
	if len(content) > 0 {
		prepared, err := s.prepareContent(content)
		if err != nil {
			return err
		}

		if chapter.ContentPath == "" {
			chapter.ContentPath = store.DefaultContentPath(folderName, chapter.ChapterNumber)
		}

		if err := s.Repo.SaveChapterContent(chapter.ContentPath, prepared); err != nil {
			return err
		}
	}

	if err := s.Repo.SaveChapter(folderName, chapter); err != nil {
		return err
	}

	s.logger.Info("章节已保存",
		zap.String("folder", folderName), zap.Int("chapter", chapter.ChapterNumber))
	return nil
}

// DeleteChapter 删除章节
func (s *ContentService) DeleteChapter(folderName, chapterKey string) error {
	return s.Repo.DeleteChapter(folderName, chapterKey)
}

// prepareContent 清洗并规范化提交的正文
func (s *ContentService) prepareContent(content []byte) ([]byte, error) {
	sanitized := s.sanitizer.SanitizeBytes(content)

	normalized, _, err := s.normalizer.Normalize(sanitized)
	if err != nil {
		return nil, apperrors.NewProcessingError("正文编码规范化失败", err)
	}

	return normalized, nil
}
