// internal/store/file_repository.go
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/models"
	"github.com/novel2024/novel2024.github.io/internal/storage"
)

// folder_name 兼作文件系统目录名，限制为安全字符
var folderNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileRepository 是文件后端的内容仓库
// 目录文件是一个 JSON 数组（保持文件内顺序），章节元数据按
// <章节目录>/<folder_name>/<NNNN>.json 存放，正文由 ContentFiles 管理
// 所有写操作经由锁管理器串行化：目录锁覆盖目录文件，小说锁覆盖章节目录
type FileRepository struct {
	store   *storage.FileStorage
	cfg     Config
	content *ContentFiles
	locks   *LockManager
	logger  *zap.Logger
}

// NewFileRepository 创建文件后端仓库
func NewFileRepository(fileStore *storage.FileStorage, cfg Config, logger *zap.Logger) *FileRepository {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileRepository{
		store:   fileStore,
		cfg:     cfg,
		content: NewContentFiles(fileStore, cfg.ContentDir),
		locks:   NewLockManager(),
		logger:  logger,
	}
}

// Close 停止仓库持有的后台资源
func (r *FileRepository) Close() error {
	r.locks.Stop()
	return nil
}

// storyChaptersDir 返回小说的章节元数据目录（相对数据根）
func (r *FileRepository) storyChaptersDir(folderName string) string {
	return filepath.Join(r.cfg.ChaptersDir, folderName)
}

// ----------------------------------------------------------------
// 小说

// ListStories 读取目录文件，按文件内顺序返回全部小说
// 目录文件缺失或格式损坏是硬错误，直接上抛，不做部分恢复
func (r *FileRepository) ListStories() ([]models.Story, error) {
	var stories []models.Story
	if err := r.store.LoadJSONFile("", r.cfg.CatalogFile, &stories); err != nil {
		return nil, apperrors.NewProcessingError("读取目录文件失败", err)
	}
	return stories, nil
}

// GetStory 按 folder_name 线性查找小说
func (r *FileRepository) GetStory(folderName string) (*models.Story, error) {
	stories, err := r.ListStories()
	if err != nil {
		return nil, err
	}

	for i := range stories {
		if stories[i].FolderName == folderName {
			story := stories[i]
			return &story, nil
		}
	}

	return nil, apperrors.NewNotFoundError(
		fmt.Sprintf("小说不存在: %s", folderName), nil)
}

// CreateStory 创建小说：追加目录条目并建立空的章节目录
// folder_name 重复时返回冲突错误；目录文件尚不存在时从空目录开始
func (r *FileRepository) CreateStory(story *models.Story) error {
	if err := validateStory(story); err != nil {
		return err
	}

	return r.locks.WithCatalogLock(func() error {
		stories, err := r.loadCatalogForWrite()
		if err != nil {
			return err
		}

		for i := range stories {
			if stories[i].FolderName == story.FolderName {
				return apperrors.NewConflictError(
					fmt.Sprintf("小说已存在: %s", story.FolderName), nil)
			}
		}

		if story.ID == "" {
			story.ID = uuid.NewString()
		}

		stories = append(stories, *story)
		if err := r.store.SaveJSONFile("", r.cfg.CatalogFile, stories); err != nil {
			return apperrors.NewProcessingError("保存目录文件失败", err)
		}

		// 建立空章节目录，使新小说立即可读（空列表）
		chaptersDir := filepath.Join(r.store.BaseDir, r.storyChaptersDir(story.FolderName))
		if err := os.MkdirAll(chaptersDir, 0755); err != nil {
			r.logger.Warn("创建章节目录失败", zap.String("folder", story.FolderName), zap.Error(err))
		}

		return nil
	})
}

// UpdateStory 更新小说的标题与简介
// folder_name 创建后不可变更，不提供修改入口
func (r *FileRepository) UpdateStory(folderName, title, description string) (*models.Story, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewValidationError("小说标题不能为空", nil)
	}

	var updated *models.Story
	err := r.locks.WithCatalogLock(func() error {
		stories, err := r.ListStories()
		if err != nil {
			return err
		}

		for i := range stories {
			if stories[i].FolderName != folderName {
				continue
			}
			stories[i].Title = title
			stories[i].Description = description
			if err := r.store.SaveJSONFile("", r.cfg.CatalogFile, stories); err != nil {
				return apperrors.NewProcessingError("保存目录文件失败", err)
			}
			story := stories[i]
			updated = &story
			return nil
		}

		return apperrors.NewNotFoundError(
			fmt.Sprintf("小说不存在: %s", folderName), nil)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteStory 删除小说：移除目录条目与章节元数据目录
// 正文文件只做尽力清理，失败不阻塞删除
func (r *FileRepository) DeleteStory(folderName string) error {
	return r.locks.WithCatalogLock(func() error {
		return r.locks.WithStoryLock(folderName, func() error {
			stories, err := r.ListStories()
			if err != nil {
				return err
			}

			index := -1
			for i := range stories {
				if stories[i].FolderName == folderName {
					index = i
					break
				}
			}
			if index < 0 {
				return apperrors.NewNotFoundError(
					fmt.Sprintf("小说不存在: %s", folderName), nil)
			}

			stories = append(stories[:index], stories[index+1:]...)
			if err := r.store.SaveJSONFile("", r.cfg.CatalogFile, stories); err != nil {
				return apperrors.NewProcessingError("保存目录文件失败", err)
			}

			if err := r.store.DeleteDir(r.storyChaptersDir(folderName)); err != nil && !os.IsNotExist(err) {
				return apperrors.NewProcessingError("删除章节目录失败", err)
			}

			// 正文目录尽力清理
			if err := r.store.DeleteDir(filepath.Join(r.cfg.ContentDir, folderName)); err != nil && !os.IsNotExist(err) {
				r.logger.Warn("清理正文目录失败", zap.String("folder", folderName), zap.Error(err))
			}

			return nil
		})
	})
}

// ----------------------------------------------------------------
// 章节元数据

// ListChapters 返回小说的全部章节，按 chapter_number 严格升序
// 章节目录不存在时返回空列表（新建小说尚无章节是正常状态）；
// 任何一个元数据文件解析失败都是整个调用的硬错误，不做跳过
func (r *FileRepository) ListChapters(folderName string) ([]models.Chapter, error) {
	dir := r.storyChaptersDir(folderName)

	names, err := r.store.ListJSONFiles(dir)
	if err != nil {
		return nil, apperrors.NewProcessingError("读取章节目录失败", err)
	}

	chapters := make([]models.Chapter, 0, len(names))
	for _, name := range names {
		var chapter models.Chapter
		if err := r.store.LoadJSONFile(dir, name, &chapter); err != nil {
			return nil, apperrors.NewProcessingError(
				fmt.Sprintf("解析章节元数据失败: %s", name), err)
		}
		chapters = append(chapters, chapter)
	}

	// 以章节号排序，目录列举顺序不可依赖
	sort.Slice(chapters, func(i, j int) bool {
		return chapters[i].ChapterNumber < chapters[j].ChapterNumber
	})

	return chapters, nil
}

// GetChapter 按章节键直接定位元数据文件
// 文件缺失返回 not_found，其余读取错误原样上抛
func (r *FileRepository) GetChapter(folderName, chapterKey string) (*models.Chapter, error) {
	number, err := ParseChapterKey(chapterKey)
	if err != nil {
		return nil, err
	}

	var chapter models.Chapter
	if err := r.store.LoadJSONFile(r.storyChaptersDir(folderName), ChapterFileName(number), &chapter); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(
				fmt.Sprintf("章节不存在: %s/%s", folderName, chapterKey), err)
		}
		return nil, apperrors.NewProcessingError("读取章节元数据失败", err)
	}

	return &chapter, nil
}

// SaveChapter 写入章节元数据（新建或覆盖同章节号的记录）
// 同一小说内 chapter_number 与 original_file_name 均唯一；
// content_path 为空时按惯例填充 <folder_name>/<NNNN>.html
func (r *FileRepository) SaveChapter(folderName string, chapter *models.Chapter) error {
	if err := validateChapter(chapter); err != nil {
		return err
	}

	return r.locks.WithStoryLock(folderName, func() error {
		if _, err := r.GetStory(folderName); err != nil {
			return err
		}

		existing, err := r.ListChapters(folderName)
		if err != nil {
			return err
		}

		for i := range existing {
			if existing[i].ChapterNumber == chapter.ChapterNumber {
				// 同章节号覆盖写，但不得与其他章节的源文件名冲突
				continue
			}
			if existing[i].OriginalFileName == chapter.OriginalFileName {
				return apperrors.NewConflictError(
					fmt.Sprintf("源文件名已被章节 %d 使用: %s",
						existing[i].ChapterNumber, chapter.OriginalFileName), nil)
			}
		}

		if chapter.ContentPath == "" {
			chapter.ContentPath = DefaultContentPath(folderName, chapter.ChapterNumber)
		}

		if err := r.store.SaveJSONFile(r.storyChaptersDir(folderName),
			ChapterFileName(chapter.ChapterNumber), chapter); err != nil {
			return apperrors.NewProcessingError("保存章节元数据失败", err)
		}

		return nil
	})
}

// DeleteChapter 删除章节元数据，正文尽力清理
func (r *FileRepository) DeleteChapter(folderName, chapterKey string) error {
	number, err := ParseChapterKey(chapterKey)
	if err != nil {
		return err
	}

	return r.locks.WithStoryLock(folderName, func() error {
		chapter, err := r.GetChapter(folderName, chapterKey)
		if err != nil {
			return err
		}

		if err := r.store.DeleteFile(r.storyChaptersDir(folderName), ChapterFileName(number)); err != nil {
			if os.IsNotExist(err) {
				return apperrors.NewNotFoundError(
					fmt.Sprintf("章节不存在: %s/%s", folderName, chapterKey), err)
			}
			return apperrors.NewProcessingError("删除章节元数据失败", err)
		}

		if chapter.ContentPath != "" {
			if err := r.content.Delete(chapter.ContentPath); err != nil {
				r.logger.Warn("清理章节正文失败",
					zap.String("content_path", chapter.ContentPath), zap.Error(err))
			}
		}

		return nil
	})
}

// ----------------------------------------------------------------
// 章节正文

// ReadChapterContent 读取正文文本
func (r *FileRepository) ReadChapterContent(contentPath string) (string, error) {
	return r.content.Read(contentPath)
}

// SaveChapterContent 写入正文
func (r *FileRepository) SaveChapterContent(contentPath string, content []byte) error {
	return r.content.Save(contentPath, content)
}

// DeleteChapterContent 删除正文（尽力清理语义）
func (r *FileRepository) DeleteChapterContent(contentPath string) error {
	return r.content.Delete(contentPath)
}

// loadCatalogForWrite 与 ListStories 类似，但目录文件尚不存在时返回空目录，
// 以便首次创建小说时自动初始化目录文件
func (r *FileRepository) loadCatalogForWrite() ([]models.Story, error) {
	var stories []models.Story
	if err := r.store.LoadJSONFile("", r.cfg.CatalogFile, &stories); err != nil {
		if os.IsNotExist(err) {
			return []models.Story{}, nil
		}
		return nil, apperrors.NewProcessingError("读取目录文件失败", err)
	}
	return stories, nil
}

// ----------------------------------------------------------------
// 校验

func validateStory(story *models.Story) error {
	if story == nil {
		return apperrors.NewValidationError("小说不能为空", nil)
	}
	if strings.TrimSpace(story.Title) == "" {
		return apperrors.NewValidationError("小说标题不能为空", nil)
	}
	if !folderNamePattern.MatchString(story.FolderName) {
		return apperrors.NewValidationError(
			fmt.Sprintf("无效的目录名: %q", story.FolderName), nil)
	}
	return nil
}

func validateChapter(chapter *models.Chapter) error {
	if chapter == nil {
		return apperrors.NewValidationError("章节不能为空", nil)
	}
	if strings.TrimSpace(chapter.Title) == "" {
		return apperrors.NewValidationError("章节标题不能为空", nil)
	}
	if chapter.ChapterNumber <= 0 {
		return apperrors.NewValidationError("章节号必须为正整数", nil)
	}
	if strings.TrimSpace(chapter.OriginalFileName) == "" {
		return apperrors.NewValidationError("章节源文件名不能为空", nil)
	}
	return nil
}
