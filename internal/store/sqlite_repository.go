// internal/store/sqlite_repository.go
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/models"
	"github.com/novel2024/novel2024.github.io/internal/storage"
)

// 元数据表结构
// position 记录目录内顺序，ListStories 按它排序以保持与文件后端一致的
// "目录文件内顺序"语义；章节唯一约束与文件后端的校验一一对应
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stories (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	title TEXT NOT NULL,
	folder_name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS chapters (
	story_folder TEXT NOT NULL,
	chapter_number INTEGER NOT NULL,
	title TEXT NOT NULL,
	original_file_name TEXT NOT NULL,
	content_path TEXT NOT NULL,
	PRIMARY KEY (story_folder, chapter_number),
	UNIQUE (story_folder, original_file_name)
);
`

// SQLiteRepository 是嵌入式数据库后端的内容仓库
// 只有元数据进库：章节正文仍按 content_path 存放在磁盘上，
// 与文件后端共用同一套正文访问层，调用方无感知
type SQLiteRepository struct {
	db      *sql.DB
	content *ContentFiles
	cfg     Config
	store   *storage.FileStorage
	logger  *zap.Logger
}

// NewSQLiteRepository 打开（或创建）数据库并初始化表结构
func NewSQLiteRepository(dbPath string, fileStore *storage.FileStorage, cfg Config, logger *zap.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// 串行化写入：单连接即是天然的单写入者
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		content: NewContentFiles(fileStore, cfg.ContentDir),
		cfg:     cfg,
		store:   fileStore,
		logger:  logger,
	}, nil
}

// Close 关闭数据库连接
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// ----------------------------------------------------------------
// 小说

// ListStories 按入库顺序返回全部小说
func (r *SQLiteRepository) ListStories() ([]models.Story, error) {
	rows, err := r.db.Query(
		`SELECT id, title, folder_name, description FROM stories ORDER BY position`)
	if err != nil {
		return nil, apperrors.NewProcessingError("查询小说列表失败", err)
	}
	defer rows.Close()

	var stories []models.Story
	for rows.Next() {
		var story models.Story
		if err := rows.Scan(&story.ID, &story.Title, &story.FolderName, &story.Description); err != nil {
			return nil, apperrors.NewProcessingError("读取小说记录失败", err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewProcessingError("查询小说列表失败", err)
	}

	if stories == nil {
		stories = []models.Story{}
	}
	return stories, nil
}

// GetStory 按 folder_name 查找小说
func (r *SQLiteRepository) GetStory(folderName string) (*models.Story, error) {
	var story models.Story
	err := r.db.QueryRow(
		`SELECT id, title, folder_name, description FROM stories WHERE folder_name = ?`,
		folderName).Scan(&story.ID, &story.Title, &story.FolderName, &story.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("小说不存在: %s", folderName), err)
	}
	if err != nil {
		return nil, apperrors.NewProcessingError("查询小说失败", err)
	}

	return &story, nil
}

// CreateStory 创建小说，folder_name 重复返回冲突错误
func (r *SQLiteRepository) CreateStory(story *models.Story) error {
	if err := validateStory(story); err != nil {
		return err
	}

	if story.ID == "" {
		story.ID = uuid.NewString()
	}

	_, err := r.db.Exec(
		`INSERT INTO stories (id, title, folder_name, description) VALUES (?, ?, ?, ?)`,
		story.ID, story.Title, story.FolderName, story.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(
				fmt.Sprintf("小说已存在: %s", story.FolderName), err)
		}
		return apperrors.NewProcessingError("创建小说失败", err)
	}

	return nil
}

// UpdateStory 更新标题与简介，folder_name 不可变更
func (r *SQLiteRepository) UpdateStory(folderName, title, description string) (*models.Story, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewValidationError("小说标题不能为空", nil)
	}

	result, err := r.db.Exec(
		`UPDATE stories SET title = ?, description = ? WHERE folder_name = ?`,
		title, description, folderName)
	if err != nil {
		return nil, apperrors.NewProcessingError("更新小说失败", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, apperrors.NewProcessingError("更新小说失败", err)
	}
	if affected == 0 {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("小说不存在: %s", folderName), nil)
	}

	return r.GetStory(folderName)
}

// DeleteStory 删除小说及其全部章节元数据，正文目录尽力清理
func (r *SQLiteRepository) DeleteStory(folderName string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return apperrors.NewProcessingError("开启事务失败", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM stories WHERE folder_name = ?`, folderName)
	if err != nil {
		return apperrors.NewProcessingError("删除小说失败", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewProcessingError("删除小说失败", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(
			fmt.Sprintf("小说不存在: %s", folderName), nil)
	}

	if _, err := tx.Exec(`DELETE FROM chapters WHERE story_folder = ?`, folderName); err != nil {
		return apperrors.NewProcessingError("删除章节元数据失败", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewProcessingError("提交事务失败", err)
	}

	if err := r.store.DeleteDir(filepath.Join(r.cfg.ContentDir, folderName)); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("清理正文目录失败", zap.String("folder", folderName), zap.Error(err))
	}

	return nil
}

// ----------------------------------------------------------------
// 章节元数据

// ListChapters 按 chapter_number 升序返回小说的全部章节
// 尚无章节的小说返回空列表
func (r *SQLiteRepository) ListChapters(folderName string) ([]models.Chapter, error) {
	rows, err := r.db.Query(
		`SELECT title, chapter_number, original_file_name, content_path
		 FROM chapters WHERE story_folder = ? ORDER BY chapter_number`, folderName)
	if err != nil {
		return nil, apperrors.NewProcessingError("查询章节列表失败", err)
	}
	defer rows.Close()

	chapters := []models.Chapter{}
	for rows.Next() {
		var chapter models.Chapter
		if err := rows.Scan(&chapter.Title, &chapter.ChapterNumber,
			&chapter.OriginalFileName, &chapter.ContentPath); err != nil {
			return nil, apperrors.NewProcessingError("读取章节记录失败", err)
		}
		chapters = append(chapters, chapter)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewProcessingError("查询章节列表失败", err)
	}

	return chapters, nil
}

// GetChapter 按章节键查找章节
func (r *SQLiteRepository) GetChapter(folderName, chapterKey string) (*models.Chapter, error) {
	number, err := ParseChapterKey(chapterKey)
	if err != nil {
		return nil, err
	}

	var chapter models.Chapter
	err = r.db.QueryRow(
		`SELECT title, chapter_number, original_file_name, content_path
		 FROM chapters WHERE story_folder = ? AND chapter_number = ?`,
		folderName, number).Scan(&chapter.Title, &chapter.ChapterNumber,
		&chapter.OriginalFileName, &chapter.ContentPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("章节不存在: %s/%s", folderName, chapterKey), err)
	}
	if err != nil {
		return nil, apperrors.NewProcessingError("查询章节失败", err)
	}

	return &chapter, nil
}

// SaveChapter 插入或按章节号覆盖章节元数据
func (r *SQLiteRepository) SaveChapter(folderName string, chapter *models.Chapter) error {
	if err := validateChapter(chapter); err != nil {
		return err
	}

	if _, err := r.GetStory(folderName); err != nil {
		return err
	}

	if chapter.ContentPath == "" {
		chapter.ContentPath = DefaultContentPath(folderName, chapter.ChapterNumber)
	}

	_, err := r.db.Exec(
		`INSERT INTO chapters (story_folder, chapter_number, title, original_file_name, content_path)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (story_folder, chapter_number) DO UPDATE SET
		 title = excluded.title,
		 original_file_name = excluded.original_file_name,
		 content_path = excluded.content_path`,
		folderName, chapter.ChapterNumber, chapter.Title,
		chapter.OriginalFileName, chapter.ContentPath)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(
				fmt.Sprintf("源文件名已被其他章节使用: %s", chapter.OriginalFileName), err)
		}
		return apperrors.NewProcessingError("保存章节元数据失败", err)
	}

	return nil
}

// DeleteChapter 删除章节元数据，正文尽力清理
func (r *SQLiteRepository) DeleteChapter(folderName, chapterKey string) error {
	chapter, err := r.GetChapter(folderName, chapterKey)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(
		`DELETE FROM chapters WHERE story_folder = ? AND chapter_number = ?`,
		folderName, chapter.ChapterNumber); err != nil {
		return apperrors.NewProcessingError("删除章节元数据失败", err)
	}

	if chapter.ContentPath != "" {
		if err := r.content.Delete(chapter.ContentPath); err != nil {
			r.logger.Warn("清理章节正文失败",
				zap.String("content_path", chapter.ContentPath), zap.Error(err))
		}
	}

	return nil
}

// ----------------------------------------------------------------
// 章节正文（与文件后端共用磁盘存储）

// ReadChapterContent 读取正文文本
func (r *SQLiteRepository) ReadChapterContent(contentPath string) (string, error) {
	return r.content.Read(contentPath)
}

// SaveChapterContent 写入正文
func (r *SQLiteRepository) SaveChapterContent(contentPath string, content []byte) error {
	return r.content.Save(contentPath, content)
}

// DeleteChapterContent 删除正文
func (r *SQLiteRepository) DeleteChapterContent(contentPath string) error {
	return r.content.Delete(contentPath)
}

// isUniqueViolation 判断是否为唯一约束冲突
// modernc.org/sqlite 的错误消息包含标准的 SQLite 约束描述
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
