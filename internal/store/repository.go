// internal/store/repository.go
package store

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/models"
)

// Config 指定内容仓库在数据根目录下的布局
type Config struct {
	CatalogFile string // 小说目录文件名，如 stories.json
	ChaptersDir string // 章节元数据目录名，每部小说一个子目录
	ContentDir  string // 章节正文目录名
}

// DefaultConfig 返回默认的仓库布局
func DefaultConfig() Config {
	return Config{
		CatalogFile: "stories.json",
		ChaptersDir: "chapters",
		ContentDir:  "content",
	}
}

// Repository 定义内容仓库的读写操作
// 读语义（不变量）对所有实现一致：
//   - ListStories 保持目录文件中的原始顺序
//   - ListChapters 按 chapter_number 严格升序返回；小说尚无章节时返回空列表而非错误
//   - 未找到（小说、章节、正文）以 not_found 类型错误返回，与其他 I/O 错误可区分
//
// 写操作由实现内部串行化：文件后端通过锁管理器，SQLite 后端通过事务与唯一约束
type Repository interface {
	// 小说
	ListStories() ([]models.Story, error)
	GetStory(folderName string) (*models.Story, error)
	CreateStory(story *models.Story) error
	UpdateStory(folderName, title, description string) (*models.Story, error)
	DeleteStory(folderName string) error

	// 章节元数据
	ListChapters(folderName string) ([]models.Chapter, error)
	GetChapter(folderName, chapterKey string) (*models.Chapter, error)
	SaveChapter(folderName string, chapter *models.Chapter) error
	DeleteChapter(folderName, chapterKey string) error

	// 章节正文
	ReadChapterContent(contentPath string) (string, error)
	SaveChapterContent(contentPath string, content []byte) error
	DeleteChapterContent(contentPath string) error
}

// ParseChapterKey 解析章节键为正整数章节号
// 章节键是章节号的十进制表示，允许前导零（如 "0001"）
func ParseChapterKey(chapterKey string) (int, error) {
	number, err := strconv.Atoi(strings.TrimSpace(chapterKey))
	if err != nil || number <= 0 {
		return 0, apperrors.NewValidationError(
			fmt.Sprintf("无效的章节键: %q", chapterKey), err)
	}
	return number, nil
}

// ChapterFileName 由章节号构造元数据文件名
// 章节号补零到至少4位，更大的编号保持自然宽度，如 0001.json、12345.json
func ChapterFileName(chapterNumber int) string {
	return fmt.Sprintf("%04d.json", chapterNumber)
}

// DefaultContentPath 返回章节正文的惯例路径 <story_folder>/<NNNN>.html
func DefaultContentPath(folderName string, chapterNumber int) string {
	return fmt.Sprintf("%s/%04d.html", folderName, chapterNumber)
}

// AdjacentChapters 在排序后的章节列表中按 original_file_name 定位章节，
// 返回其按数组位置计算的前后章节
// 编号不连续或重复不影响导航，只有排序后的位置起作用
func AdjacentChapters(chapters []models.Chapter, originalFileName string) models.ChapterNavigation {
	nav := models.ChapterNavigation{}

	for i := range chapters {
		if chapters[i].OriginalFileName != originalFileName {
			continue
		}
		if i > 0 {
			prev := chapters[i-1]
			nav.Previous = &prev
		}
		if i < len(chapters)-1 {
			next := chapters[i+1]
			nav.Next = &next
		}
		break
	}

	return nav
}
