// internal/store/content_files.go
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/storage"
)

// ContentFiles 负责章节正文文件的读写
// 正文始终存储在磁盘上，与元数据后端无关，两个仓库实现共用这一层
// content_path 是相对内容根目录的路径，惯例为 <story_folder>/<NNNN>.html
type ContentFiles struct {
	store      *storage.FileStorage
	contentDir string
}

// NewContentFiles 创建正文文件访问层
func NewContentFiles(store *storage.FileStorage, contentDir string) *ContentFiles {
	return &ContentFiles{store: store, contentDir: contentDir}
}

// resolve 校验并拆分相对路径，拒绝越出内容根目录的路径
func (c *ContentFiles) resolve(contentPath string) (dir, file string, err error) {
	clean := filepath.Clean(strings.TrimSpace(contentPath))
	if clean == "" || clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", "", apperrors.NewValidationError(
			fmt.Sprintf("无效的正文路径: %q", contentPath), nil)
	}

	return filepath.Join(c.contentDir, filepath.Dir(clean)), filepath.Base(clean), nil
}

// Read 读取正文并以文本返回
// 文件缺失返回 not_found 错误，与其他 I/O 错误可区分
func (c *ContentFiles) Read(contentPath string) (string, error) {
	dir, file, err := c.resolve(contentPath)
	if err != nil {
		return "", err
	}

	data, err := c.store.LoadTextFile(dir, file)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewNotFoundError(
				fmt.Sprintf("正文文件不存在: %s", contentPath), err)
		}
		return "", apperrors.NewProcessingError("读取正文失败", err)
	}

	return string(data), nil
}

// Save 写入正文（原子写）
func (c *ContentFiles) Save(contentPath string, content []byte) error {
	dir, file, err := c.resolve(contentPath)
	if err != nil {
		return err
	}

	if err := c.store.SaveTextFile(dir, file, content); err != nil {
		return apperrors.NewProcessingError("保存正文失败", err)
	}
	return nil
}

// Delete 删除正文，文件不存在时视为成功（尽力清理语义）
func (c *ContentFiles) Delete(contentPath string) error {
	dir, file, err := c.resolve(contentPath)
	if err != nil {
		return err
	}

	if err := c.store.DeleteFile(dir, file); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.NewProcessingError("删除正文失败", err)
	}
	return nil
}
