// internal/store/content_files_test.go
package store

import (
	"testing"

	"go.uber.org/zap"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/storage"
)

func newTestContentFiles(t *testing.T) *ContentFiles {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return NewContentFiles(fs, DefaultConfig().ContentDir)
}

func TestContentFiles_RejectsEscapingPaths(t *testing.T) {
	content := newTestContentFiles(t)

	// 相对路径不得越出内容根目录
	bad := []string{
		"",
		".",
		"..",
		"../outside.html",
		"../../etc/passwd",
		"story/../../outside.html",
		"/etc/passwd",
	}

	for _, path := range bad {
		if _, err := content.Read(path); !apperrors.IsValidationError(err) {
			t.Errorf("Read(%q): 预期校验错误，实际 %v", path, err)
		}
		if err := content.Save(path, []byte("x")); !apperrors.IsValidationError(err) {
			t.Errorf("Save(%q): 预期校验错误，实际 %v", path, err)
		}
	}
}

func TestContentFiles_DeleteMissingIsNoop(t *testing.T) {
	content := newTestContentFiles(t)

	// 尽力清理语义：文件不存在视为成功
	if err := content.Delete("story/0001.html"); err != nil {
		t.Fatalf("删除不存在的正文不应报错: %v", err)
	}
}

func TestContentFiles_SaveReadDelete(t *testing.T) {
	content := newTestContentFiles(t)

	if err := content.Save("story/0001.html", []byte("<p>你好</p>")); err != nil {
		t.Fatal(err)
	}

	got, err := content.Read("story/0001.html")
	if err != nil {
		t.Fatal(err)
	}
	if got != "<p>你好</p>" {
		t.Errorf("读回内容不符: %q", got)
	}

	if err := content.Delete("story/0001.html"); err != nil {
		t.Fatal(err)
	}
	if _, err := content.Read("story/0001.html"); !apperrors.IsNotFoundError(err) {
		t.Errorf("删除后应返回 not_found，实际: %v", err)
	}
}
