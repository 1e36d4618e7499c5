// internal/store/repository_test.go
package store

import (
	"testing"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/models"
)

func TestParseChapterKey(t *testing.T) {
	cases := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"1", 1, true},
		{"0001", 1, true},
		{"0042", 42, true},
		{"12345", 12345, true},
		{" 7 ", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1.5", 0, false},
	}

	for _, tc := range cases {
		got, err := ParseChapterKey(tc.key)
		if tc.wantOK {
			if err != nil {
				t.Errorf("ParseChapterKey(%q): 非预期错误 %v", tc.key, err)
				continue
			}
			if got != tc.want {
				t.Errorf("ParseChapterKey(%q) = %d, want %d", tc.key, got, tc.want)
			}
			continue
		}
		if err == nil {
			t.Errorf("ParseChapterKey(%q): 预期错误，实际成功 %d", tc.key, got)
			continue
		}
		if !apperrors.IsValidationError(err) {
			t.Errorf("ParseChapterKey(%q): 预期校验错误，实际 %v", tc.key, err)
		}
	}
}

func TestChapterFileName(t *testing.T) {
	cases := []struct {
		number int
		want   string
	}{
		{1, "0001.json"},
		{42, "0042.json"},
		{999, "0999.json"},
		{1000, "1000.json"},
		{12345, "12345.json"},
	}

	for _, tc := range cases {
		if got := ChapterFileName(tc.number); got != tc.want {
			t.Errorf("ChapterFileName(%d) = %q, want %q", tc.number, got, tc.want)
		}
	}
}

func TestDefaultContentPath(t *testing.T) {
	if got := DefaultContentPath("my_story", 7); got != "my_story/0007.html" {
		t.Errorf("DefaultContentPath = %q", got)
	}
	if got := DefaultContentPath("s", 12345); got != "s/12345.html" {
		t.Errorf("DefaultContentPath = %q", got)
	}
}

func TestAdjacentChapters(t *testing.T) {
	// 章节号有间隙，导航只看排序后的数组位置
	chapters := []models.Chapter{
		{Title: "一", ChapterNumber: 1, OriginalFileName: "a.html"},
		{Title: "二", ChapterNumber: 5, OriginalFileName: "b.html"},
		{Title: "三", ChapterNumber: 9, OriginalFileName: "c.html"},
	}

	nav := AdjacentChapters(chapters, "a.html")
	if nav.Previous != nil {
		t.Errorf("首章不应有上一章: %+v", nav.Previous)
	}
	if nav.Next == nil || nav.Next.ChapterNumber != 5 {
		t.Errorf("首章的下一章应为第5章: %+v", nav.Next)
	}

	nav = AdjacentChapters(chapters, "b.html")
	if nav.Previous == nil || nav.Previous.ChapterNumber != 1 {
		t.Errorf("中间章的上一章应为第1章: %+v", nav.Previous)
	}
	if nav.Next == nil || nav.Next.ChapterNumber != 9 {
		t.Errorf("中间章的下一章应为第9章: %+v", nav.Next)
	}

	nav = AdjacentChapters(chapters, "c.html")
	if nav.Previous == nil || nav.Previous.ChapterNumber != 5 {
		t.Errorf("末章的上一章应为第5章: %+v", nav.Previous)
	}
	if nav.Next != nil {
		t.Errorf("末章不应有下一章: %+v", nav.Next)
	}
}

func TestAdjacentChapters_UnknownFile(t *testing.T) {
	chapters := []models.Chapter{
		{ChapterNumber: 1, OriginalFileName: "a.html"},
	}

	nav := AdjacentChapters(chapters, "missing.html")
	if nav.Previous != nil || nav.Next != nil {
		t.Errorf("未知源文件名不应有导航: %+v", nav)
	}
}

func TestAdjacentChapters_SingleChapter(t *testing.T) {
	chapters := []models.Chapter{
		{ChapterNumber: 1, OriginalFileName: "only.html"},
	}

	nav := AdjacentChapters(chapters, "only.html")
	if nav.Previous != nil || nav.Next != nil {
		t.Errorf("单章小说不应有导航: %+v", nav)
	}
}
