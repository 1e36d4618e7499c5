// internal/models/story.go
package models

// Story 表示一部小说（目录文件中的一条记录）
// FolderName 是唯一键，创建后不可变更，同时作为章节元数据目录与内容目录的名称
type Story struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	FolderName  string `json:"folder_name"`
	Description string `json:"description"`
}

// Chapter 表示一部小说中单个章节的元数据
// 章节正文（HTML）单独存储，由 ContentPath 指向内容根目录下的相对路径
// 元数据只引用正文文件，不拥有其生命周期：删除元数据时正文仅尽力清理
type Chapter struct {
	Title            string `json:"title"`
	ChapterNumber    int    `json:"chapter_number"`
	OriginalFileName string `json:"original_file_name"`
	ContentPath      string `json:"content_path"`
}

// ChapterNavigation 表示章节的相邻导航信息
// 前后章节由排序后列表中的数组位置决定，编号间隙不影响导航
type ChapterNavigation struct {
	Previous *Chapter `json:"previous,omitempty"`
	Next     *Chapter `json:"next,omitempty"`
}
