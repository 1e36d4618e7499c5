// internal/api/handlers.go
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/services"
)

// Handler 处理API请求
// 处理器只做参数绑定和响应封装，业务语义全部在服务层
type Handler struct {
	ContentService *services.ContentService // 内容服务
	ExportService  *services.ExportService  // 导出服务
	Response       *ResponseHelper          // 响应助手

	logger *zap.Logger
}

// NewHandler 创建API处理器
func NewHandler(content *services.ContentService, export *services.ExportService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		ContentService: content,
		ExportService:  export,
		Response:       NewResponseHelper(),
		logger:         logger,
	}
}

// ----------------------------------------------------------------
// 读者端接口

// GetStories 返回目录中的全部小说
func (h *Handler) GetStories(c *gin.Context) {
	stories, err := h.ContentService.ListStories()
	if err != nil {
		h.logger.Error("读取小说目录失败", zap.Error(err))
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, stories)
}

// GetStory 返回单部小说
func (h *Handler) GetStory(c *gin.Context) {
	story, err := h.ContentService.GetStory(c.Param("folder"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, story)
}

// GetChapters 返回小说的章节列表（升序）
func (h *Handler) GetChapters(c *gin.Context) {
	chapters, err := h.ContentService.ListChapters(c.Param("folder"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, chapters)
}

// GetChapter 返回单个章节的元数据
func (h *Handler) GetChapter(c *gin.Context) {
	chapter, err := h.ContentService.GetChapter(c.Param("folder"), c.Param("key"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, chapter)
}

// ReadChapter 返回单章阅读数据：元数据、正文与前后章导航
func (h *Handler) ReadChapter(c *gin.Context) {
	view, err := h.ContentService.GetChapterView(c.Param("folder"), c.Param("key"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, view)
}
