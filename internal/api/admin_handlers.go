// internal/api/admin_handlers.go
package api

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/auth"
	"github.com/novel2024/novel2024.github.io/internal/config"
	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
	"github.com/novel2024/novel2024.github.io/internal/models"
	"github.com/novel2024/novel2024.github.io/internal/services"
)

// AdminHandler 处理后台管理接口
type AdminHandler struct {
	ContentService *services.ContentService
	ExportService  *services.ExportService
	Response       *ResponseHelper

	cfg         *config.Config
	tokenConfig *auth.TokenConfig
	logger      *zap.Logger
}

// NewAdminHandler 创建后台管理处理器
func NewAdminHandler(content *services.ContentService, export *services.ExportService,
	cfg *config.Config, tokenConfig *auth.TokenConfig, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AdminHandler{
		ContentService: content,
		ExportService:  export,
		Response:       NewResponseHelper(),
		cfg:            cfg,
		tokenConfig:    tokenConfig,
		logger:         logger,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	User     string `json:"user" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理端登录，校验通过后签发会话令牌并写入Cookie
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "用户名和密码不能为空")
		return
	}

	if h.cfg.AdminPassword == "" {
		h.Response.Error(c, apperrors.NewUnauthorizedError("后台登录未启用（未设置 ADMIN_PASSWORD）", nil))
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.User), []byte(h.cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.AdminPassword)) == 1
	if !userOK || !passOK {
		h.logger.Warn("登录失败", zap.String("user", req.User), zap.String("ip", c.ClientIP()))
		h.Response.Error(c, apperrors.NewUnauthorizedError("用户名或密码错误", nil))
		return
	}

	token, err := auth.GenerateToken(req.User, h.tokenConfig)
	if err != nil {
		h.logger.Error("签发会话令牌失败", zap.Error(err))
		h.Response.Error(c, err)
		return
	}

	c.SetCookie(sessionCookieName, token,
		int(h.tokenConfig.Expiration.Seconds()), "/", "", !h.cfg.DebugMode, true)
	h.Response.Success(c, gin.H{"token": token}, "登录成功")
}

// Logout 退出登录，清除会话Cookie
func (h *AdminHandler) Logout(c *gin.Context) {
	c.SetCookie(sessionCookieName, "", -1, "/", "", !h.cfg.DebugMode, true)
	h.Response.Success(c, nil, "已退出登录")
}

// ----------------------------------------------------------------
// 小说管理

// StoryRequest 创建/更新小说的请求
type StoryRequest struct {
	Title       string `json:"title"`
	FolderName  string `json:"folder_name"`
	Description string `json:"description"`
}

// CreateStory 创建小说
func (h *AdminHandler) CreateStory(c *gin.Context) {
	var req StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式错误")
		return
	}

	story, err := h.ContentService.CreateStory(req.Title, req.FolderName, req.Description)
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Created(c, story)
}

// UpdateStory 更新小说的标题与简介
func (h *AdminHandler) UpdateStory(c *gin.Context) {
	var req StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式错误")
		return
	}

	story, err := h.ContentService.UpdateStory(c.Param("folder"), req.Title, req.Description)
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, story, "小说已更新")
}

// DeleteStory 删除小说
func (h *AdminHandler) DeleteStory(c *gin.Context) {
	if err := h.ContentService.DeleteStory(c.Param("folder")); err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, nil, "小说已删除")
}

// ----------------------------------------------------------------
// 章节管理

// ChapterRequest 创建/更新章节的请求
// Content 为章节正文HTML，可为空（只写元数据）
type ChapterRequest struct {
	Title            string `json:"title"`
	ChapterNumber    int    `json:"chapter_number"`
	OriginalFileName string `json:"original_file_name"`
	ContentPath      string `json:"content_path"`
	Content          string `json:"content"`
}

// SaveChapter 保存章节（新建或按章节号覆盖）
func (h *AdminHandler) SaveChapter(c *gin.Context) {
	var req ChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式错误")
		return
	}

	chapter := &models.Chapter{
		Title:            req.Title,
		ChapterNumber:    req.ChapterNumber,
		OriginalFileName: req.OriginalFileName,
		ContentPath:      req.ContentPath,
	}

	if err := h.ContentService.SaveChapter(c.Param("folder"), chapter, []byte(req.Content)); err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Created(c, chapter)
}

// DeleteChapter 删除章节
func (h *AdminHandler) DeleteChapter(c *gin.Context) {
	if err := h.ContentService.DeleteChapter(c.Param("folder"), c.Param("key")); err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, nil, "章节已删除")
}

// ----------------------------------------------------------------
// 导出

// ExportStory 导出整部小说
// format 查询参数: html（默认）或 markdown
func (h *AdminHandler) ExportStory(c *gin.Context) {
	format := services.ExportFormat(c.DefaultQuery("format", "html"))

	result, err := h.ExportService.ExportStory(c.Param("folder"), format)
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	h.Response.Success(c, result, "导出完成")
}
