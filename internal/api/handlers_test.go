// internal/api/handlers_test.go
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/config"
	"github.com/novel2024/novel2024.github.io/internal/di"
	"github.com/novel2024/novel2024.github.io/internal/models"
	"github.com/novel2024/novel2024.github.io/internal/services"
	"github.com/novel2024/novel2024.github.io/internal/storage"
	"github.com/novel2024/novel2024.github.io/internal/store"
)

// setupTestServer 构造完整的测试服务：文件后端仓库 + 服务 + 路由
func setupTestServer(t *testing.T) (*gin.Engine, *services.ContentService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	logger := zap.NewNop()

	fs, err := storage.NewFileStorage(dataDir, logger)
	if err != nil {
		t.Fatal(err)
	}
	repo := store.NewFileRepository(fs, store.DefaultConfig(), logger)
	t.Cleanup(func() { repo.Close() })

	content := services.NewContentService(repo, logger)
	export := services.NewExportService(repo, filepath.Join(dataDir, "exports"), logger)

	container := di.GetContainer()
	container.Clear()
	container.Register("content", content)
	container.Register("export", export)
	container.Register("updates", NewUpdateHub(logger))

	cfg := &config.Config{
		Port:          "0",
		DebugMode:     true,
		DataDir:       dataDir,
		CatalogFile:   "stories.json",
		ChaptersDir:   "chapters",
		ContentDir:    "content",
		ExportDir:     filepath.Join(dataDir, "exports"),
		StoreBackend:  "file",
		AdminUser:     "admin",
		AdminPassword: "test_password",
	}

	router, err := SetupRouter(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	return router, content
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Message string          `json:"message"`
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body, token string) (*httptest.ResponseRecorder, *testEnvelope) {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope testEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("响应解析失败 (%d): %s", w.Code, w.Body.String())
	}
	return w, &envelope
}

// loginAdmin 走登录接口取会话令牌
func loginAdmin(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w, envelope := doRequest(t, router, http.MethodPost, "/api/admin/login",
		`{"user": "admin", "password": "test_password"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("登录失败: %d %s", w.Code, w.Body.String())
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("登录响应缺少令牌: %s", envelope.Data)
	}
	return data.Token
}

func seedStory(t *testing.T, content *services.ContentService) {
	t.Helper()

	if _, err := content.CreateStory("测试小说", "story", "一部小说"); err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"a.html", "b.html"} {
		chapter := &models.Chapter{
			Title:            "章节",
			ChapterNumber:    i + 1,
			OriginalFileName: name,
		}
		if err := content.SaveChapter("story", chapter, []byte("<p>正文</p>")); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReaderEndpoints(t *testing.T) {
	router, content := setupTestServer(t)
	seedStory(t, content)

	// 小说列表
	w, envelope := doRequest(t, router, http.MethodGet, "/api/stories", "", "")
	if w.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("GET /api/stories: %d %s", w.Code, w.Body.String())
	}
	var stories []models.Story
	if err := json.Unmarshal(envelope.Data, &stories); err != nil {
		t.Fatal(err)
	}
	if len(stories) != 1 || stories[0].FolderName != "story" {
		t.Errorf("小说列表不符: %+v", stories)
	}

	// 单部小说
	w, _ = doRequest(t, router, http.MethodGet, "/api/stories/story", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("GET /api/stories/story: %d", w.Code)
	}

	// 不存在的小说映射为 404
	w, envelope = doRequest(t, router, http.MethodGet, "/api/stories/missing", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("不存在的小说应返回404: %d", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("错误代码不符: %+v", envelope.Error)
	}

	// 章节列表升序
	w, envelope = doRequest(t, router, http.MethodGet, "/api/stories/story/chapters", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET chapters: %d", w.Code)
	}
	var chapters []models.Chapter
	if err := json.Unmarshal(envelope.Data, &chapters); err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 2 || chapters[0].ChapterNumber != 1 || chapters[1].ChapterNumber != 2 {
		t.Errorf("章节列表不符: %+v", chapters)
	}

	// 阅读接口返回正文与导航
	w, envelope = doRequest(t, router, http.MethodGet, "/api/stories/story/chapters/1/read", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET read: %d %s", w.Code, w.Body.String())
	}
	var view services.ChapterView
	if err := json.Unmarshal(envelope.Data, &view); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(view.Content, "正文") {
		t.Errorf("阅读数据缺少正文: %+v", view)
	}
	if view.Navigation.Previous != nil || view.Navigation.Next == nil {
		t.Errorf("首章导航不符: %+v", view.Navigation)
	}

	// 非法章节键映射为 400
	w, _ = doRequest(t, router, http.MethodGet, "/api/stories/story/chapters/abc", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法章节键应返回400: %d", w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	router, _ := setupTestServer(t)

	// 未登录访问管理接口
	w, envelope := doRequest(t, router, http.MethodPost, "/api/admin/stories",
		`{"title": "x", "folder_name": "x"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("未登录应返回401: %d", w.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != "UNAUTHORIZED" {
		t.Errorf("错误代码不符: %+v", envelope.Error)
	}

	// 错误密码
	w, _ = doRequest(t, router, http.MethodPost, "/api/admin/login",
		`{"user": "admin", "password": "wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("错误密码应返回401: %d", w.Code)
	}

	// 伪造令牌
	w, _ = doRequest(t, router, http.MethodPost, "/api/admin/stories",
		`{"title": "x", "folder_name": "x"}`, "forged.token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("伪造令牌应返回401: %d", w.Code)
	}
}

func TestAdminStoryManagement(t *testing.T) {
	router, _ := setupTestServer(t)
	token := loginAdmin(t, router)

	// 创建
	w, envelope := doRequest(t, router, http.MethodPost, "/api/admin/stories",
		`{"title": "新小说", "folder_name": "new_story", "description": "简介"}`, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("创建小说: %d %s", w.Code, w.Body.String())
	}
	var created models.Story
	if err := json.Unmarshal(envelope.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.FolderName != "new_story" {
		t.Errorf("创建结果不符: %+v", created)
	}

	// 重复创建映射为 409
	w, _ = doRequest(t, router, http.MethodPost, "/api/admin/stories",
		`{"title": "重复", "folder_name": "new_story"}`, token)
	if w.Code != http.StatusConflict {
		t.Errorf("重复创建应返回409: %d", w.Code)
	}

	// 更新
	w, _ = doRequest(t, router, http.MethodPut, "/api/admin/stories/new_story",
		`{"title": "改名", "description": "新简介"}`, token)
	if w.Code != http.StatusOK {
		t.Errorf("更新小说: %d %s", w.Code, w.Body.String())
	}

	// 写入章节（带正文）
	w, _ = doRequest(t, router, http.MethodPost, "/api/admin/stories/new_story/chapters",
		`{"title": "第一章", "chapter_number": 1, "original_file_name": "a.html", "content": "<p>你好</p>"}`, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("写入章节: %d %s", w.Code, w.Body.String())
	}

	// 读者端立即可读
	w, envelope = doRequest(t, router, http.MethodGet, "/api/stories/new_story/chapters/1/read", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("读取章节: %d %s", w.Code, w.Body.String())
	}
	var view services.ChapterView
	if err := json.Unmarshal(envelope.Data, &view); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(view.Content, "你好") {
		t.Errorf("正文不符: %q", view.Content)
	}

	// 删除章节与小说
	w, _ = doRequest(t, router, http.MethodDelete, "/api/admin/stories/new_story/chapters/1", "", token)
	if w.Code != http.StatusOK {
		t.Errorf("删除章节: %d", w.Code)
	}
	w, _ = doRequest(t, router, http.MethodDelete, "/api/admin/stories/new_story", "", token)
	if w.Code != http.StatusOK {
		t.Errorf("删除小说: %d", w.Code)
	}
	w, _ = doRequest(t, router, http.MethodGet, "/api/stories/new_story", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("删除后应返回404: %d", w.Code)
	}
}

func TestAdminExport(t *testing.T) {
	router, content := setupTestServer(t)
	seedStory(t, content)
	token := loginAdmin(t, router)

	w, envelope := doRequest(t, router, http.MethodPost,
		"/api/admin/stories/story/export?format=markdown", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("导出: %d %s", w.Code, w.Body.String())
	}

	var result services.ExportResult
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Chapters != 2 || result.FilePath == "" {
		t.Errorf("导出结果不符: %+v", result)
	}

	// 不支持的格式
	w, _ = doRequest(t, router, http.MethodPost,
		"/api/admin/stories/story/export?format=pdf", "", token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法格式应返回400: %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("健康检查: %d", w.Code)
	}
}
