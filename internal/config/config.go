// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config 存储应用配置
// 所有存储根路径均通过该结构显式传入各服务的构造函数，不使用进程级全局状态
type Config struct {
	Port      string
	DebugMode bool

	// 数据根目录；目录文件、章节元数据、正文均位于其下
	DataDir     string
	CatalogFile string // 小说目录文件名（JSON 数组），相对数据根
	ChaptersDir string // 章节元数据目录名，相对数据根，每部小说一个子目录
	ContentDir  string // 章节正文（HTML）目录名，相对数据根
	ExportDir   string // 导出文件输出目录

	// 存储后端: "file"（默认）或 "sqlite"
	StoreBackend string
	SQLitePath   string

	// 后台管理登录
	AdminUser     string
	AdminPassword string
	AuthSecret    string
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	dataDir := getEnvPath("DATA_DIR", "data")

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		DebugMode:     getEnvBool("DEBUG_MODE", true),
		DataDir:       dataDir,
		CatalogFile:   getEnv("CATALOG_FILE", "stories.json"),
		ChaptersDir:   getEnv("CHAPTERS_DIR", "chapters"),
		ContentDir:    getEnv("CONTENT_DIR", "content"),
		ExportDir:     getEnvPath("EXPORT_DIR", filepath.Join(dataDir, "exports")),
		StoreBackend:  getEnv("STORE_BACKEND", "file"),
		SQLitePath:    getEnv("SQLITE_PATH", filepath.Join(dataDir, "stories.db")),
		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AuthSecret:    getEnv("AUTH_SECRET_KEY", ""),
	}

	if config.StoreBackend != "file" && config.StoreBackend != "sqlite" {
		return nil, fmt.Errorf("未知的存储后端: %s", config.StoreBackend)
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}
