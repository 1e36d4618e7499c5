// internal/api/auth_middleware.go
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/novel2024/novel2024.github.io/internal/auth"
	"github.com/novel2024/novel2024.github.io/internal/config"
)

// sessionCookieName 管理端会话 Cookie 名
const sessionCookieName = "admin_session"

// AuthMiddleware 保护管理端写接口的会话校验中间件
type AuthMiddleware struct {
	tokenConfig *auth.TokenConfig
	response    *ResponseHelper
}

// NewAuthMiddleware 初始化认证中间件
// 密钥优先取配置中的 AUTH_SECRET_KEY；调试模式下退化为固定密钥以便重启后会话不失效，
// 生产模式未配置时随机生成（重启使全部会话失效）
func NewAuthMiddleware(cfg *config.Config, logger *zap.Logger) (*AuthMiddleware, error) {
	var secret []byte

	switch {
	case cfg.AuthSecret != "":
		secret = []byte(cfg.AuthSecret)
	case cfg.DebugMode:
		secret = []byte("dev_auth_key_for_testing_purposes_only_")
		logger.Warn("开发模式下使用固定认证密钥，生产环境请设置 AUTH_SECRET_KEY")
	default:
		generated, err := auth.GenerateSecureKey(32)
		if err != nil {
			return nil, fmt.Errorf("生成认证密钥失败: %w", err)
		}
		secret = generated
		logger.Warn("未设置 AUTH_SECRET_KEY，使用随机密钥，重启后现有会话将失效")
	}

	// 统一到32字节
	if len(secret) < 32 {
		padded := make([]byte, 32)
		copy(padded, secret)
		secret = padded
	} else if len(secret) > 32 {
		secret = secret[:32]
	}

	return &AuthMiddleware{
		tokenConfig: &auth.TokenConfig{
			Secret:     secret,
			Expiration: 24 * time.Hour,
		},
		response: NewResponseHelper(),
	}, nil
}

// TokenConfig 暴露令牌配置（登录接口签发时使用）
func (m *AuthMiddleware) TokenConfig() *auth.TokenConfig {
	return m.tokenConfig
}

// RequireAdmin 校验管理端会话
// 令牌从 Authorization: Bearer 头或会话Cookie中取，二者任一有效即可
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(sessionCookieName); err == nil {
				token = cookie
			}
		}

		if token == "" {
			m.response.Unauthorized(c, "需要登录")
			return
		}

		session, err := auth.ParseToken(token, m.tokenConfig)
		if err != nil {
			m.response.Unauthorized(c, "会话无效或已过期")
			return
		}

		c.Set("admin_user", session.User)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
