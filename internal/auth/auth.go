// internal/auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenConfig 会话令牌的签名配置
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// Session 表示一次管理端登录会话
type Session struct {
	User      string `json:"user"`
	ExpiresAt int64  `json:"expires_at"`
	IssuedAt  int64  `json:"issued_at"`
}

// GenerateToken 为管理用户签发会话令牌
// 令牌格式为 base64(payload).base64(HMAC-SHA256(payload))
func GenerateToken(user string, config *TokenConfig) (string, error) {
	if len(config.Secret) == 0 {
		return "", fmt.Errorf("签名密钥未配置")
	}

	now := time.Now()
	payload := fmt.Sprintf("%s|%d|%d", user, now.Add(config.Expiration).Unix(), now.Unix())

	h := hmac.New(sha256.New, config.Secret)
	h.Write([]byte(payload))
	signature := h.Sum(nil)

	return fmt.Sprintf("%s.%s",
		base64.URLEncoding.EncodeToString([]byte(payload)),
		base64.URLEncoding.EncodeToString(signature)), nil
}

// ParseToken 解析并校验会话令牌
func ParseToken(tokenString string, config *TokenConfig) (*Session, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("签名密钥未配置")
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("令牌格式无效")
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("令牌载荷无效: %w", err)
	}

	signatureBytes, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("令牌签名无效: %w", err)
	}

	h := hmac.New(sha256.New, config.Secret)
	h.Write(payloadBytes)
	if !hmac.Equal(signatureBytes, h.Sum(nil)) {
		return nil, fmt.Errorf("令牌签名无效")
	}

	fields := strings.Split(string(payloadBytes), "|")
	if len(fields) != 3 {
		return nil, fmt.Errorf("令牌载荷格式无效")
	}

	expiresAt, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("令牌载荷格式无效: %w", err)
	}
	issuedAt, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("令牌载荷格式无效: %w", err)
	}

	if time.Now().Unix() > expiresAt {
		return nil, fmt.Errorf("令牌已过期")
	}

	return &Session{
		User:      fields[0],
		ExpiresAt: expiresAt,
		IssuedAt:  issuedAt,
	}, nil
}

// GenerateSecureKey 生成用于签名的随机密钥
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	return key, nil
}
