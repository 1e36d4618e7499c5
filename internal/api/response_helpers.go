// internal/api/response_helpers.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, &APIResponse{
		Success:   true,
		Data:      data,
		Message:   "资源创建成功",
		Timestamp: time.Now(),
	})
}

// Error 按错误类型映射HTTP状态码返回错误响应
// not_found 与校验/冲突类错误原样透出消息；其余一律归为内部错误，
// 不向客户端泄露底层路径或驱动细节
func (rh *ResponseHelper) Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "服务器内部错误"

	switch {
	case apperrors.IsNotFoundError(err):
		status = http.StatusNotFound
		code = "NOT_FOUND"
		message = appErrorMessage(err)
	case apperrors.IsValidationError(err):
		status = http.StatusBadRequest
		code = "VALIDATION_ERROR"
		message = appErrorMessage(err)
	case apperrors.IsConflictError(err):
		status = http.StatusConflict
		code = "CONFLICT"
		message = appErrorMessage(err)
	case apperrors.IsUnauthorizedError(err):
		status = http.StatusUnauthorized
		code = "UNAUTHORIZED"
		message = appErrorMessage(err)
	}

	c.JSON(status, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// BadRequest 请求体解析失败等入参错误
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: "VALIDATION_ERROR", Message: message},
		Timestamp: time.Now(),
	})
}

// Unauthorized 未授权响应
func (rh *ResponseHelper) Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: "UNAUTHORIZED", Message: message},
		Timestamp: time.Now(),
	})
}

// appErrorMessage 只取 AppError 自身的消息，不串联底层错误链
func appErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
