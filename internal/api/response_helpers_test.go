// internal/api/response_helpers_test.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/novel2024/novel2024.github.io/internal/errors"
)

func TestResponseHelper_ErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	helper := NewResponseHelper()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not_found", apperrors.NewNotFoundError("小说不存在", nil), http.StatusNotFound, "NOT_FOUND"},
		{"validation", apperrors.NewValidationError("章节键无效", nil), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", apperrors.NewConflictError("目录名已存在", nil), http.StatusConflict, "CONFLICT"},
		{"unauthorized", apperrors.NewUnauthorizedError("用户名或密码错误", nil), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"processing", apperrors.NewProcessingError("读取失败", errors.New("磁盘错误")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"plain", errors.New("底层错误"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			helper.Error(c, tc.err)

			if w.Code != tc.wantStatus {
				t.Errorf("状态码: got %d, want %d", w.Code, tc.wantStatus)
			}

			var envelope testEnvelope
			if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
				t.Fatal(err)
			}
			if envelope.Success {
				t.Error("错误响应 success 应为 false")
			}
			if envelope.Error == nil || envelope.Error.Code != tc.wantCode {
				t.Errorf("错误代码: %+v, want %s", envelope.Error, tc.wantCode)
			}

			// 内部错误不向客户端透出底层细节
			if tc.wantStatus == http.StatusInternalServerError {
				if envelope.Error.Message != "服务器内部错误" {
					t.Errorf("内部错误应使用通用消息: %q", envelope.Error.Message)
				}
			}
		})
	}
}
