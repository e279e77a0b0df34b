package app

import (
	"fmt"
	"io"
	"net/http"

	"liveconf/internal/config"
	"liveconf/internal/errors"
	"liveconf/internal/util"

	"github.com/gin-gonic/gin"
)

// APIResponse 标准API响应结构
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// RespondJSON 发送成功的JSON响应
func RespondJSON[T any](c *gin.Context, code int, data T) {
	c.JSON(code, APIResponse[T]{
		Success: code >= 200 && code < 300,
		Data:    data,
	})
}

// RespondError 发送错误响应
func RespondError(c *gin.Context, code int, err error) {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	} else {
		errMsg = "unknown error"
	}

	c.JSON(code, APIResponse[any]{
		Success: false,
		Error:   errMsg,
		Code:    string(errors.GetErrorCode(err)),
	})
}

// RespondErrorMsg 发送错误消息响应
func RespondErrorMsg(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse[any]{
		Success: false,
		Error:   message,
	})
}

// RespondAppError 发送带错误码的响应，data 为附加信息（如字段错误）
func RespondAppError(c *gin.Context, status int, appErr *errors.AppError, data any) {
	c.JSON(status, APIResponse[any]{
		Success: false,
		Data:    data,
		Error:   appErr.Message,
		Code:    string(appErr.Code),
	})
}

// bindJSON 使用 sonic 解码请求体
func bindJSON(c *gin.Context, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, config.DefaultMaxFormBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty request body")
	}
	if err := util.UnmarshalJSON(body, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
