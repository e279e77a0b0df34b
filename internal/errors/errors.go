package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误代码类型（便于机器识别和监控）
type ErrorCode string

const (
	// 配置 schema 相关错误
	ErrCodeUnsupportedType ErrorCode = "UNSUPPORTED_CONFIG_TYPE" // 配置值类型未注册
	ErrCodeUnknownSetting  ErrorCode = "UNKNOWN_SETTING"         // 配置项未声明
	ErrCodeInvalidValue    ErrorCode = "INVALID_VALUE"           // 配置值无法转换为声明类型

	// 表单提交错误
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION" // 版本指纹不一致
	ErrCodeValidation             ErrorCode = "VALIDATION_FAILED"       // 表单字段校验失败

	// 数据库操作错误
	ErrCodeDBQuery  ErrorCode = "DB_QUERY"  // 数据库查询失败
	ErrCodeDBUpdate ErrorCode = "DB_UPDATE" // 数据库更新失败

	// 认证相关错误
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"      // 未登录
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED" // 无权限
	ErrCodeInvalidToken     ErrorCode = "INVALID_TOKEN"     // Token/CSRF无效

	// 配置相关错误
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG" // 配置无效
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG" // 配置缺失
)

// AppError 应用级错误结构（支持错误链和上下文信息）
type AppError struct {
	Code    ErrorCode      // 错误代码（机器可识别）
	Message string         // 错误消息（人类可读）
	Err     error          // 底层错误（支持错误链）
	Context map[string]any // 错误上下文（便于调试和监控）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现错误链（Go 1.13+）
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext 添加错误上下文
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ============== schema 错误工厂函数 ==============

// UnsupportedConfigType 配置值类型不受支持（启动期致命错误）
func UnsupportedConfigType(name string, valueType string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedType,
		Message: fmt.Sprintf("liveconf doesn't support config values of the type %s. Please fix the value of '%s'.",
			valueType, name),
		Context: map[string]any{"setting": name, "type": valueType},
	}
}

// UnknownSetting 配置项未在 schema 中声明
func UnknownSetting(name string) *AppError {
	return &AppError{
		Code:    ErrCodeUnknownSetting,
		Message: fmt.Sprintf("unknown setting: %s", name),
		Context: map[string]any{"setting": name},
	}
}

// InvalidValue 配置值无法转换为声明类型
func InvalidValue(name string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("invalid value for %s", name),
		Err:     err,
		Context: map[string]any{"setting": name},
	}
}

// ============== 表单错误工厂函数 ==============

// ConcurrentModification 版本指纹不一致（乐观锁校验失败）
func ConcurrentModification() *AppError {
	return &AppError{
		Code:    ErrCodeConcurrentModification,
		Message: "The settings have been modified by someone else. Please reload the form and resubmit your changes.",
	}
}

// ValidationFailed 表单字段校验失败
func ValidationFailed(fieldErrors map[string][]string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%d field(s) failed validation", len(fieldErrors)),
		Context: map[string]any{"fields": fieldErrors},
	}
}

// ============== 数据库错误工厂函数 ==============

// DBQueryError 数据库查询失败
func DBQueryError(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeDBQuery,
		Message: fmt.Sprintf("database query failed: %s", operation),
		Err:     err,
		Context: map[string]any{"operation": operation},
	}
}

// DBUpdateError 数据库更新失败
func DBUpdateError(key string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeDBUpdate,
		Message: fmt.Sprintf("failed to write setting %s", key),
		Err:     err,
		Context: map[string]any{"key": key},
	}
}

// ============== 认证错误工厂函数 ==============

// UnauthorizedError 未授权
func UnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: "unauthorized: " + reason,
		Context: map[string]any{"reason": reason},
	}
}

// PermissionDenied 当前用户无权访问
func PermissionDenied(username string) *AppError {
	return &AppError{
		Code:    ErrCodePermissionDenied,
		Message: "permission denied",
		Context: map[string]any{"user": username},
	}
}

// InvalidTokenError Token无效
func InvalidTokenError() *AppError {
	return &AppError{
		Code:    ErrCodeInvalidToken,
		Message: "invalid or missing authorization token",
	}
}

// ============== 配置错误工厂函数 ==============

// InvalidConfigError 配置无效
func InvalidConfigError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("invalid config field '%s': %s", field, reason),
		Context: map[string]any{"field": field, "reason": reason},
	}
}

// MissingConfigError 配置缺失
func MissingConfigError(field string) *AppError {
	return &AppError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("missing required config field: %s", field),
		Context: map[string]any{"field": field},
	}
}

// ============== 工具函数 ==============

// IsAppError 判断是否为AppError（支持错误链）
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetErrorCode 获取错误代码（如果是AppError）
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasErrorCode 判断错误是否为特定错误代码
func HasErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
