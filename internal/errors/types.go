package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 启动阶段
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	ErrCodeExtraction    ErrorCode = "EXTRACTION_FAILED"

	// 检索与生成
	ErrCodeEmbedding         ErrorCode = "EMBEDDING_FAILED"
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeCompletion        ErrorCode = "COMPLETION_FAILED"

	// 通知渠道
	ErrCodeNotification ErrorCode = "NOTIFICATION_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Type    ErrorType   `json:"type"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewConfigError is fatal at startup; the process exits before serving.
func NewConfigError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConfigInvalid,
		Message: message,
		Type:    ErrorTypeValidation,
	}
}

// NewExtractionError 单个文档无法解析
func NewExtractionError(file string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeExtraction,
		Message: fmt.Sprintf("extract text from %s", file),
		Type:    ErrorTypeSystem,
		Details: file,
		Cause:   cause,
	}
}

// NewEmbeddingError 嵌入服务调用失败
func NewEmbeddingError(message string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeEmbedding,
		Message: message,
		Type:    ErrorTypeExternal,
		Cause:   cause,
	}
}

// NewCompletionError 对话补全失败
func NewCompletionError(message string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeCompletion,
		Message: message,
		Type:    ErrorTypeExternal,
		Cause:   cause,
	}
}

// NewNotificationError 通知渠道发送失败
func NewNotificationError(channel string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeNotification,
		Message: fmt.Sprintf("deliver via %s", channel),
		Type:    ErrorTypeExternal,
		Details: channel,
		Cause:   cause,
	}
}

// NewDimensionError reports a vector whose length differs from the index.
func NewDimensionError(want, got int) *AppError {
	return &AppError{
		Code:    ErrCodeDimensionMismatch,
		Message: fmt.Sprintf("embedding dimension %d, index expects %d", got, want),
		Type:    ErrorTypeValidation,
	}
}

// AsAppError 沿错误链查找AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode 检查错误链中是否包含指定错误码
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		appErr, ok := AsAppError(err)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal error",
		Type:    ErrorTypeSystem,
		Cause:   err,
	}
}

func getErrorTypeString(t ErrorType) string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeExternal:
		return "external"
	default:
		return "system"
	}
}
