package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"

	// 文档管线错误
	ErrCodeFetch             ErrorCode = "FETCH_ERROR"
	ErrCodeParse             ErrorCode = "PARSE_ERROR"
	ErrCodeEmbeddingService  ErrorCode = "EMBEDDING_SERVICE_ERROR"
	ErrCodeNamespaceNotFound ErrorCode = "NAMESPACE_NOT_FOUND"
	ErrCodeModelInvocation   ErrorCode = "MODEL_INVOCATION_ERROR"
	ErrCodeHistoryStore      ErrorCode = "HISTORY_STORE_ERROR"
	ErrCodeAuthorization     ErrorCode = "AUTHORIZATION_ERROR"
	ErrCodeStorage           ErrorCode = "STORAGE_ERROR"
	ErrCodeVectorStore       ErrorCode = "VECTOR_STORE_ERROR"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
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

// 错误构造函数

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: getHTTPCodeForError(code),
	}
}

// NewExternalError 创建外部服务错误
func NewExternalError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: getHTTPCodeForError(code),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Invalid input for field '%s': %s", field, reason),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewFetchError 文档内容无法获取
func NewFetchError(message string, cause error) *AppError {
	return NewExternalError(ErrCodeFetch, message).WithCause(cause)
}

// NewParseError 文档内容无法解析
func NewParseError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeParse,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: getHTTPCodeForError(ErrCodeParse),
		Cause:    cause,
	}
}

// NewEmbeddingServiceError 向量化服务失败
func NewEmbeddingServiceError(message string, cause error) *AppError {
	return NewExternalError(ErrCodeEmbeddingService, message).WithCause(cause)
}

// NewNamespaceNotFoundError 文档尚未建立索引
func NewNamespaceNotFoundError(namespace string) *AppError {
	return &AppError{
		Code:     ErrCodeNamespaceNotFound,
		Message:  fmt.Sprintf("namespace %s not found", namespace),
		Type:     ErrorTypeBusiness,
		HTTPCode: getHTTPCodeForError(ErrCodeNamespaceNotFound),
	}
}

// NewModelInvocationError 语言模型调用失败
func NewModelInvocationError(message string, cause error) *AppError {
	return NewExternalError(ErrCodeModelInvocation, message).WithCause(cause)
}

// NewHistoryStoreError 对话历史读写失败
func NewHistoryStoreError(message string, cause error) *AppError {
	return NewSystemError(ErrCodeHistoryStore, message).WithCause(cause)
}

// NewAuthorizationError 调用方无权访问
func NewAuthorizationError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeAuthorization,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusUnauthorized,
		Cause:    cause,
	}
}

// NewVectorStoreError 向量库访问失败
func NewVectorStoreError(message string, cause error) *AppError {
	return NewExternalError(ErrCodeVectorStore, message).WithCause(cause)
}

// NewStorageError 对象存储访问失败
func NewStorageError(message string, cause error) *AppError {
	return NewExternalError(ErrCodeStorage, message).WithCause(cause)
}

// getHTTPCodeForError 根据错误码获取HTTP状态码
func getHTTPCodeForError(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeNamespaceNotFound:
		return http.StatusConflict
	case ErrCodeAuthorization:
		return http.StatusUnauthorized
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeParse:
		return http.StatusUnprocessableEntity
	case ErrCodeFetch, ErrCodeEmbeddingService, ErrCodeModelInvocation, ErrCodeVectorStore, ErrCodeStorage:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsAppError 检查是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// CodeOf 返回错误链上第一个AppError的错误码
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalServer
}

// HasCode 判断错误链上是否带有指定错误码
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

var userMessages = map[ErrorCode]string{
	ErrCodeFetch:             "We could not read your document. Please try uploading it again.",
	ErrCodeParse:             "We could not read your document. Make sure it is a valid PDF.",
	ErrCodeEmbeddingService:  "The assistant is temporarily unavailable. Please try again shortly.",
	ErrCodeModelInvocation:   "The assistant is temporarily unavailable. Please try again shortly.",
	ErrCodeVectorStore:       "The assistant is temporarily unavailable. Please try again shortly.",
	ErrCodeNamespaceNotFound: "This document has not been prepared for chat yet.",
	ErrCodeHistoryStore:      "We could not load or save your conversation.",
	ErrCodeStorage:           "We could not store your document.",
	ErrCodeAuthorization:     "You are not allowed to access this document.",
	ErrCodeNotFound:          "The requested document does not exist.",
	ErrCodeTimeout:           "The request took too long. Please try again.",
}

// UserMessage 返回面向用户的错误提示
func UserMessage(err error) string {
	appErr := GetAppError(err)
	if msg, ok := userMessages[appErr.Code]; ok {
		return msg
	}
	if appErr.Type == ErrorTypeValidation {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}
