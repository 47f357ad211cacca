package response

import "strings"

// AppError 信封错误：业务码、对外提示与不外露的原始错误
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ServerSide 5xx 业务码表示服务端故障
func (e *AppError) ServerSide() bool {
	return e != nil && e.Code >= CodeInternal
}

// WrapError 包装错误；非法业务码归为 CodeInternal，空提示按业务码补默认文案
func WrapError(code int, message string, err error) *AppError {
	if code <= CodeOK {
		code = CodeInternal
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = defaultMessage(code)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

func defaultMessage(code int) string {
	switch code {
	case CodeBadRequest:
		return "请求参数无效"
	case CodeUnauthorized:
		return "未授权"
	case CodeForbidden:
		return "无权限访问"
	case CodeNotFound:
		return "资源不存在"
	case CodeConflict:
		return "状态冲突"
	case CodeTooManyRequests:
		return "请求过于频繁"
	default:
		return "服务器内部错误"
	}
}
