package shared

import (
	"errors"

	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if id := RequestID(c); id != "" {
		return logger.SW("request_id", id)
	}
	return logger.S()
}

// RespondError 返回统一信封错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		log := RequestLog(c).Warnw
		if appErr.ServerSide() {
			log = RequestLog(c).Errorw
		}
		log("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondAPIError 返回内部接口错误（真实 HTTP 状态码），并在有原始错误时记录日志。
func RespondAPIError(c *gin.Context, httpStatus int, msg string, err error) {
	if err != nil {
		RequestLog(c).Errorw("api_error",
			"http_status", httpStatus,
			"message", msg,
			"error", err,
		)
	}
	response.APIError(c, httpStatus, msg)
}

// MappedError 业务错误到接口响应的映射。
type MappedError struct {
	Target error
	Code   int
	Msg    string
}

// MatchError 按顺序查找首个匹配的映射规则。
func MatchError(err error, rules []MappedError) (MappedError, bool) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			return rule, true
		}
	}
	return MappedError{}, false
}

// RespondMappedError 命中映射时返回对应错误，否则按兜底错误返回并记录原始错误。
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackMsg string) {
	if rule, ok := MatchError(err, rules); ok {
		RespondError(c, rule.Code, rule.Msg, nil)
		return
	}
	RespondError(c, fallbackCode, fallbackMsg, err)
}
