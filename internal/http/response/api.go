package response

import (
	"github.com/gin-gonic/gin"
)

// APIResult 内部接口直接返回 HTTP 状态码与业务体
func APIResult(c *gin.Context, httpStatus int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	c.JSON(httpStatus, body)
}

// APIError 内部接口错误响应，body 为 {error, request_id}
func APIError(c *gin.Context, httpStatus int, msg string) {
	body := gin.H{"error": msg}
	if requestID := requestIDFrom(c); requestID != "" {
		body["request_id"] = requestID
	}
	c.JSON(httpStatus, body)
}

func requestIDFrom(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
