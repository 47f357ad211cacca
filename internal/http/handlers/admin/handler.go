package admin

import (
	"time"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/provider"

	"github.com/gin-gonic/gin"
)

const auditComponent = "admin_audit"

// Handler 推广后台接口：账户、网络、规则、账本与风控操作
type Handler struct {
	*provider.Container
	now func() time.Time
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{
		Container: c,
		now:       time.Now,
	}
}

// audit 记录改动资金或账户状态的后台操作，附带操作人与 request_id
func (h *Handler) audit(c *gin.Context, event string, kv ...interface{}) {
	fields := append([]interface{}{
		"operator", currentUsername(c),
		"request_id", handlershared.RequestID(c),
	}, kv...)
	logger.Named(auditComponent).Infow(event, fields...)
}
