package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListSystemLogs 系统日志列表
func (h *Handler) ListSystemLogs(c *gin.Context) {
	page, pageSize := handlershared.ReadPagination(c)
	logs, total, err := h.SystemLogService.List(repository.SystemLogListFilter{
		Page:        page,
		PageSize:    pageSize,
		Level:       strings.ToUpper(strings.TrimSpace(c.Query("level"))),
		Source:      strings.TrimSpace(c.Query("source")),
		CreatedFrom: parseQueryTime(c, "created_from"),
		CreatedTo:   parseQueryTime(c, "created_to"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "系统日志读取失败", err)
		return
	}
	response.SuccessWithPage(c, logs, handlershared.BuildPagination(page, pageSize, total))
}
