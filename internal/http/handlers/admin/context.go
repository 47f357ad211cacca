package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "admin_id")
}

func parseIDParam(c *gin.Context) (uint, bool) {
	return handlershared.ParseUintParam(c, "id")
}

func currentUsername(c *gin.Context) string {
	value, exists := c.Get("username")
	if !exists {
		return ""
	}
	if username, ok := value.(string); ok {
		return strings.TrimSpace(username)
	}
	return ""
}

func currentIsSuper(c *gin.Context) bool {
	if value, exists := c.Get("admin_is_super"); exists {
		if flag, ok := value.(bool); ok {
			return flag
		}
	}
	return false
}
