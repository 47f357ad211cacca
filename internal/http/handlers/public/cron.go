package public

import (
	"errors"
	"net/http"
	"strings"
	"time"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	cronSecretHeader     = "X-Cron-Secret"
	defaultCronLockTTL   = 10 * time.Minute
	bearerAuthSchemeName = "Bearer "
)

// AffiliateCheck 定时巡检入口：审核到期推荐、等级升级、风控重评、自动结算
func (h *Handler) AffiliateCheck(c *gin.Context) {
	if !service.VerifySharedSecret(h.Config.Affiliate.CronSecret, readCronSecret(c)) {
		handlershared.RespondAPIError(c, http.StatusUnauthorized, "定时任务密钥无效", nil)
		return
	}

	ttl := time.Duration(h.Config.Cron.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultCronLockTTL
	}
	report, err := h.AffiliateCheckService.RunLocked(c.Request.Context(), ttl)
	if err != nil {
		if errors.Is(err, service.ErrCheckInProgress) {
			response.APIResult(c, http.StatusOK, gin.H{"success": true, "reason": "in_progress"})
			return
		}
		h.respondAPIMappedError(c, "affiliate_check", err, nil, models.JSON{})
		return
	}
	response.APIResult(c, http.StatusOK, gin.H{
		"success": true,
		"report":  report,
	})
}

func readCronSecret(c *gin.Context) string {
	if secret := strings.TrimSpace(c.Query("secret")); secret != "" {
		return secret
	}
	if secret := strings.TrimSpace(c.GetHeader(cronSecretHeader)); secret != "" {
		return secret
	}
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(auth, bearerAuthSchemeName) {
		return strings.TrimSpace(strings.TrimPrefix(auth, bearerAuthSchemeName))
	}
	return ""
}
