package public

import (
	"net/http"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/provider"

	"github.com/gin-gonic/gin"
)

const secondsPerDay = 86400

// Handler 订单与退款回调、推广注册、点击追踪、Stripe 回调与定时任务入口
type Handler struct {
	*provider.Container
	secureCookie bool
}

// New 创建公开接口处理器；release 模式下推荐 Cookie 仅走 HTTPS
func New(c *provider.Container) *Handler {
	secure := c != nil && c.Config != nil && c.Config.Server.Mode == "release"
	return &Handler{Container: c, secureCookie: secure}
}

// setReferralCookie 写入推荐码 Cookie，有效期按推广配置天数
func (h *Handler) setReferralCookie(c *gin.Context, slug string, days int) {
	if slug == "" || days <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.AffiliateReferralCookie, slug, days*secondsPerDay, "/", "", h.secureCookie, true)
}
