package public

import (
	"net/http"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

type trackClickRequest struct {
	Slug     string `json:"slug" binding:"required,max=64"`
	Path     string `json:"path" binding:"max=512"`
	Referrer string `json:"referrer" binding:"max=512"`
}

// TrackClick 记录推广链接点击并写入推广 Cookie
func (h *Handler) TrackClick(c *gin.Context) {
	var req trackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondAPIError(c, http.StatusBadRequest, "请求参数无效", nil)
		return
	}

	result, err := h.RiskService.TrackClick(c.Request.Context(), service.ClickInput{
		Slug:      req.Slug,
		Path:      req.Path,
		Referrer:  req.Referrer,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.respondAPIMappedError(c, "affiliate_click", err, nil, models.JSON{"slug": req.Slug})
		return
	}

	if result.AffiliateID > 0 {
		h.setReferralCookie(c, result.Slug, result.CookieDays)
	}
	response.APIResult(c, http.StatusOK, gin.H{
		"success":   true,
		"tracked":   result.Tracked,
		"duplicate": result.Duplicate,
	})
}
