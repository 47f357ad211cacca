package admin

import (
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAffiliateSettings 获取推广计划配置
func (h *Handler) GetAffiliateSettings(c *gin.Context) {
	cfg, err := h.SettingService.GetAffiliateConfig(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "配置读取失败", err)
		return
	}
	response.Success(c, cfg)
}

// UpdateAffiliateSettings 更新推广计划配置
func (h *Handler) UpdateAffiliateSettings(c *gin.Context) {
	var req service.AffiliateConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	cfg, err := h.SettingService.UpdateAffiliateConfig(c.Request.Context(), req)
	if err != nil {
		respondMappedError(c, err, settingErrorRules, "配置保存失败")
		return
	}
	response.Success(c, cfg)
}

// GetFraudSettings 获取风控规则
func (h *Handler) GetFraudSettings(c *gin.Context) {
	rules, err := h.SettingService.GetFraudRules(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "配置读取失败", err)
		return
	}
	response.Success(c, rules)
}

// UpdateFraudSettings 更新风控规则
func (h *Handler) UpdateFraudSettings(c *gin.Context) {
	var req service.FraudRules
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	rules, err := h.SettingService.UpdateFraudRules(c.Request.Context(), req)
	if err != nil {
		respondMappedError(c, err, settingErrorRules, "配置保存失败")
		return
	}
	response.Success(c, rules)
}
