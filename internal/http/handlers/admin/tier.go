package admin

import (
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

// ListTiers 推广等级列表
func (h *Handler) ListTiers(c *gin.Context) {
	tiers, err := h.TierService.ListTiers()
	if err != nil {
		respondError(c, response.CodeInternal, "推广等级读取失败", err)
		return
	}
	response.Success(c, tiers)
}

// CreateTier 创建推广等级
func (h *Handler) CreateTier(c *gin.Context) {
	var req service.TierInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	tier, err := h.TierService.CreateTier(req)
	if err != nil {
		respondMappedError(c, err, tierErrorRules, "推广等级保存失败")
		return
	}
	response.Success(c, tier)
}

// UpdateTier 更新推广等级
func (h *Handler) UpdateTier(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req service.TierInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	tier, err := h.TierService.UpdateTier(id, req)
	if err != nil {
		respondMappedError(c, err, tierErrorRules, "推广等级保存失败")
		return
	}
	response.Success(c, tier)
}

// DeleteTier 删除推广等级
func (h *Handler) DeleteTier(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.TierService.DeleteTier(id); err != nil {
		respondMappedError(c, err, tierErrorRules, "推广等级删除失败")
		return
	}
	response.Success(c, nil)
}
