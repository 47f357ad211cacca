package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/repository"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

type commissionPreviewPayload struct {
	AffiliateID uint                 `json:"affiliate_id" binding:"required,gt=0"`
	Order       service.OrderContext `json:"order"`
}

// ListCommissionRules 佣金规则列表
func (h *Handler) ListCommissionRules(c *gin.Context) {
	page, pageSize := handlershared.ReadPagination(c)
	rules, total, err := h.CommissionRuleService.List(repository.CommissionRuleListFilter{
		Page:       page,
		PageSize:   pageSize,
		ActiveOnly: strings.EqualFold(c.Query("active"), "true"),
		Keyword:    strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "佣金规则读取失败", err)
		return
	}
	response.SuccessWithPage(c, rules, handlershared.BuildPagination(page, pageSize, total))
}

// GetCommissionRule 佣金规则详情
func (h *Handler) GetCommissionRule(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	rule, err := h.CommissionRuleService.Get(id)
	if err != nil {
		respondMappedError(c, err, ruleErrorRules, "佣金规则读取失败")
		return
	}
	response.Success(c, rule)
}

// CreateCommissionRule 创建佣金规则
func (h *Handler) CreateCommissionRule(c *gin.Context) {
	var req service.CommissionRuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	rule, err := h.CommissionRuleService.Create(req)
	if err != nil {
		respondMappedError(c, err, ruleErrorRules, "佣金规则保存失败")
		return
	}
	response.Success(c, rule)
}

// UpdateCommissionRule 更新佣金规则
func (h *Handler) UpdateCommissionRule(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req service.CommissionRuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	rule, err := h.CommissionRuleService.Update(id, req)
	if err != nil {
		respondMappedError(c, err, ruleErrorRules, "佣金规则保存失败")
		return
	}
	response.Success(c, rule)
}

// DeleteCommissionRule 删除佣金规则
func (h *Handler) DeleteCommissionRule(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.CommissionRuleService.Delete(id); err != nil {
		respondMappedError(c, err, ruleErrorRules, "佣金规则删除失败")
		return
	}
	response.Success(c, nil)
}

// PreviewCommission 佣金试算（不入账）
func (h *Handler) PreviewCommission(c *gin.Context) {
	var req commissionPreviewPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	result, err := h.CommissionService.CalculateCommission(c.Request.Context(), req.AffiliateID, req.Order)
	if err != nil {
		respondMappedError(c, err, []handlershared.MappedError{
			{Target: service.ErrAffiliateNotFound, Code: response.CodeNotFound, Msg: "推广账户不存在"},
			{Target: service.ErrCommissionInput, Code: response.CodeBadRequest, Msg: "佣金计算参数无效"},
		}, "佣金试算失败")
		return
	}
	response.Success(c, result)
}
