package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/repository"

	"github.com/gin-gonic/gin"
)

type affiliateStatusPayload struct {
	Status string `json:"status" binding:"required"`
}

type affiliateSponsorPayload struct {
	ParentID uint `json:"parent_id"`
}

// ListAffiliates 推广账户列表
func (h *Handler) ListAffiliates(c *gin.Context) {
	page, pageSize := handlershared.ReadPagination(c)
	minRisk, _ := strconv.Atoi(c.DefaultQuery("min_risk_score", "0"))
	accounts, total, err := h.AffiliateService.List(repository.AffiliateListFilter{
		Page:         page,
		PageSize:     pageSize,
		Status:       strings.TrimSpace(c.Query("status")),
		TierID:       handlershared.QueryUint(c, "tier_id"),
		ParentID:     handlershared.QueryUint(c, "parent_id"),
		MinRiskScore: minRisk,
		Keyword:      strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "推广账户读取失败", err)
		return
	}
	response.SuccessWithPage(c, accounts, handlershared.BuildPagination(page, pageSize, total))
}

// GetAffiliate 推广账户详情
func (h *Handler) GetAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	detail, err := h.AffiliateService.GetDetail(c.Request.Context(), id)
	if err != nil {
		respondMappedError(c, err, affiliateErrorRules, "推广账户读取失败")
		return
	}
	response.Success(c, detail)
}

// UpdateAffiliateStatus 更新推广账户状态
func (h *Handler) UpdateAffiliateStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req affiliateStatusPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	account, err := h.AffiliateService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondMappedError(c, err, affiliateErrorRules, "推广账户状态更新失败")
		return
	}
	h.audit(c, "admin_affiliate_status_updated", "affiliate_id", id, "status", account.Status)
	response.Success(c, account)
}

// ChangeAffiliateSponsor 变更上级（parent_id 为 0 时挂到根节点）
func (h *Handler) ChangeAffiliateSponsor(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req affiliateSponsorPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	account, err := h.NetworkService.ChangeSponsor(c.Request.Context(), id, req.ParentID)
	if err != nil {
		respondMappedError(c, err, affiliateErrorRules, "上级变更失败")
		return
	}
	h.audit(c, "admin_affiliate_sponsor_changed", "affiliate_id", id, "parent_id", req.ParentID, "mlm_path", account.MLMPath)
	response.Success(c, account)
}

// GetAffiliateSponsor 查询直属上级
func (h *Handler) GetAffiliateSponsor(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	sponsor, err := h.NetworkService.GetSponsor(c.Request.Context(), id)
	if err != nil {
		respondMappedError(c, err, affiliateErrorRules, "上级读取失败")
		return
	}
	response.Success(c, sponsor)
}

// GetAffiliateNetwork 查询下级网络树
func (h *Handler) GetAffiliateNetwork(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	tree, err := h.NetworkService.GetNetworkTree(c.Request.Context(), id)
	if err != nil {
		respondMappedError(c, err, affiliateErrorRules, "网络读取失败")
		return
	}
	response.Success(c, tree)
}

// GetAffiliateTeam 团队统计
func (h *Handler) GetAffiliateTeam(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	stats, err := h.NetworkService.TeamStats(c.Request.Context(), id)
	if err != nil {
		respondMappedError(c, err, affiliateErrorRules, "团队统计读取失败")
		return
	}
	response.Success(c, stats)
}

// ListAffiliateReferrals 推荐订单列表
func (h *Handler) ListAffiliateReferrals(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ReadPagination(c)
	filter := repository.ReferralListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: id,
		Status:      strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	if raw := strings.TrimSpace(c.Query("level")); raw != "" {
		if level, err := strconv.Atoi(raw); err == nil && level >= 0 {
			filter.Level = &level
		}
	}
	referrals, total, err := h.AffiliateService.ListReferrals(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "推荐订单读取失败", err)
		return
	}
	response.SuccessWithPage(c, referrals, handlershared.BuildPagination(page, pageSize, total))
}

// RescoreAffiliate 立即重算风险分
func (h *Handler) RescoreAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	assessment, err := h.RiskService.RescoreAffiliate(c.Request.Context(), id, h.now())
	if err != nil {
		respondMappedError(c, err, affiliateErrorRules, "风险评分失败")
		return
	}
	h.audit(c, "admin_affiliate_rescored", "affiliate_id", id, "score", assessment.Score, "banned", assessment.Banned)
	response.Success(c, assessment)
}
