package admin

import (
	"strings"
	"time"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/repository"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

type payoutPayload struct {
	Note string `json:"note" binding:"max=255"`
}

// ListAffiliateLedger 推广流水列表
func (h *Handler) ListAffiliateLedger(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ReadPagination(c)
	filter := repository.LedgerListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: id,
		Type:        strings.ToUpper(strings.TrimSpace(c.Query("type"))),
		CreatedFrom: parseQueryTime(c, "created_from"),
		CreatedTo:   parseQueryTime(c, "created_to"),
	}
	entries, total, err := h.LedgerService.ListLedger(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "推广流水读取失败", err)
		return
	}
	response.SuccessWithPage(c, entries, handlershared.BuildPagination(page, pageSize, total))
}

// CreateAffiliateAdjustment 管理员调账
func (h *Handler) CreateAffiliateAdjustment(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req service.LedgerAdjustmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", nil)
		return
	}
	req.AffiliateID = id
	entry, err := h.LedgerService.CreateAdjustment(c.Request.Context(), req)
	if err != nil {
		respondMappedError(c, err, ledgerErrorRules, "调账失败")
		return
	}
	h.audit(c, "admin_affiliate_adjustment_created",
		"affiliate_id", id,
		"entry_id", entry.ID,
		"amount", entry.Amount.String(),
	)
	response.Success(c, entry)
}

// PayoutAffiliate 结算已审核佣金
func (h *Handler) PayoutAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req payoutPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "请求参数无效", nil)
			return
		}
	}
	result, err := h.LedgerService.PayoutApproved(c.Request.Context(), id, req.Note)
	if err != nil {
		respondMappedError(c, err, ledgerErrorRules, "结算失败")
		return
	}
	h.audit(c, "admin_affiliate_payout_created",
		"affiliate_id", id,
		"amount", result.Amount.String(),
		"referrals", result.ReferralCount,
	)
	response.Success(c, result)
}

// ReconcileAffiliate 余额对账
func (h *Handler) ReconcileAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	report, err := h.LedgerService.ReconcileBalance(c.Request.Context(), id)
	if err != nil {
		respondMappedError(c, err, ledgerErrorRules, "对账失败")
		return
	}
	response.Success(c, report)
}

func parseQueryTime(c *gin.Context, name string) *time.Time {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &parsed
		}
	}
	return nil
}
