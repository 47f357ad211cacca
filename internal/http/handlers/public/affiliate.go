package public

import (
	"net/http"
	"strings"

	"github.com/dujiao-next/affiliate/internal/constants"
	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

type processOrderRequest struct {
	OrderID uint `json:"orderId" binding:"required,gt=0"`
}

type processRefundRequest struct {
	OrderID uint   `json:"orderId" binding:"required,gt=0"`
	ItemIDs []uint `json:"itemIds" binding:"omitempty,dive,gt=0"`
}

type registerAffiliateRequest struct {
	UserID       uint   `json:"userId" binding:"required,gt=0"`
	Name         string `json:"name" binding:"max=120"`
	ReferralCode string `json:"referralCode" binding:"max=64"`
}

// ProcessOrder 订单佣金入账
func (h *Handler) ProcessOrder(c *gin.Context) {
	var req processOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondAPIError(c, http.StatusBadRequest, "请求参数无效", nil)
		return
	}

	result, err := h.AffiliateOrderService.ProcessOrder(c.Request.Context(), req.OrderID)
	if err != nil {
		h.respondAPIMappedError(c, "affiliate_process_order", err, nil, models.JSON{"order_id": req.OrderID})
		return
	}

	body := gin.H{"success": true, "processed": result.Processed}
	if result.Commission != nil {
		body["commission"] = result.Commission
		body["affiliateId"] = result.AffiliateID
		body["source"] = result.Source
	}
	if len(result.Bonuses) > 0 {
		body["bonuses"] = result.Bonuses
	}
	if result.Reason != "" {
		body["reason"] = result.Reason
	}
	response.APIResult(c, http.StatusOK, body)
}

// ProcessRefund 退款佣金扣回
func (h *Handler) ProcessRefund(c *gin.Context) {
	var req processRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondAPIError(c, http.StatusBadRequest, "请求参数无效", nil)
		return
	}

	result, err := h.AffiliateOrderService.ProcessRefund(c.Request.Context(), req.OrderID, req.ItemIDs)
	if err != nil {
		h.respondAPIMappedError(c, "affiliate_process_refund", err, refundErrorRules, models.JSON{"order_id": req.OrderID})
		return
	}

	body := gin.H{"success": true, "processed": result.Processed}
	if result.Deduction != nil {
		body["deduction"] = result.Deduction
	}
	if result.RefundedAmount != nil {
		body["refundedAmount"] = result.RefundedAmount
	}
	if result.OrderStatus != "" {
		body["orderStatus"] = result.OrderStatus
	}
	if result.Reason != "" {
		body["reason"] = result.Reason
	}
	response.APIResult(c, http.StatusOK, body)
}

// RegisterAffiliate 注册推广账户（推荐码缺省时读取 aff_ref Cookie）
func (h *Handler) RegisterAffiliate(c *gin.Context) {
	var req registerAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondAPIError(c, http.StatusBadRequest, "请求参数无效", nil)
		return
	}
	referralCode := strings.TrimSpace(req.ReferralCode)
	if referralCode == "" {
		if cookie, err := c.Cookie(constants.AffiliateReferralCookie); err == nil {
			referralCode = strings.TrimSpace(cookie)
		}
	}

	account, err := h.AffiliateService.Register(c.Request.Context(), service.RegisterInput{
		UserID:       req.UserID,
		Name:         req.Name,
		ReferralCode: referralCode,
	})
	if err != nil {
		h.respondAPIMappedError(c, "affiliate_register", err, registerErrorRules, models.JSON{"user_id": req.UserID})
		return
	}
	response.APIResult(c, http.StatusCreated, gin.H{
		"success":   true,
		"affiliate": account,
	})
}
