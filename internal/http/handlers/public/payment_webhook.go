package public

import (
	"errors"
	"net/http"

	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/models"

	"github.com/gin-gonic/gin"
)

const stripeSignatureHeader = "Stripe-Signature"

// maxStripePayloadBytes 与 Stripe 官方示例一致
const maxStripePayloadBytes = int64(65536)

// StripeWebhook 处理 Stripe 支付回调
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := handlershared.ReadLimitedBody(c.Request.Body, maxStripePayloadBytes)
	if errors.Is(err, handlershared.ErrBodyTooLarge) {
		handlershared.RespondAPIError(c, http.StatusRequestEntityTooLarge, "回调内容过大", nil)
		return
	}
	if err != nil {
		handlershared.RespondAPIError(c, http.StatusBadRequest, "读取回调内容失败", nil)
		return
	}

	result, err := h.PaymentWebhookService.HandleStripe(c.Request.Context(), payload, c.GetHeader(stripeSignatureHeader))
	if err != nil {
		h.respondAPIMappedError(c, "stripe_webhook", err, stripeErrorRules, models.JSON{})
		return
	}
	response.APIResult(c, http.StatusOK, gin.H{
		"received":  true,
		"eventId":   result.EventID,
		"handled":   result.Handled,
		"duplicate": result.Duplicate,
		"refund":    result.Refund,
	})
}
