package public

import (
	"context"
	"net/http"

	"github.com/dujiao-next/affiliate/internal/constants"
	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

var registerErrorRules = []handlershared.MappedError{
	{Target: service.ErrAffiliateExists, Code: http.StatusConflict, Msg: "推广账户已存在"},
	{Target: service.ErrAffiliateInputInvalid, Code: http.StatusBadRequest, Msg: "推广账户参数无效"},
	{Target: service.ErrSponsorInvalid, Code: http.StatusBadRequest, Msg: "上级推广账户无效"},
	{Target: service.ErrSponsorCycle, Code: http.StatusBadRequest, Msg: "上级关系形成环路"},
	{Target: service.ErrMLMDepthExceeded, Code: http.StatusBadRequest, Msg: "推广网络层级超出上限"},
}

var refundErrorRules = []handlershared.MappedError{
	{Target: service.ErrRefundItemsInvalid, Code: http.StatusBadRequest, Msg: "退款订单项无效"},
}

var stripeErrorRules = []handlershared.MappedError{
	{Target: service.ErrWebhookSignatureInvalid, Code: http.StatusBadRequest, Msg: "签名校验失败"},
	{Target: service.ErrWebhookPayloadInvalid, Code: http.StatusBadRequest, Msg: "回调内容无效"},
	{Target: service.ErrWebhookNotConfigured, Code: http.StatusServiceUnavailable, Msg: "回调密钥未配置"},
}

// respondAPIMappedError 命中映射返回对应状态码；否则 500 并落库 ERROR 级系统日志。
func (h *Handler) respondAPIMappedError(c *gin.Context, source string, err error, rules []handlershared.MappedError, fields models.JSON) {
	if rule, ok := handlershared.MatchError(err, rules); ok {
		handlershared.RespondAPIError(c, rule.Code, rule.Msg, nil)
		return
	}
	h.recordInternalError(c.Request.Context(), source, err, fields)
	handlershared.RespondAPIError(c, http.StatusInternalServerError, "服务内部错误", err)
}

func (h *Handler) recordInternalError(ctx context.Context, source string, err error, fields models.JSON) {
	if h == nil || h.SystemLogService == nil || err == nil {
		return
	}
	if fields == nil {
		fields = models.JSON{}
	}
	fields["error"] = err.Error()
	h.SystemLogService.Record(context.WithoutCancel(ctx), constants.SystemLogLevelError, source, "内部接口处理失败", fields)
}
