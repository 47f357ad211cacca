package admin

import (
	handlershared "github.com/dujiao-next/affiliate/internal/http/handlers/shared"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondMappedError(c *gin.Context, err error, rules []handlershared.MappedError, fallbackMsg string) {
	handlershared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackMsg)
}

var affiliateErrorRules = []handlershared.MappedError{
	{Target: service.ErrAffiliateNotFound, Code: response.CodeNotFound, Msg: "推广账户不存在"},
	{Target: service.ErrAffiliateStatusInvalid, Code: response.CodeBadRequest, Msg: "推广账户状态无效"},
	{Target: service.ErrSponsorInvalid, Code: response.CodeBadRequest, Msg: "上级推广账户无效"},
	{Target: service.ErrSponsorCycle, Code: response.CodeBadRequest, Msg: "上级关系形成环路"},
	{Target: service.ErrMLMDepthExceeded, Code: response.CodeBadRequest, Msg: "推广网络层级超出上限"},
}

var ledgerErrorRules = []handlershared.MappedError{
	{Target: service.ErrAffiliateNotFound, Code: response.CodeNotFound, Msg: "推广账户不存在"},
	{Target: service.ErrLedgerAmountInvalid, Code: response.CodeBadRequest, Msg: "流水金额无效"},
	{Target: service.ErrLedgerTypeInvalid, Code: response.CodeBadRequest, Msg: "流水类型无效"},
	{Target: service.ErrLedgerInsufficientBalance, Code: response.CodeBadRequest, Msg: "推广账户余额不足"},
	{Target: service.ErrPayoutBelowMinimum, Code: response.CodeBadRequest, Msg: "结算金额低于最低结算额"},
	{Target: service.ErrNothingToPayout, Code: response.CodeBadRequest, Msg: "没有可结算的佣金"},
}

var ruleErrorRules = []handlershared.MappedError{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Msg: "佣金规则不存在"},
	{Target: service.ErrRuleInvalid, Code: response.CodeBadRequest, Msg: "佣金规则无效"},
}

var tierErrorRules = []handlershared.MappedError{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Msg: "推广等级不存在"},
	{Target: service.ErrTierInvalid, Code: response.CodeBadRequest, Msg: "推广等级无效"},
	{Target: service.ErrTierNameExists, Code: response.CodeConflict, Msg: "推广等级名称已存在"},
	{Target: service.ErrTierInUse, Code: response.CodeConflict, Msg: "推广等级仍被账户使用"},
}

var settingErrorRules = []handlershared.MappedError{
	{Target: service.ErrAffiliateConfigInvalid, Code: response.CodeBadRequest, Msg: "推广配置无效"},
	{Target: service.ErrFraudRulesInvalid, Code: response.CodeBadRequest, Msg: "风控规则无效"},
}
