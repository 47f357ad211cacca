package queue

import (
	"encoding/json"
	"errors"

	"github.com/dujiao-next/affiliate/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskAffiliateProcessOrder 订单佣金入账任务
	TaskAffiliateProcessOrder = constants.TaskAffiliateProcessOrder
	// TaskAffiliateProcessRefund 退款佣金扣回任务
	TaskAffiliateProcessRefund = constants.TaskAffiliateProcessRefund
	// TaskAffiliateRescore 单账户风控重评任务
	TaskAffiliateRescore = constants.TaskAffiliateRescore
)

// ErrPayloadInvalid 任务载荷无效
var ErrPayloadInvalid = errors.New("task payload invalid")

// ProcessOrderPayload 订单佣金任务载荷
type ProcessOrderPayload struct {
	OrderID uint   `json:"order_id"`
	Source  string `json:"source,omitempty"`
}

// ProcessRefundPayload 退款扣回任务载荷
type ProcessRefundPayload struct {
	OrderID uint   `json:"order_id"`
	ItemIDs []uint `json:"item_ids,omitempty"`
}

// RescorePayload 风控重评任务载荷
type RescorePayload struct {
	AffiliateID uint `json:"affiliate_id"`
}

// NewProcessOrderTask 创建订单佣金任务
func NewProcessOrderTask(payload ProcessOrderPayload) (*asynq.Task, error) {
	if payload.OrderID == 0 {
		return nil, ErrPayloadInvalid
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAffiliateProcessOrder, body), nil
}

// NewProcessRefundTask 创建退款扣回任务
func NewProcessRefundTask(payload ProcessRefundPayload) (*asynq.Task, error) {
	if payload.OrderID == 0 {
		return nil, ErrPayloadInvalid
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAffiliateProcessRefund, body), nil
}

// NewRescoreTask 创建风控重评任务
func NewRescoreTask(payload RescorePayload) (*asynq.Task, error) {
	if payload.AffiliateID == 0 {
		return nil, ErrPayloadInvalid
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAffiliateRescore, body), nil
}

// ParseProcessOrderPayload 解析订单佣金任务载荷
func ParseProcessOrderPayload(task *asynq.Task) (ProcessOrderPayload, error) {
	var payload ProcessOrderPayload
	if task == nil {
		return payload, ErrPayloadInvalid
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.OrderID == 0 {
		return payload, ErrPayloadInvalid
	}
	return payload, nil
}

// ParseProcessRefundPayload 解析退款扣回任务载荷
func ParseProcessRefundPayload(task *asynq.Task) (ProcessRefundPayload, error) {
	var payload ProcessRefundPayload
	if task == nil {
		return payload, ErrPayloadInvalid
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.OrderID == 0 {
		return payload, ErrPayloadInvalid
	}
	return payload, nil
}

// ParseRescorePayload 解析风控重评任务载荷
func ParseRescorePayload(task *asynq.Task) (RescorePayload, error) {
	var payload RescorePayload
	if task == nil {
		return payload, ErrPayloadInvalid
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.AffiliateID == 0 {
		return payload, ErrPayloadInvalid
	}
	return payload, nil
}
