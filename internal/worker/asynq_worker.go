package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/provider"
	"github.com/dujiao-next/affiliate/internal/queue"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskAffiliateProcessOrder, c.handleProcessOrder)
	mux.HandleFunc(queue.TaskAffiliateProcessRefund, c.handleProcessRefund)
	mux.HandleFunc(queue.TaskAffiliateRescore, c.handleRescore)
}

func (c *Consumer) handleProcessOrder(ctx context.Context, task *asynq.Task) (err error) {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_process_order_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	started := time.Now()
	defer func() { c.Metrics.ObserveJob(queue.TaskAffiliateProcessOrder, time.Since(started), err) }()

	payload, err := queue.ParseProcessOrderPayload(task)
	if err != nil {
		logger.Warnw("worker_process_order_payload_invalid", "error", err)
		return skipRetry(err)
	}
	if c.AffiliateOrderService == nil {
		logger.Warnw("worker_process_order_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	result, err := c.AffiliateOrderService.ProcessOrder(ctx, payload.OrderID)
	if err != nil {
		logger.Warnw("worker_process_order_failed", "order_id", payload.OrderID, "source", payload.Source, "error", err)
		return err
	}
	if !result.Processed {
		logger.Debugw("worker_process_order_skipped", "order_id", payload.OrderID, "reason", result.Reason)
	}
	return nil
}

func (c *Consumer) handleProcessRefund(ctx context.Context, task *asynq.Task) (err error) {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_process_refund_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	started := time.Now()
	defer func() { c.Metrics.ObserveJob(queue.TaskAffiliateProcessRefund, time.Since(started), err) }()

	payload, err := queue.ParseProcessRefundPayload(task)
	if err != nil {
		logger.Warnw("worker_process_refund_payload_invalid", "error", err)
		return skipRetry(err)
	}
	if c.AffiliateOrderService == nil {
		logger.Warnw("worker_process_refund_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	result, err := c.AffiliateOrderService.ProcessRefund(ctx, payload.OrderID, payload.ItemIDs)
	if err != nil {
		if errors.Is(err, service.ErrRefundItemsInvalid) {
			logger.Warnw("worker_process_refund_items_invalid", "order_id", payload.OrderID, "item_ids", payload.ItemIDs)
			return skipRetry(err)
		}
		logger.Warnw("worker_process_refund_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if !result.Processed {
		logger.Debugw("worker_process_refund_skipped", "order_id", payload.OrderID, "reason", result.Reason)
	}
	return nil
}

func (c *Consumer) handleRescore(ctx context.Context, task *asynq.Task) (err error) {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_rescore_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	started := time.Now()
	defer func() { c.Metrics.ObserveJob(queue.TaskAffiliateRescore, time.Since(started), err) }()

	payload, err := queue.ParseRescorePayload(task)
	if err != nil {
		logger.Warnw("worker_rescore_payload_invalid", "error", err)
		return skipRetry(err)
	}
	if c.RiskService == nil {
		logger.Warnw("worker_rescore_skip_service_nil", "affiliate_id", payload.AffiliateID)
		return nil
	}
	if _, err = c.RiskService.RescoreAffiliate(ctx, payload.AffiliateID, time.Now()); err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			logger.Debugw("worker_rescore_skip_affiliate_not_found", "affiliate_id", payload.AffiliateID)
			return nil
		}
		logger.Warnw("worker_rescore_failed", "affiliate_id", payload.AffiliateID, "error", err)
		return err
	}
	return nil
}

func skipRetry(err error) error {
	return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
}
