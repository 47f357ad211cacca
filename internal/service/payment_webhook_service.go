package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/metrics"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/queue"
	"github.com/dujiao-next/affiliate/internal/repository"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
)

const (
	stripeEventPaymentIntentSucceeded = "payment_intent.succeeded"
	stripeEventCheckoutCompleted      = "checkout.session.completed"
	stripeEventChargeRefunded         = "charge.refunded"
	stripeMetadataRefundItemIDs       = "refund_item_ids"
	stripeMetadataOrderID             = "order_id"
	stripeDefaultTolerance            = 300 * time.Second
	stripeProvider                    = "stripe"
	dispatchFallbackTimeout           = 2 * time.Minute
)

// StripeWebhookResult 回调处理结果
type StripeWebhookResult struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	OrderID    uint   `json:"order_id,omitempty"`
	Handled    bool   `json:"handled"`
	Duplicate  bool   `json:"duplicate"`
	MarkedPaid bool   `json:"marked_paid"`
	Refund     bool   `json:"refund"`
	ItemIDs    []uint `json:"item_ids,omitempty"`
}

// OrderDispatcher 订单佣金任务分发
type OrderDispatcher interface {
	DispatchOrder(ctx context.Context, orderID uint, source string)
	DispatchRefund(ctx context.Context, orderID uint, itemIDs []uint, source string)
}

// QueueOrderDispatcher 队列可用时投递 asynq 任务，否则在后台 goroutine 直接处理
type QueueOrderDispatcher struct {
	client *queue.Client
	orders *AffiliateOrderService
}

// NewQueueOrderDispatcher 创建订单佣金任务分发器
func NewQueueOrderDispatcher(client *queue.Client, orders *AffiliateOrderService) *QueueOrderDispatcher {
	return &QueueOrderDispatcher{client: client, orders: orders}
}

// DispatchOrder 投递订单佣金处理，失败只记录日志
func (d *QueueOrderDispatcher) DispatchOrder(ctx context.Context, orderID uint, source string) {
	if d == nil || orderID == 0 {
		return
	}
	if d.client.Enabled() {
		if err := d.client.EnqueueProcessOrder(queue.ProcessOrderPayload{OrderID: orderID, Source: source}); err != nil {
			logger.Errorw("affiliate_order_enqueue_failed", "order_id", orderID, "source", source, "error", err)
			d.runInline(orderID, source)
		}
		return
	}
	d.runInline(orderID, source)
}

// DispatchRefund 投递退款扣回处理，itemIDs 为空表示整单
func (d *QueueOrderDispatcher) DispatchRefund(ctx context.Context, orderID uint, itemIDs []uint, source string) {
	if d == nil || orderID == 0 {
		return
	}
	if d.client.Enabled() {
		if err := d.client.EnqueueProcessRefund(queue.ProcessRefundPayload{OrderID: orderID, ItemIDs: itemIDs}); err != nil {
			logger.Errorw("affiliate_refund_enqueue_failed", "order_id", orderID, "source", source, "error", err)
			d.runRefundInline(orderID, itemIDs, source)
		}
		return
	}
	d.runRefundInline(orderID, itemIDs, source)
}

func (d *QueueOrderDispatcher) runRefundInline(orderID uint, itemIDs []uint, source string) {
	if d.orders == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchFallbackTimeout)
		defer cancel()
		if _, err := d.orders.ProcessRefund(ctx, orderID, itemIDs); err != nil {
			logger.Errorw("affiliate_refund_inline_failed", "order_id", orderID, "source", source, "error", err)
		}
	}()
}

func (d *QueueOrderDispatcher) runInline(orderID uint, source string) {
	if d.orders == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchFallbackTimeout)
		defer cancel()
		if _, err := d.orders.ProcessOrder(ctx, orderID); err != nil {
			logger.Errorw("affiliate_order_inline_failed", "order_id", orderID, "source", source, "error", err)
		}
	}()
}

// PaymentWebhookService Stripe 支付回调处理
type PaymentWebhookService struct {
	secret      string
	tolerance   time.Duration
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	webhookRepo repository.WebhookEventRepository
	dispatcher  OrderDispatcher
	metrics     *metrics.AffiliateMetrics
}

// NewPaymentWebhookService 创建支付回调服务
func NewPaymentWebhookService(
	secret string,
	tolerance time.Duration,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	webhookRepo repository.WebhookEventRepository,
	dispatcher OrderDispatcher,
	m *metrics.AffiliateMetrics,
) *PaymentWebhookService {
	if tolerance <= 0 {
		tolerance = stripeDefaultTolerance
	}
	return &PaymentWebhookService{
		secret:      strings.TrimSpace(secret),
		tolerance:   tolerance,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		webhookRepo: webhookRepo,
		dispatcher:  dispatcher,
		metrics:     m,
	}
}

// HandleStripe 校验签名并处理 Stripe 事件；同一事件 ID 只处理一次
func (s *PaymentWebhookService) HandleStripe(ctx context.Context, payload []byte, signature string) (*StripeWebhookResult, error) {
	if s.secret == "" {
		s.metrics.IncWebhook(stripeProvider, "not_configured")
		return nil, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		Tolerance:                s.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.metrics.IncWebhook(stripeProvider, "invalid_signature")
		logger.Warnw("stripe_webhook_signature_invalid", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrWebhookSignatureInvalid, err)
	}

	result := &StripeWebhookResult{EventID: event.ID, EventType: string(event.Type)}
	if string(event.Type) == stripeEventChargeRefunded {
		return s.handleStripeRefund(ctx, event, result)
	}
	orderID, paymentRef, err := extractStripeOrder(event)
	if err != nil {
		s.metrics.IncWebhook(stripeProvider, "invalid_payload")
		return nil, err
	}
	if orderID == 0 {
		s.metrics.IncWebhook(stripeProvider, "ignored")
		logger.Debugw("stripe_webhook_ignored", "event_id", event.ID, "event_type", event.Type)
		return result, nil
	}
	result.OrderID = orderID

	key := IdempotencyKey(constants.IdempotencyScopeStripe, event.ID)
	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		webhookRepo := s.webhookRepo.WithTx(tx)
		created, err := webhookRepo.CreateIfAbsent(&models.WebhookEvent{
			IdempotencyKey: key,
			Scope:          constants.IdempotencyScopeStripe,
			ExternalID:     event.ID,
		})
		if err != nil {
			return err
		}
		if !created {
			return errEventAlreadyProcessed
		}

		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: 订单 %d 不存在", ErrWebhookPayloadInvalid, orderID)
		}
		now := time.Now()
		changed, err := orderRepo.MarkPaid(order.ID, paymentRef, now)
		if err != nil {
			return err
		}
		if changed {
			productRepo := s.productRepo.WithTx(tx)
			for _, item := range order.Items {
				affected, err := productRepo.DecrementStock(item.ProductID, item.Quantity)
				if err != nil {
					return err
				}
				if affected == 0 {
					logger.Warnw("stripe_webhook_stock_insufficient",
						"order_id", order.ID,
						"product_id", item.ProductID,
						"quantity", item.Quantity,
					)
				}
			}
		}
		result.MarkedPaid = changed
		return webhookRepo.MarkProcessed(key, models.JSON{
			"order_id":    order.ID,
			"event_type":  string(event.Type),
			"marked_paid": changed,
		}, now)
	})
	if errors.Is(err, errEventAlreadyProcessed) {
		result.Duplicate = true
		s.metrics.IncWebhook(stripeProvider, "duplicate")
		return result, nil
	}
	if err != nil {
		s.metrics.IncWebhook(stripeProvider, "error")
		logger.Errorw("stripe_webhook_failed", "event_id", event.ID, "order_id", orderID, "error", err)
		return nil, err
	}

	result.Handled = true
	s.metrics.IncWebhook(stripeProvider, "handled")
	logger.Infow("stripe_webhook_handled",
		"event_id", event.ID,
		"event_type", event.Type,
		"order_id", orderID,
		"marked_paid", result.MarkedPaid,
	)
	if result.MarkedPaid && s.dispatcher != nil {
		s.dispatcher.DispatchOrder(ctx, orderID, stripeProvider)
	}
	return result, nil
}

// handleStripeRefund 记录退款事件后投递佣金扣回；部分退款需在 metadata.refund_item_ids 指明订单项
func (s *PaymentWebhookService) handleStripeRefund(ctx context.Context, event stripe.Event, result *StripeWebhookResult) (*StripeWebhookResult, error) {
	orderID, itemIDs, err := extractStripeRefund(event)
	if err != nil {
		s.metrics.IncWebhook(stripeProvider, "invalid_payload")
		return nil, err
	}
	if orderID == 0 {
		s.metrics.IncWebhook(stripeProvider, "ignored")
		logger.Debugw("stripe_webhook_ignored", "event_id", event.ID, "event_type", event.Type)
		return result, nil
	}
	result.OrderID = orderID
	result.ItemIDs = itemIDs

	key := IdempotencyKey(constants.IdempotencyScopeStripe, event.ID)
	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		webhookRepo := s.webhookRepo.WithTx(tx)
		created, err := webhookRepo.CreateIfAbsent(&models.WebhookEvent{
			IdempotencyKey: key,
			Scope:          constants.IdempotencyScopeStripe,
			ExternalID:     event.ID,
		})
		if err != nil {
			return err
		}
		if !created {
			return errEventAlreadyProcessed
		}
		order, err := s.orderRepo.WithTx(tx).GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: 订单 %d 不存在", ErrWebhookPayloadInvalid, orderID)
		}
		return webhookRepo.MarkProcessed(key, models.JSON{
			"order_id":   order.ID,
			"event_type": string(event.Type),
			"item_ids":   itemIDs,
		}, time.Now())
	})
	if errors.Is(err, errEventAlreadyProcessed) {
		result.Duplicate = true
		s.metrics.IncWebhook(stripeProvider, "duplicate")
		return result, nil
	}
	if err != nil {
		s.metrics.IncWebhook(stripeProvider, "error")
		logger.Errorw("stripe_webhook_failed", "event_id", event.ID, "order_id", orderID, "error", err)
		return nil, err
	}

	result.Handled = true
	result.Refund = true
	s.metrics.IncWebhook(stripeProvider, "handled")
	logger.Infow("stripe_webhook_refund_handled",
		"event_id", event.ID,
		"order_id", orderID,
		"item_ids", itemIDs,
	)
	if s.dispatcher != nil {
		s.dispatcher.DispatchRefund(ctx, orderID, itemIDs, stripeProvider)
	}
	return result, nil
}

// extractStripeRefund 解析 charge.refunded；全额退款返回空 itemIDs，未标注订单项的部分退款返回 0
func extractStripeRefund(event stripe.Event) (uint, []uint, error) {
	if event.Data == nil {
		return 0, nil, fmt.Errorf("%w: 事件缺少 data", ErrWebhookPayloadInvalid)
	}
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err)
	}
	orderID, err := parseStripeOrderID(charge.Metadata)
	if err != nil || orderID == 0 {
		return 0, nil, err
	}
	if charge.Refunded {
		return orderID, nil, nil
	}
	raw := strings.TrimSpace(charge.Metadata[stripeMetadataRefundItemIDs])
	if raw == "" {
		logger.Warnw("stripe_webhook_partial_refund_unmapped", "event_id", event.ID, "order_id", orderID, "charge_id", charge.ID)
		return 0, nil, nil
	}
	var itemIDs []uint
	for _, part := range strings.Split(raw, ",") {
		value, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil || value == 0 {
			return 0, nil, fmt.Errorf("%w: refund_item_ids 非法", ErrWebhookPayloadInvalid)
		}
		itemIDs = append(itemIDs, uint(value))
	}
	return orderID, itemIDs, nil
}

// extractStripeOrder 从支付成功事件的 metadata.order_id 解析订单；其他事件返回 0
func extractStripeOrder(event stripe.Event) (uint, string, error) {
	if event.Data == nil {
		return 0, "", fmt.Errorf("%w: 事件缺少 data", ErrWebhookPayloadInvalid)
	}
	var (
		metadata   map[string]string
		paymentRef string
	)
	switch string(event.Type) {
	case stripeEventPaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return 0, "", fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err)
		}
		metadata = intent.Metadata
		paymentRef = intent.ID
	case stripeEventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return 0, "", fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err)
		}
		if session.PaymentStatus != "" && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return 0, "", nil
		}
		metadata = session.Metadata
		paymentRef = session.ID
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			paymentRef = session.PaymentIntent.ID
		}
	default:
		return 0, "", nil
	}

	orderID, err := parseStripeOrderID(metadata)
	if err != nil || orderID == 0 {
		return 0, "", err
	}
	return orderID, paymentRef, nil
}

func parseStripeOrderID(metadata map[string]string) (uint, error) {
	raw := strings.TrimSpace(metadata[stripeMetadataOrderID])
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("%w: metadata.order_id 无效", ErrWebhookPayloadInvalid)
	}
	return uint(parsed), nil
}
