package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/dujiao-next/affiliate/internal/provider"
	"github.com/dujiao-next/affiliate/internal/queue"

	"github.com/hibiken/asynq"
)

func TestHandleProcessOrderInvalidPayloadSkipsRetry(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task := asynq.NewTask(queue.TaskAffiliateProcessOrder, []byte(`{"order_id":0}`))

	err := consumer.handleProcessOrder(context.Background(), task)
	if err == nil {
		t.Fatalf("expected error for invalid payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHandleProcessRefundMalformedJSONSkipsRetry(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task := asynq.NewTask(queue.TaskAffiliateProcessRefund, []byte(`{not-json`))

	err := consumer.handleProcessRefund(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHandleRescoreInvalidPayloadSkipsRetry(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task := asynq.NewTask(queue.TaskAffiliateRescore, []byte(`{}`))

	err := consumer.handleRescore(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHandlersSkipWhenServiceMissing(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	ctx := context.Background()

	orderTask, err := queue.NewProcessOrderTask(queue.ProcessOrderPayload{OrderID: 7, Source: "test"})
	if err != nil {
		t.Fatalf("new order task failed: %v", err)
	}
	if err := consumer.handleProcessOrder(ctx, orderTask); err != nil {
		t.Fatalf("expected nil when order service missing, got %v", err)
	}

	refundTask, err := queue.NewProcessRefundTask(queue.ProcessRefundPayload{OrderID: 7})
	if err != nil {
		t.Fatalf("new refund task failed: %v", err)
	}
	if err := consumer.handleProcessRefund(ctx, refundTask); err != nil {
		t.Fatalf("expected nil when order service missing, got %v", err)
	}

	rescoreTask, err := queue.NewRescoreTask(queue.RescorePayload{AffiliateID: 3})
	if err != nil {
		t.Fatalf("new rescore task failed: %v", err)
	}
	if err := consumer.handleRescore(ctx, rescoreTask); err != nil {
		t.Fatalf("expected nil when risk service missing, got %v", err)
	}
}

func TestNilConsumerIsNoop(t *testing.T) {
	var consumer *Consumer
	consumer.Register(asynq.NewServeMux())
	if err := consumer.handleProcessOrder(context.Background(), nil); err != nil {
		t.Fatalf("nil consumer should be noop, got %v", err)
	}
}
