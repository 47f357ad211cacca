package queue

import (
	"testing"

	"github.com/dujiao-next/affiliate/internal/config"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessOrderTaskPayload(t *testing.T) {
	task, err := NewProcessOrderTask(ProcessOrderPayload{OrderID: 42, Source: "stripe"})
	require.NoError(t, err)
	assert.Equal(t, TaskAffiliateProcessOrder, task.Type())

	payload, err := ParseProcessOrderPayload(task)
	require.NoError(t, err)
	assert.Equal(t, uint(42), payload.OrderID)
	assert.Equal(t, "stripe", payload.Source)
}

func TestProcessRefundTaskKeepsItems(t *testing.T) {
	task, err := NewProcessRefundTask(ProcessRefundPayload{OrderID: 7, ItemIDs: []uint{3, 1}})
	require.NoError(t, err)

	payload, err := ParseProcessRefundPayload(task)
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1}, payload.ItemIDs)
}

func TestTaskRejectsZeroIDs(t *testing.T) {
	_, err := NewProcessOrderTask(ProcessOrderPayload{})
	assert.Error(t, err)
	_, err = NewRescoreTask(RescorePayload{})
	assert.Error(t, err)

	_, err = ParseRescorePayload(asynq.NewTask(TaskAffiliateRescore, []byte(`{"affiliate_id":0}`)))
	assert.Error(t, err)
	_, err = ParseProcessOrderPayload(asynq.NewTask(TaskAffiliateProcessOrder, []byte(`not-json`)))
	assert.Error(t, err)
}

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.EnqueueProcessOrder(ProcessOrderPayload{OrderID: 1}))
	assert.NoError(t, client.Close())
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380})
	assert.Equal(t, "redis:6380", opt.Addr)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, 6, cfg.Queues[CriticalQueue])
}
