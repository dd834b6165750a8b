/*
 * @module service/event/event_service_test
 * @description 事件服务单元测试，验证SSE连接管理、事件发布和历史查询
 * @architecture 测试层
 * @documentReference ai_docs/greenroute_event_impl.md
 * @stateFlow 构造内存数据库 -> 发布事件 -> 验证推送与持久化
 * @rules 数据库变更桥接在测试中保持关闭
 * @dependencies github.com/stretchr/testify
 * @refs service/event/event_service.go
 */

package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenroute-service/service/models"
)

func setupEventService(t *testing.T) *EventService {
	t.Helper()
	testDB, err := models.NewModelTestDB()
	require.NoError(t, err, "创建测试数据库失败")

	service := NewEventService(testDB.DB)
	t.Cleanup(func() {
		service.Stop()
		testDB.Close()
	})
	return service
}

// recordingPublisher 记录收到事件的测试发布器
type recordingPublisher struct {
	name   string
	events []*models.PipelineEvent
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) PublishEvent(_ context.Context, event *models.PipelineEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestEventService_SSEConnectionLifecycle(t *testing.T) {
	service := setupEventService(t)

	client := service.AddSSEConnection("conn-1", "127.0.0.1")
	require.NotNil(t, client)
	assert.Equal(t, 1, service.ConnectionCount())

	service.AddSSEConnection("conn-2", "127.0.0.2")
	assert.Equal(t, 2, service.ConnectionCount())

	service.RemoveSSEConnection("conn-1")
	assert.Equal(t, 1, service.ConnectionCount())

	// 重复移除不报错
	service.RemoveSSEConnection("conn-1")
	assert.Equal(t, 1, service.ConnectionCount())
}

func TestEventService_PublishDeliversToSSEClient(t *testing.T) {
	service := setupEventService(t)
	client := service.AddSSEConnection("conn-1", "127.0.0.1")

	err := service.PublishRunStarted("ds-1", "run-1", models.RunTriggerManual)
	require.NoError(t, err)

	select {
	case event := <-client.Channel:
		assert.Equal(t, models.EventTypeRunStarted, event.EventType)
		assert.Equal(t, "ds-1", event.DatasetID)
		assert.Equal(t, "run-1", event.RunID)
		assert.Equal(t, models.RunTriggerManual, event.Data["trigger_type"])
		assert.NotEmpty(t, event.ID, "持久化后事件应有ID")
	case <-time.After(time.Second):
		t.Fatal("超时未收到SSE事件")
	}
}

func TestEventService_PublishPersistsAndMarksSent(t *testing.T) {
	service := setupEventService(t)

	err := service.PublishRunSucceeded("ds-1", "run-1", 200, 25, 1500)
	require.NoError(t, err)

	events, total, err := service.ListEvents(1, 10, "ds-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)

	assert.Equal(t, models.EventTypeRunSucceeded, events[0].EventType)
	assert.True(t, events[0].Sent)
	assert.NotNil(t, events[0].SentAt)
}

func TestEventService_PublishNotifiesExternalPublishers(t *testing.T) {
	service := setupEventService(t)

	publisher := &recordingPublisher{name: "test-publisher"}
	service.RegisterPublisher(publisher)

	require.NoError(t, service.PublishRunFailed("ds-1", "run-1", "unresolvable_key", "缺少订单主键列"))
	require.NoError(t, service.PublishCacheInvalidated("ds-1"))

	require.Len(t, publisher.events, 2)
	assert.Equal(t, models.EventTypeRunFailed, publisher.events[0].EventType)
	assert.Equal(t, "unresolvable_key", publisher.events[0].Data["error_code"])
	assert.Equal(t, models.EventTypeCacheInvalidated, publisher.events[1].EventType)
}

func TestEventService_FullQueueDoesNotBlock(t *testing.T) {
	service := setupEventService(t)
	service.AddSSEConnection("conn-slow", "127.0.0.1")

	// 通道缓冲100，发布110个事件不应阻塞
	done := make(chan struct{})
	go func() {
		for i := 0; i < 110; i++ {
			_ = service.PublishSourceChanged("ds-1", "fp-1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("发布被慢客户端阻塞")
	}
}

func TestEventService_ListEventsFilters(t *testing.T) {
	service := setupEventService(t)

	require.NoError(t, service.PublishRunStarted("ds-1", "run-1", models.RunTriggerManual))
	require.NoError(t, service.PublishRunStarted("ds-2", "run-2", models.RunTriggerSchedule))
	require.NoError(t, service.PublishRunFailed("ds-1", "run-1", "unexpected", "boom"))

	tests := []struct {
		name      string
		datasetID string
		eventType string
		wantTotal int64
	}{
		{name: "按数据集过滤", datasetID: "ds-1", wantTotal: 2},
		{name: "按事件类型过滤", eventType: models.EventTypeRunStarted, wantTotal: 2},
		{name: "组合过滤", datasetID: "ds-1", eventType: models.EventTypeRunFailed, wantTotal: 1},
		{name: "无过滤条件", wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := service.ListEvents(1, 10, tt.datasetID, tt.eventType)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}
