/*
 * @module service/models/event
 * @description 事件管理相关模型定义，包括流水线生命周期事件和SSE推送记录
 * @architecture 事件驱动架构 - 数据模型层
 * @documentReference ai_docs/greenroute_event_impl.md
 * @stateFlow 事件生产 -> 事件分发 -> 事件消费
 * @rules 确保事件的可靠传递和处理
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/event/event_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 流水线事件类型
const (
	EventTypeRunStarted       = "run_started"
	EventTypeRunSucceeded     = "run_succeeded"
	EventTypeRunFailed        = "run_failed"
	EventTypeCacheInvalidated = "cache_invalidated"
	EventTypeSourceChanged    = "source_changed"
	EventTypeDatasetChanged   = "dataset_changed"
)

// PipelineEvent 流水线事件模型，SSE推送和外部广播共用
type PipelineEvent struct {
	ID        string     `gorm:"type:uuid;primary_key" json:"id"`
	EventType string     `gorm:"not null;index" json:"event_type"` // run_started, run_succeeded, run_failed, cache_invalidated, source_changed, dataset_changed
	DatasetID string     `gorm:"type:varchar(36);index" json:"dataset_id"`
	RunID     string     `gorm:"type:varchar(36)" json:"run_id"`
	Data      JSONB      `gorm:"type:jsonb" json:"data"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy string     `gorm:"not null;default:'system'" json:"created_by"`
	Sent      bool       `gorm:"not null;default:false" json:"sent"`
	SentAt    *time.Time `json:"sent_at"`
}

// TableName 指定表名
func (PipelineEvent) TableName() string {
	return "pipeline_events"
}

// BeforeCreate 创建前钩子
func (e *PipelineEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "system"
	}
	return nil
}

// MarkSent 标记事件已推送
func (e *PipelineEvent) MarkSent() {
	now := time.Now()
	e.Sent = true
	e.SentAt = &now
}
