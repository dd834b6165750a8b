/*
 * @module service/models/pipeline_run
 * @description 流水线运行记录模型定义，跟踪每次合并计算的触发方式、状态、统计信息和错误详情
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 运行创建(running) -> 成功(succeeded)/失败(failed)
 * @rules 运行记录只追加不修改业务字段，统计信息以JSONB快照存储
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 运行状态
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// 触发方式
const (
	RunTriggerManual   = "manual"
	RunTriggerSchedule = "schedule"
	RunTriggerAPI      = "api"
)

// PipelineRun 流水线运行记录模型
type PipelineRun struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DatasetID   string `json:"dataset_id" gorm:"not null;type:varchar(36);index"`
	TriggerType string `json:"trigger_type" gorm:"not null;size:20;default:'manual'"` // manual, schedule, api
	Status      string `json:"status" gorm:"not null;size:20;default:'running';index"`

	Fingerprint string `json:"fingerprint" gorm:"size:64"` // 输入文件集合指纹
	RowCount    int    `json:"row_count" gorm:"not null;default:0"`
	ColumnCount int    `json:"column_count" gorm:"not null;default:0"`
	Statistics  JSONB  `json:"statistics" gorm:"type:jsonb"` // 合并统计快照

	ErrorCode    string `json:"error_code" gorm:"size:50"`
	ErrorMessage string `json:"error_message" gorm:"type:text"`

	StartedAt  time.Time  `json:"started_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	FinishedAt *time.Time `json:"finished_at"`
	DurationMs int64      `json:"duration_ms" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedBy string    `json:"created_by" gorm:"not null;default:'system';size:100"`

	// 关联关系
	Dataset Dataset `json:"dataset,omitempty" gorm:"foreignKey:DatasetID"`
}

// TableName 指定表名
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// BeforeCreate GORM钩子，创建前生成UUID
func (r *PipelineRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedBy == "" {
		r.CreatedBy = "system"
	}
	return nil
}

// MarkSucceeded 标记运行成功并记录耗时
func (r *PipelineRun) MarkSucceeded(rowCount, columnCount int, statistics JSONB) {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.RowCount = rowCount
	r.ColumnCount = columnCount
	r.Statistics = statistics
	r.FinishedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}

// MarkFailed 标记运行失败并记录错误详情
func (r *PipelineRun) MarkFailed(code, message string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.ErrorCode = code
	r.ErrorMessage = message
	r.FinishedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}
