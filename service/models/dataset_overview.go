/*
 * @module service/models/dataset_overview
 * @description 数据集总览与运行统计只读模型，映射数据库视图，不参与表迁移
 * @architecture DDD领域驱动设计 - 读模型
 * @documentReference dev_docs/model.md
 * @stateFlow 视图查询 -> API展示
 * @rules 只读模型，写入操作一律走实体表
 * @dependencies gorm.io/gorm
 * @refs service/database/views/dataset_overview_view.go
 */

package models

import (
	"time"
)

// DatasetOverview 数据集总览读模型，映射dataset_overview视图
type DatasetOverview struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	BaseDir         string     `json:"base_dir"`
	Status          string     `json:"status"`
	LastFingerprint string     `json:"last_fingerprint"`
	LastRunAt       *time.Time `json:"last_run_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	RunCount        int64      `json:"run_count"`
	SucceededCount  int64      `json:"succeeded_count"`
	FailedCount     int64      `json:"failed_count"`
	LastFinishedAt  *time.Time `json:"last_finished_at"`
	AvgDurationMs   float64    `json:"avg_duration_ms"`
}

// TableName 指定视图名
func (DatasetOverview) TableName() string {
	return "dataset_overview"
}

// RunDailyStat 运行按日统计读模型，映射run_daily_stats视图
type RunDailyStat struct {
	DatasetID     string    `json:"dataset_id"`
	RunDate       time.Time `json:"run_date"`
	TotalRuns     int64     `json:"total_runs"`
	SucceededRuns int64     `json:"succeeded_runs"`
	FailedRuns    int64     `json:"failed_runs"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
	MaxRowCount   int       `json:"max_row_count"`
}

// TableName 指定视图名
func (RunDailyStat) TableName() string {
	return "run_daily_stats"
}
