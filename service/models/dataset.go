/*
 * @module service/models/dataset
 * @description 数据集相关模型定义，包括五类物流数据源文件的注册信息和行级脚本配置
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 数据集注册 -> 文件指纹跟踪 -> 流水线消费
 * @rules 遵循数据库设计规范，确保数据完整性和一致性
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/requirements.md
 */

package models

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dataset 数据集模型，一个数据集对应一组五类CSV数据源文件
type Dataset struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name        string `json:"name" gorm:"not null;unique;size:255" example:"default"`
	Description string `json:"description" gorm:"size:1000" example:"绿色路线默认数据集"`
	BaseDir     string `json:"base_dir" gorm:"not null;size:500" example:"./data"`

	// 五类数据源文件名，相对于BaseDir
	OrdersFile      string `json:"orders_file" gorm:"not null;size:255;default:'orders.csv'"`
	RoutesFile      string `json:"routes_file" gorm:"not null;size:255;default:'routes_distance.csv'"`
	FleetFile       string `json:"fleet_file" gorm:"not null;size:255;default:'vehicle_fleet.csv'"`
	PerformanceFile string `json:"performance_file" gorm:"not null;size:255;default:'delivery_performance.csv'"`
	CostFile        string `json:"cost_file" gorm:"not null;size:255;default:'cost_breakdown.csv'"`

	Script        string `json:"script" gorm:"type:text"`                      // 动态执行脚本，用于装载后的行级预处理
	ScriptEnabled bool   `json:"script_enabled" gorm:"not null;default:false"` // 是否启用脚本执行

	LastFingerprint string     `json:"last_fingerprint" gorm:"size:64"` // 最近一次成功运行的文件指纹
	LastRunAt       *time.Time `json:"last_run_at"`

	Status    string    `json:"status" gorm:"not null;default:'active';size:20" example:"active"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CreatedBy string    `json:"created_by" gorm:"not null;default:'system';size:100"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedBy string    `json:"updated_by" gorm:"not null;default:'system';size:100"`

	// 关联关系
	Runs []PipelineRun `json:"runs,omitempty" gorm:"foreignKey:DatasetID"`
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}

// BeforeCreate GORM钩子，创建前生成UUID
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedBy == "" {
		d.CreatedBy = "system"
	}
	if d.UpdatedBy == "" {
		d.UpdatedBy = "system"
	}
	return nil
}

// FilePaths 按装载顺序返回五类数据源文件的完整路径
// 顺序固定为：订单、路线、车队、履约、成本，指纹计算依赖该顺序
func (d *Dataset) FilePaths() []string {
	return []string{
		filepath.Join(d.BaseDir, d.OrdersFile),
		filepath.Join(d.BaseDir, d.RoutesFile),
		filepath.Join(d.BaseDir, d.FleetFile),
		filepath.Join(d.BaseDir, d.PerformanceFile),
		filepath.Join(d.BaseDir, d.CostFile),
	}
}

// FilePathByKind 返回指定类别数据源文件的完整路径
func (d *Dataset) FilePathByKind(kind string) string {
	switch kind {
	case "orders":
		return filepath.Join(d.BaseDir, d.OrdersFile)
	case "routes":
		return filepath.Join(d.BaseDir, d.RoutesFile)
	case "fleet":
		return filepath.Join(d.BaseDir, d.FleetFile)
	case "performance":
		return filepath.Join(d.BaseDir, d.PerformanceFile)
	case "cost":
		return filepath.Join(d.BaseDir, d.CostFile)
	default:
		return ""
	}
}
