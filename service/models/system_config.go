/*
 * @module service/models/system_config
 * @description 系统配置模型，用于存储运行保留天数、缓存TTL、刷新间隔等可变配置项
 * @architecture 数据模型层
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 配置存储 -> 配置读取 -> 配置更新
 * @rules 配置键全局唯一，数据库配置优先于环境变量默认值
 * @dependencies gorm.io/gorm
 * @refs service/config/config_service.go
 */

package models

import (
	"time"
)

// SystemConfigItem 配置项视图，包含默认值合成后的展示信息
type SystemConfigItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
	ValueType   string `json:"value_type"`
}

// SystemConfig 系统配置模型
type SystemConfig struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SystemConfig) TableName() string {
	return "system_configs"
}
