/*
 * @module service/config/config_service
 * @description 配置服务，提供业务层的配置管理功能
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 服务调用 -> 配置管理器 -> 数据库/环境变量/默认值
 * @rules 确保配置操作的业务逻辑正确性
 * @dependencies greenroute-service/service/models, gorm.io/gorm
 * @refs service/config/config_manager.go
 */

package config

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"greenroute-service/service/models"
)

// 系统配置键
const (
	// ConfigKeyRunRetentionDays 流水线运行记录保留天数
	ConfigKeyRunRetentionDays = "run_retention_days"
	// ConfigKeyCacheTTLSeconds 结果缓存过期秒数
	ConfigKeyCacheTTLSeconds = "cache_ttl_seconds"
	// ConfigKeyRefreshCron 数据源刷新检查的 cron 表达式（含秒字段）
	ConfigKeyRefreshCron = "refresh_cron"
)

// 系统配置默认值
const (
	// DefaultRunRetentionDays 运行记录默认保留30天
	DefaultRunRetentionDays = 30
	// DefaultCacheTTLSeconds 结果缓存默认1小时过期
	DefaultCacheTTLSeconds = 3600
	// DefaultRefreshCron 默认每5分钟检查一次数据源变更
	DefaultRefreshCron = "0 */5 * * * *"
)

// ConfigService 配置服务
type ConfigService struct {
	db      *gorm.DB
	manager *ConfigManager
}

// NewConfigService 创建配置服务实例
func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{
		db:      db,
		manager: NewConfigManager(db),
	}
}

// GetSystemConfig 获取系统配置
func (s *ConfigService) GetSystemConfig(key string) (string, error) {
	return s.manager.GetConfig(key)
}

// SetSystemConfig 设置系统配置
func (s *ConfigService) SetSystemConfig(key, value, description string) error {
	return s.manager.SetConfig(key, value, description)
}

// GetAllSystemConfigs 获取所有系统配置
func (s *ConfigService) GetAllSystemConfigs() ([]models.SystemConfigItem, error) {
	// 从数据库获取所有配置
	var configs []models.SystemConfig
	err := s.db.Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("查询配置失败: %w", err)
	}

	// 转换为配置项列表
	items := make([]models.SystemConfigItem, 0, len(configs))
	for _, config := range configs {
		items = append(items, models.SystemConfigItem{
			Key:         config.Key,
			Value:       config.Value,
			Description: config.Description,
			ValueType:   "string", // 简化处理，都当字符串
		})
	}

	// 添加默认配置（如果数据库中不存在）
	existingKeys := make(map[string]bool)
	for _, item := range items {
		existingKeys[item.Key] = true
	}

	if !existingKeys[ConfigKeyRunRetentionDays] {
		items = append(items, models.SystemConfigItem{
			Key:         ConfigKeyRunRetentionDays,
			Value:       strconv.Itoa(DefaultRunRetentionDays),
			Description: "流水线运行记录保存天数",
			ValueType:   "int",
		})
	}

	if !existingKeys[ConfigKeyCacheTTLSeconds] {
		items = append(items, models.SystemConfigItem{
			Key:         ConfigKeyCacheTTLSeconds,
			Value:       strconv.Itoa(DefaultCacheTTLSeconds),
			Description: "合并结果缓存过期秒数",
			ValueType:   "int",
		})
	}

	if !existingKeys[ConfigKeyRefreshCron] {
		items = append(items, models.SystemConfigItem{
			Key:         ConfigKeyRefreshCron,
			Value:       DefaultRefreshCron,
			Description: "数据源刷新检查的 cron 表达式",
			ValueType:   "string",
		})
	}

	return items, nil
}

// GetRunRetentionDays 获取运行记录保留天数
func (s *ConfigService) GetRunRetentionDays() (int, error) {
	valueStr, err := s.manager.GetConfig(ConfigKeyRunRetentionDays)
	if err != nil {
		return DefaultRunRetentionDays, nil // 返回默认值
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return DefaultRunRetentionDays, nil // 解析失败返回默认值
	}

	return value, nil
}

// GetCacheTTLSeconds 获取结果缓存过期秒数
func (s *ConfigService) GetCacheTTLSeconds() (int, error) {
	valueStr, err := s.manager.GetConfig(ConfigKeyCacheTTLSeconds)
	if err != nil {
		return DefaultCacheTTLSeconds, nil // 返回默认值
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return DefaultCacheTTLSeconds, nil // 解析失败返回默认值
	}

	return value, nil
}

// GetCacheTTL 获取结果缓存过期时长
func (s *ConfigService) GetCacheTTL() time.Duration {
	seconds, _ := s.GetCacheTTLSeconds()
	return time.Duration(seconds) * time.Second
}

// GetRefreshCron 获取数据源刷新检查的 cron 表达式
func (s *ConfigService) GetRefreshCron() (string, error) {
	valueStr, err := s.manager.GetConfig(ConfigKeyRefreshCron)
	if err != nil || valueStr == "" {
		return DefaultRefreshCron, nil // 返回默认值
	}
	return valueStr, nil
}

// ClearCache 清除配置缓存
func (s *ConfigService) ClearCache() {
	s.manager.ClearCache()
}
