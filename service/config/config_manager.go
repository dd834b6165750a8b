/*
 * @module service/config/config_manager
 * @description 配置管理器，负责配置读取、环境变量回退和进程内缓存
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 配置查询 -> 缓存 -> 数据库 -> 环境变量 -> 未命中
 * @rules 数据库配置优先于环境变量，写入后缓存即时更新
 * @dependencies greenroute-service/service/models, gorm.io/gorm
 * @refs service/config/config_service.go
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gorm.io/gorm"

	"greenroute-service/service/models"
)

// ErrConfigNotFound 配置键不存在
var ErrConfigNotFound = errors.New("配置键不存在")

// ConfigManager 配置管理器
type ConfigManager struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]string
}

// NewConfigManager 创建配置管理器
func NewConfigManager(db *gorm.DB) *ConfigManager {
	return &ConfigManager{
		db:    db,
		cache: make(map[string]string),
	}
}

// GetConfig 按键读取配置，查询顺序为缓存、数据库、环境变量
func (c *ConfigManager) GetConfig(key string) (string, error) {
	c.mu.RLock()
	if value, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return value, nil
	}
	c.mu.RUnlock()

	if c.db != nil {
		var record models.SystemConfig
		err := c.db.Where("key = ?", key).First(&record).Error
		if err == nil {
			c.mu.Lock()
			c.cache[key] = record.Value
			c.mu.Unlock()
			return record.Value, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("查询配置失败: %w", err)
		}
	}

	// 环境变量回退，键名大写
	if value := os.Getenv(strings.ToUpper(key)); value != "" {
		return value, nil
	}

	return "", ErrConfigNotFound
}

// SetConfig 写入配置并更新缓存
func (c *ConfigManager) SetConfig(key, value, description string) error {
	if c.db == nil {
		return errors.New("配置存储未初始化")
	}

	record := models.SystemConfig{
		ID:          key,
		Key:         key,
		Value:       value,
		Description: description,
	}

	err := c.db.Where("key = ?", key).
		Assign(map[string]interface{}{"value": value, "description": description}).
		FirstOrCreate(&record).Error
	if err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}

	c.mu.Lock()
	c.cache[key] = value
	c.mu.Unlock()
	return nil
}

// ClearCache 清除配置缓存
func (c *ConfigManager) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.mu.Unlock()
}
