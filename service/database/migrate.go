/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/model.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies greenroute-service/service/models, gorm.io/gorm
 * @refs dev_docs/backend_requirements.md
 */

package database

import (
	"log"

	"gorm.io/gorm"

	"greenroute-service/service/config"
	"greenroute-service/service/models"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 数据集与运行记录相关表
	err := db.AutoMigrate(
		&models.Dataset{},
		&models.PipelineRun{},
	)
	if err != nil {
		return err
	}

	// 事件与接入控制相关表
	err = db.AutoMigrate(
		&models.PipelineEvent{},
		&models.ApiKey{},
	)
	if err != nil {
		return err
	}

	// 系统配置表
	err = db.AutoMigrate(
		&models.SystemConfig{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据，缺失的系统配置项写入默认值
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	defaults := []models.SystemConfig{
		{
			ID:          config.ConfigKeyRunRetentionDays,
			Key:         config.ConfigKeyRunRetentionDays,
			Value:       "30",
			Description: "运行记录和事件的保留天数",
		},
		{
			ID:          config.ConfigKeyCacheTTLSeconds,
			Key:         config.ConfigKeyCacheTTLSeconds,
			Value:       "3600",
			Description: "合并结果缓存的过期秒数",
		},
		{
			ID:          config.ConfigKeyRefreshCron,
			Key:         config.ConfigKeyRefreshCron,
			Value:       config.DefaultRefreshCron,
			Description: "数据源变更检测的cron表达式",
		},
	}

	for _, item := range defaults {
		record := item
		if err := db.Where("key = ?", item.Key).FirstOrCreate(&record).Error; err != nil {
			log.Printf("初始化配置项 %s 失败: %v", item.Key, err)
			return err
		}
	}

	log.Println("基础数据初始化完成")
	return nil
}
