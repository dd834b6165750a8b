/*
 * @module service/models/test_utils
 * @description 模型测试辅助工具
 * @architecture 测试基础设施 - 专门为模型测试提供工具
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 避免循环导入，专门为模型层测试提供工具
 * @dependencies gorm, sqlite, time
 */

package models

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ModelTestDB 模型测试数据库配置
type ModelTestDB struct {
	DB *gorm.DB
}

// NewModelTestDB 创建模型测试数据库
func NewModelTestDB() (*ModelTestDB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接测试数据库失败: %w", err)
	}

	// 内存库按连接隔离，多连接会各自拿到独立的空库
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&Dataset{},
		&PipelineRun{},
		&PipelineEvent{},
		&ApiKey{},
		&SystemConfig{},
	)
	if err != nil {
		return nil, fmt.Errorf("迁移测试数据库失败: %w", err)
	}

	return &ModelTestDB{DB: db}, nil
}

// CleanDB 清理数据库
func (tdb *ModelTestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"datasets",
		"pipeline_runs",
		"pipeline_events",
		"api_keys",
		"system_configs",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *ModelTestDB) Close() {
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		fmt.Printf("Error getting underlying DB: %v\n", err)
		return
	}
	sqlDB.Close()
}

// ModelTestDataFactory 模型测试数据工厂
type ModelTestDataFactory struct {
	DB *gorm.DB
}

// NewModelTestDataFactory 创建新的模型测试数据工厂
func NewModelTestDataFactory(db *gorm.DB) *ModelTestDataFactory {
	return &ModelTestDataFactory{DB: db}
}

// CreateDataset 创建测试数据集
func (f *ModelTestDataFactory) CreateDataset(baseDir string) *Dataset {
	dataset := &Dataset{
		ID:              generateID("ds"),
		Name:            "test_dataset_" + generateSuffix(),
		Description:     "这是一个测试数据集",
		BaseDir:         baseDir,
		OrdersFile:      "orders.csv",
		RoutesFile:      "routes_distance.csv",
		FleetFile:       "vehicle_fleet.csv",
		PerformanceFile: "delivery_performance.csv",
		CostFile:        "cost_breakdown.csv",
		Status:          "active",
		CreatedBy:       "test",
		UpdatedBy:       "test",
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	err := f.DB.Create(dataset).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test dataset: %v", err))
	}

	return dataset
}

// CreatePipelineRun 创建测试运行记录
func (f *ModelTestDataFactory) CreatePipelineRun(datasetID string) *PipelineRun {
	run := &PipelineRun{
		ID:          generateID("run"),
		DatasetID:   datasetID,
		TriggerType: RunTriggerManual,
		Status:      RunStatusRunning,
		StartedAt:   time.Now(),
		CreatedBy:   "test",
		CreatedAt:   time.Now(),
	}

	err := f.DB.Create(run).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test pipeline run: %v", err))
	}

	return run
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}
