/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第10节
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"greenroute-service/service/models"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 内存库按连接隔离，多连接会各自拿到独立的空库
	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to access underlying database: %v", err))
	}
	sqlDB.SetMaxOpenConns(1)

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Dataset{},
		&models.PipelineRun{},
		&models.PipelineEvent{},
		&models.ApiKey{},
		&models.SystemConfig{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
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
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// DatasetOption 数据集选项函数类型
type DatasetOption func(*models.Dataset)

// CreateDataset 创建测试数据集
func (f *TestDataFactory) CreateDataset(baseDir string, opts ...DatasetOption) *models.Dataset {
	dataset := &models.Dataset{
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

	// 应用选项
	for _, opt := range opts {
		opt(dataset)
	}

	err := f.DB.Create(dataset).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test dataset: %v", err))
	}

	return dataset
}

// PipelineRunOption 运行记录选项函数类型
type PipelineRunOption func(*models.PipelineRun)

// CreatePipelineRun 创建测试运行记录
func (f *TestDataFactory) CreatePipelineRun(datasetID string, opts ...PipelineRunOption) *models.PipelineRun {
	run := &models.PipelineRun{
		ID:          generateID("run"),
		DatasetID:   datasetID,
		TriggerType: models.RunTriggerManual,
		Status:      models.RunStatusRunning,
		StartedAt:   time.Now(),
		CreatedBy:   "test",
		CreatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(run)
	}

	err := f.DB.Create(run).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test pipeline run: %v", err))
	}

	return run
}

// ApiKeyOption API密钥选项函数类型
type ApiKeyOption func(*models.ApiKey)

// CreateApiKey 创建测试API密钥
func (f *TestDataFactory) CreateApiKey(opts ...ApiKeyOption) *models.ApiKey {
	apiKey := &models.ApiKey{
		ID:           generateID("ak"),
		Name:         "测试API密钥",
		KeyPrefix:    "grk_test",
		KeyValueHash: "test_key_hash_" + generateSuffix(),
		Description:  "这是一个测试API密钥",
		Scopes:       models.JSONBStringArray{models.ApiKeyScopeRead},
		Status:       "active",
		CreatedBy:    "test",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(apiKey)
	}

	err := f.DB.Create(apiKey).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test api key: %v", err))
	}

	return apiKey
}

// SystemConfigOption 系统配置选项函数类型
type SystemConfigOption func(*models.SystemConfig)

// CreateSystemConfig 创建测试系统配置
func (f *TestDataFactory) CreateSystemConfig(key, value string, opts ...SystemConfigOption) *models.SystemConfig {
	config := &models.SystemConfig{
		ID:          key,
		Key:         key,
		Value:       value,
		Description: "测试配置项",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(config)
	}

	err := f.DB.Create(config).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test system config: %v", err))
	}

	return config
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

// === CSV测试夹具 ===

// WriteCSVFile 写入一份CSV文件，表头加数据行
func WriteCSVFile(path string, header []string, rows [][]string) {
	var sb strings.Builder
	sb.WriteString(strings.Join(header, ","))
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString(strings.Join(row, ","))
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		panic(fmt.Sprintf("failed to write csv fixture %s: %v", path, err))
	}
}

// WriteCSVFixtures 在目录下写入五份标准测试CSV
// 表头保留原始脏格式（空格/括号/混合大小写），订单价值带货币符号，
// 成本表含重复订单号，绩效表缺一个订单，用于覆盖清洗和缺失值路径
func WriteCSVFixtures(dir string) {
	WriteCSVFile(filepath.Join(dir, "orders.csv"),
		[]string{"Order ID", "Route_ID", "Origin", "Order Date", "Priority", "Order_Value (INR)"},
		[][]string{
			{"ORD-1001", "RT-01", "Mumbai_WH", "2024-01-15", "High", "$52,340.50"},
			{"ORD-1002", "RT-02", "Delhi_WH", "2024-01-16", "Medium", "$18,200.00"},
			{"ORD-1003", "RT-01", "Mumbai_WH", "2024-01-17", "Low", "$7,650.25"},
			{"ORD-1004", "RT-03", "Chennai_WH", "2024-01-18", "High", "$31,480.00"},
			{"ORD-1005", "RT-02", "Delhi_WH", "2024-01-19", "Express", "$94,100.75"},
		})

	WriteCSVFile(filepath.Join(dir, "routes_distance.csv"),
		[]string{"Route", "Distance_km", "Origin_Hub", "Destination_City"},
		[][]string{
			{"RT-01", "412.5", "Mumbai", "Pune"},
			{"RT-02", "1480.0", "Delhi", "Jaipur"},
			{"RT-03", "655.3", "Chennai", "Bangalore"},
		})

	WriteCSVFile(filepath.Join(dir, "vehicle_fleet.csv"),
		[]string{"Vehicle_Type", "CO2_Emissions_kg_per_km", "Age_Years", "Fuel_Type"},
		[][]string{
			{"Diesel_Truck", "0.82", "6", "Diesel"},
			{"CNG_Truck", "0.45", "3", "CNG"},
			{"EV_Van", "0.05", "1", "Electric"},
		})

	// ORD-1005无绩效记录，左连接后为缺失值
	WriteCSVFile(filepath.Join(dir, "delivery_performance.csv"),
		[]string{"Order_ID", "Delivery_Time_Days", "Delivery_Status", "Customer_Rating"},
		[][]string{
			{"ORD-1001", "3", "Delivered", "4.5"},
			{"ORD-1002", "7", "Delivered", "3.8"},
			{"ORD-1003", "4", "Delayed", "2.9"},
			{"ORD-1004", "5", "Delivered", "4.1"},
		})

	// ORD-1004重复两行，去重后保留第一行的成本值
	WriteCSVFile(filepath.Join(dir, "cost_breakdown.csv"),
		[]string{"Order_ID", "Fuel_Labor_Maintenance_Costs", "Toll_Charges"},
		[][]string{
			{"ORD-1001", "8420.00", "350.00"},
			{"ORD-1002", "21600.50", "980.00"},
			{"ORD-1003", "5100.75", "210.00"},
			{"ORD-1004", "11800.00", "460.00"},
			{"ORD-1004", "99999.99", "999.99"},
			{"ORD-1005", "30250.25", "1240.00"},
		})
}

// MockEventPublisher Mock事件发布器
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, event *models.PipelineEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// TestConfig 测试配置
type TestConfig struct {
	Database struct {
		Driver string
		DSN    string
	}
	Timeout time.Duration
	Cleanup bool
}

// DefaultTestConfig 默认测试配置
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		Database: struct {
			Driver string
			DSN    string
		}{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Timeout: 30 * time.Second,
		Cleanup: true,
	}
}

// TestTransaction 测试事务辅助工具
type TestTransaction struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewTestTransaction 创建测试事务
func NewTestTransaction(db *gorm.DB) *TestTransaction {
	tx := db.Begin()
	return &TestTransaction{
		db: db,
		tx: tx,
	}
}

// DB 获取事务数据库
func (tt *TestTransaction) DB() *gorm.DB {
	return tt.tx
}

// Commit 提交事务
func (tt *TestTransaction) Commit() {
	tt.tx.Commit()
}

// Rollback 回滚事务
func (tt *TestTransaction) Rollback() {
	tt.tx.Rollback()
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
