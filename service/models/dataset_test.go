/*
 * @module service/models/dataset_test
 * @description 数据集模型验证测试
 * @architecture 测试层 - 数据模型验证，确保数据完整性和约束
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 模型创建 -> 字段验证 -> 约束检查 -> 结果断言
 * @rules 确保数据集模型的完整性、文件路径拼接和默认值行为
 * @dependencies testing, testify, gorm
 * @refs dataset.go
 */

package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DatasetModelTestSuite 数据集模型测试套件
type DatasetModelTestSuite struct {
	suite.Suite
	testDB  *ModelTestDB
	factory *ModelTestDataFactory
}

// SetupSuite 设置测试套件
func (suite *DatasetModelTestSuite) SetupSuite() {
	testDB, err := NewModelTestDB()
	suite.Require().NoError(err)
	suite.testDB = testDB
	suite.factory = NewModelTestDataFactory(suite.testDB.DB)
}

// TearDownSuite 清理测试套件
func (suite *DatasetModelTestSuite) TearDownSuite() {
	suite.testDB.Close()
}

// SetupTest 设置每个测试
func (suite *DatasetModelTestSuite) SetupTest() {
	suite.testDB.CleanDB()
}

func (suite *DatasetModelTestSuite) TestDatasetCreation() {
	dataset := &Dataset{
		Name:            "greenroute_default",
		Description:     "默认物流数据集",
		BaseDir:         "./data",
		OrdersFile:      "orders.csv",
		RoutesFile:      "routes_distance.csv",
		FleetFile:       "vehicle_fleet.csv",
		PerformanceFile: "delivery_performance.csv",
		CostFile:        "cost_breakdown.csv",
		Status:          "active",
	}

	err := suite.testDB.DB.Create(dataset).Error
	suite.NoError(err)

	// BeforeCreate钩子应生成UUID和审计字段
	suite.NotEmpty(dataset.ID)
	suite.Equal("system", dataset.CreatedBy)

	var saved Dataset
	err = suite.testDB.DB.First(&saved, "id = ?", dataset.ID).Error
	suite.NoError(err)
	suite.Equal("greenroute_default", saved.Name)
	suite.Equal("orders.csv", saved.OrdersFile)
}

func (suite *DatasetModelTestSuite) TestDatasetNameUnique() {
	first := suite.factory.CreateDataset("./data")

	duplicate := &Dataset{
		Name:    first.Name,
		BaseDir: "./other",
	}
	err := suite.testDB.DB.Create(duplicate).Error
	suite.Error(err)
}

func (suite *DatasetModelTestSuite) TestFilePathsOrder() {
	dataset := &Dataset{
		BaseDir:         "/srv/greenroute",
		OrdersFile:      "orders.csv",
		RoutesFile:      "routes_distance.csv",
		FleetFile:       "vehicle_fleet.csv",
		PerformanceFile: "delivery_performance.csv",
		CostFile:        "cost_breakdown.csv",
	}

	paths := dataset.FilePaths()
	suite.Len(paths, 5)
	suite.Equal(filepath.Join("/srv/greenroute", "orders.csv"), paths[0])
	suite.Equal(filepath.Join("/srv/greenroute", "routes_distance.csv"), paths[1])
	suite.Equal(filepath.Join("/srv/greenroute", "vehicle_fleet.csv"), paths[2])
	suite.Equal(filepath.Join("/srv/greenroute", "delivery_performance.csv"), paths[3])
	suite.Equal(filepath.Join("/srv/greenroute", "cost_breakdown.csv"), paths[4])
}

func (suite *DatasetModelTestSuite) TestFilePathByKind() {
	dataset := &Dataset{BaseDir: "/data", FleetFile: "fleet.csv"}

	suite.Equal(filepath.Join("/data", "fleet.csv"), dataset.FilePathByKind("fleet"))
	suite.Equal("", dataset.FilePathByKind("unknown"))
}

func (suite *DatasetModelTestSuite) TestDatasetScriptFields() {
	dataset := suite.factory.CreateDataset("./data")

	dataset.Script = `func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) { return rows, nil }`
	dataset.ScriptEnabled = true
	err := suite.testDB.DB.Save(dataset).Error
	suite.NoError(err)

	var saved Dataset
	err = suite.testDB.DB.First(&saved, "id = ?", dataset.ID).Error
	suite.NoError(err)
	suite.True(saved.ScriptEnabled)
	suite.Contains(saved.Script, "Transform")
}

func TestDatasetModelSuite(t *testing.T) {
	suite.Run(t, new(DatasetModelTestSuite))
}
