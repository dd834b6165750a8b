/*
 * @module service/pipeline_service_test
 * @description 流水线服务集成测试，使用真实CSV夹具验证装载合并、缓存命中、
 *              指纹变更重算、失败记录和脚本钩子
 * @architecture 测试层 - 内存SQLite + 内存缓存 + 临时目录CSV
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第10节
 * @stateFlow 写入夹具 -> 触发运行 -> 验证运行记录/缓存/事件副作用
 * @rules 同一指纹的重复请求不得触发重复计算
 * @dependencies github.com/stretchr/testify
 * @refs pipeline_service.go
 */

package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenroute-service/service/analytics"
	"greenroute-service/service/cache"
	"greenroute-service/service/config"
	"greenroute-service/service/models"
	"greenroute-service/service/pipeline"
	"greenroute-service/testutil"
)

func setupPipelineService(t *testing.T) (*PipelineService, *testutil.TestDB, *models.Dataset) {
	t.Helper()
	testDB := testutil.NewTestDB()
	t.Cleanup(func() { testDB.Close() })

	dir := t.TempDir()
	testutil.WriteCSVFixtures(dir)

	factory := testutil.NewTestDataFactory(testDB.DB)
	dataset := factory.CreateDataset(dir)

	service := NewPipelineService(testDB.DB, cache.NewMemoryResultCache(), nil, config.NewConfigService(testDB.DB))
	return service, testDB, dataset
}

func countRuns(t *testing.T, testDB *testutil.TestDB, datasetID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, testDB.DB.Model(&models.PipelineRun{}).Where("dataset_id = ?", datasetID).Count(&count).Error)
	return count
}

func TestPipelineServiceRun(t *testing.T) {
	service, testDB, dataset := setupPipelineService(t)
	ctx := context.Background()

	run, err := service.Run(ctx, dataset.ID, models.RunTriggerManual, false)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Equal(t, 5, run.RowCount)
	assert.Greater(t, run.ColumnCount, 10)
	assert.NotEmpty(t, run.Fingerprint)
	require.NotNil(t, run.FinishedAt)

	// 统计快照经过JSON序列化，数值为float64
	assert.Equal(t, float64(1), run.Statistics["cost_duplicates_dropped"])
	assert.Equal(t, float64(5), run.Statistics["synthesized_vehicle_count"])
	assert.Equal(t, false, run.Statistics["route_synthesized"])

	// 数据集指纹随成功运行更新
	var stored models.Dataset
	require.NoError(t, testDB.DB.First(&stored, "id = ?", dataset.ID).Error)
	assert.Equal(t, run.Fingerprint, stored.LastFingerprint)
	require.NotNil(t, stored.LastRunAt)

	t.Run("数据集不存在时拒绝", func(t *testing.T) {
		_, err := service.Run(ctx, "missing-id", models.RunTriggerManual, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "不存在")
	})
}

func TestPipelineServiceRunFailureRecorded(t *testing.T) {
	service, testDB, _ := setupPipelineService(t)
	ctx := context.Background()

	factory := testutil.NewTestDataFactory(testDB.DB)
	broken := factory.CreateDataset(filepath.Join(t.TempDir(), "nonexistent"),
		func(d *models.Dataset) { d.Name = "缺文件" })

	_, err := service.Run(ctx, broken.ID, models.RunTriggerManual, false)
	require.Error(t, err)

	runs, total, err := service.ListRuns(ctx, 1, 10, broken.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, runs, 1)

	failed := runs[0]
	assert.Equal(t, models.RunStatusFailed, failed.Status)
	assert.Equal(t, string(pipeline.ErrCodeMissingInputFile), failed.ErrorCode)
	assert.NotEmpty(t, failed.ErrorMessage)
	require.NotNil(t, failed.FinishedAt)
}

func TestPipelineServiceCurrentCaching(t *testing.T) {
	service, testDB, dataset := setupPipelineService(t)
	ctx := context.Background()

	first, err := service.Current(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Table.RowCount())
	assert.Equal(t, int64(1), countRuns(t, testDB, dataset.ID))

	// 指纹未变化，第二次请求命中缓存，不触发新运行
	second, err := service.Current(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, int64(1), countRuns(t, testDB, dataset.ID))
}

func TestPipelineServiceRunForce(t *testing.T) {
	service, testDB, dataset := setupPipelineService(t)
	ctx := context.Background()

	first, err := service.Run(ctx, dataset.ID, models.RunTriggerManual, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), countRuns(t, testDB, dataset.ID))

	t.Run("缓存命中返回历史运行记录", func(t *testing.T) {
		cached, err := service.Run(ctx, dataset.ID, models.RunTriggerManual, false)
		require.NoError(t, err)
		assert.Equal(t, first.ID, cached.ID)
		assert.Equal(t, int64(1), countRuns(t, testDB, dataset.ID))
	})

	t.Run("force跳过缓存强制重算", func(t *testing.T) {
		forced, err := service.Run(ctx, dataset.ID, models.RunTriggerManual, true)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, forced.ID)
		assert.Equal(t, first.Fingerprint, forced.Fingerprint)
		assert.Equal(t, int64(2), countRuns(t, testDB, dataset.ID))
	})
}

func TestPipelineServiceCurrentRecomputesOnFileChange(t *testing.T) {
	service, testDB, dataset := setupPipelineService(t)
	ctx := context.Background()

	first, err := service.Current(ctx, dataset.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), countRuns(t, testDB, dataset.ID))

	// 覆盖订单文件，文件大小变化导致指纹变化
	testutil.WriteCSVFile(filepath.Join(dataset.BaseDir, "orders.csv"),
		[]string{"Order ID", "Route_ID", "Priority", "Order_Value (INR)"},
		[][]string{
			{"ORD-2001", "RT-01", "High", "$1,000.00"},
			{"ORD-2002", "RT-02", "Low", "$2,000.00"},
		})

	second, err := service.Current(ctx, dataset.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, 2, second.Table.RowCount())
	assert.Equal(t, int64(2), countRuns(t, testDB, dataset.ID))
}

func TestPipelineServiceCurrentConcurrent(t *testing.T) {
	service, testDB, dataset := setupPipelineService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = service.Current(ctx, dataset.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// 运行锁保证同一指纹只计算一次
	assert.Equal(t, int64(1), countRuns(t, testDB, dataset.ID))
}

func TestPipelineServiceInvalidate(t *testing.T) {
	service, testDB, dataset := setupPipelineService(t)
	ctx := context.Background()

	_, err := service.Current(ctx, dataset.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), countRuns(t, testDB, dataset.ID))

	require.NoError(t, service.InvalidateDataset(ctx, dataset.ID))

	// 缓存清空后同一指纹重新计算
	_, err = service.Current(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), countRuns(t, testDB, dataset.ID))
}

func TestPipelineServicePreview(t *testing.T) {
	service, _, dataset := setupPipelineService(t)
	ctx := context.Background()

	preview, err := service.Preview(ctx, dataset.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, preview.TotalRows)
	assert.Len(t, preview.Rows, 2)
	assert.NotEmpty(t, preview.Fingerprint)

	// 预览使用展示层标题化列名
	assert.Contains(t, preview.Columns, "ID")
	assert.Contains(t, preview.Columns, "Total_CO2_kg")
	assert.Contains(t, preview.Columns, "Carbon_Cost_Per_Value")
	assert.NotContains(t, preview.Columns, "total_co2_kg")
}

func TestPipelineServiceScriptHook(t *testing.T) {
	service, testDB, _ := setupPipelineService(t)
	ctx := context.Background()

	dir := t.TempDir()
	testutil.WriteCSVFixtures(dir)

	factory := testutil.NewTestDataFactory(testDB.DB)
	// 脚本作用于装载后、规范化前的原始行集：按原始列头区分数据源，
	// 对路线表倍增距离，对订单表追加待规范化的新列
	scripted := factory.CreateDataset(dir, func(d *models.Dataset) {
		d.Name = "带脚本"
		d.ScriptEnabled = true
		d.Script = `
func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	for _, row := range rows {
		if v, ok := row["Distance_km"]; ok {
			row["Distance_km"] = v.(float64) * 2
		}
		if _, ok := row["Order ID"]; ok {
			row["Audit Flag"] = "checked"
		}
	}
	return rows, nil
}
`
	})

	result, err := service.Current(ctx, scripted.ID)
	require.NoError(t, err)

	// 脚本新增的原始列头经过规范化进入输出关系
	require.True(t, result.Table.HasColumn("audit_flag"))

	// 倍增后的距离经过合并与指标派生：每行距离等于所属路线距离的两倍，
	// 碳排放总量随之重算
	doubledDistances := map[string]float64{
		"ORD-1001": 825.0, "ORD-1002": 2960.0, "ORD-1003": 825.0,
		"ORD-1004": 1310.6, "ORD-1005": 2960.0,
	}
	for _, row := range result.Table.Rows {
		assert.Equal(t, "checked", row["audit_flag"])

		orderID := row["id"].(string)
		distance := row["distance_km"].(float64)
		assert.InDelta(t, doubledDistances[orderID], distance, 1e-9)

		factor := row["co2_emissions_kg_per_km"].(float64)
		assert.InDelta(t, distance*factor, row["total_co2_kg"].(float64), 1e-9)
	}

	t.Run("脚本损坏时运行失败", func(t *testing.T) {
		brokenDir := t.TempDir()
		testutil.WriteCSVFixtures(brokenDir)
		broken := factory.CreateDataset(brokenDir, func(d *models.Dataset) {
			d.Name = "坏脚本"
			d.ScriptEnabled = true
			d.Script = "func Transform("
		})

		_, err := service.Run(ctx, broken.ID, models.RunTriggerManual, false)
		require.Error(t, err)

		runs, _, listErr := service.ListRuns(ctx, 1, 10, broken.ID, models.RunStatusFailed)
		require.NoError(t, listErr)
		require.Len(t, runs, 1)
		assert.Equal(t, string(pipeline.ErrCodeUnexpected), runs[0].ErrorCode)
	})
}

func TestPipelineServiceDashboardAndExport(t *testing.T) {
	service, _, dataset := setupPipelineService(t)
	ctx := context.Background()

	t.Run("看板聚合", func(t *testing.T) {
		data, err := service.Dashboard(ctx, dataset.ID, nil)
		require.NoError(t, err)

		assert.Equal(t, 5, data.KPI.OrderCount)
		assert.Equal(t, 3, data.KPI.RouteCount)
		assert.Equal(t, 5, data.TotalRowCount)
		assert.NotEmpty(t, data.TopRoutes)
		assert.NotEmpty(t, data.FilterOptions.Priorities)
	})

	t.Run("过滤后导出CSV", func(t *testing.T) {
		data, fileName, err := service.Export(ctx, dataset.ID, &analytics.DashboardFilter{
			Priorities: []string{"High"},
		})
		require.NoError(t, err)
		assert.Equal(t, ExportFileName, fileName)

		content := string(data)
		lines := strings.Split(strings.TrimSpace(content), "\n")
		// 表头 + 两条High订单
		assert.Len(t, lines, 3)
		assert.Contains(t, lines[0], "ID")
		assert.Contains(t, content, "ORD-1001")
		assert.Contains(t, content, "ORD-1004")
		assert.NotContains(t, content, "ORD-1002")
	})
}

func TestPipelineServiceRunQueries(t *testing.T) {
	service, _, dataset := setupPipelineService(t)
	ctx := context.Background()

	run, err := service.Run(ctx, dataset.ID, models.RunTriggerAPI, false)
	require.NoError(t, err)

	t.Run("按ID查询", func(t *testing.T) {
		stored, err := service.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, stored.ID)
		assert.Equal(t, models.RunTriggerAPI, stored.TriggerType)
	})

	t.Run("查询不存在的运行记录报错", func(t *testing.T) {
		_, err := service.GetRun(ctx, "missing-run")
		require.Error(t, err)
	})

	t.Run("按状态过滤", func(t *testing.T) {
		runs, total, err := service.ListRuns(ctx, 1, 10, dataset.ID, models.RunStatusSucceeded)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, runs, 1)
	})
}