/*
 * @module service/analytics/dashboard_service_test
 * @description 看板聚合引擎单元测试
 * @architecture 测试层 - 内存数据表输入到看板数据输出的验证
 * @documentReference ai_docs/greenroute_dashboard_impl.md
 * @stateFlow 数据表构造 -> 聚合计算 -> 指标与排序断言
 * @rules 确保KPI口径、排行榜排序、过滤隔离和建议全量口径的正确性
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs dashboard_service.go
 */

package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenroute-service/service/meta"
	"greenroute-service/service/pipeline"
)

// buildDisplayTable 构造展示层命名的测试数据表
func buildDisplayTable() *pipeline.DataTable {
	columns := []string{
		meta.DisplayOrderID, meta.DisplayRouteID, meta.DisplayVehicleType,
		meta.DisplayPriority, meta.DisplayTotalCO2, meta.DisplayCCPV,
		meta.DisplayVehicleAge, meta.DisplayFuelCost, meta.DisplayOrigins, meta.DisplayOrderDate,
	}
	table := pipeline.NewDataTable("display", columns)

	addRow := func(id, route, vehicle, priority string, co2, ccpv, age, cost float64, origin, date string) {
		table.Rows = append(table.Rows, map[string]interface{}{
			meta.DisplayOrderID:     id,
			meta.DisplayRouteID:     route,
			meta.DisplayVehicleType: vehicle,
			meta.DisplayPriority:    priority,
			meta.DisplayTotalCO2:    co2,
			meta.DisplayCCPV:        ccpv,
			meta.DisplayVehicleAge:  age,
			meta.DisplayFuelCost:    cost,
			meta.DisplayOrigins:     origin,
			meta.DisplayOrderDate:   date,
		})
	}

	addRow("ORD-1", "R1", "Truck", "High", 100, 0.5, 4, 1000, "Delhi", "2024-01-15")
	addRow("ORD-2", "R1", "Truck", "Low", 200, 0, 6, 2000, "Delhi", "2024-01-15")
	addRow("ORD-3", "R2", "Van", "High", 400, 0.3, 2, 500, "Mumbai", "2024-01-16")
	addRow("ORD-4", "R3", "EV", "Low", 50, 0.1, 1, 300, "Mumbai", "not-a-date")

	return table
}

func TestDashboardService_BuildKPI(t *testing.T) {
	s := NewDashboardService()

	data, err := s.BuildDashboard(buildDisplayTable(), nil)
	require.NoError(t, err)

	// 总碳排放 750kg -> 0.75MT
	assert.InDelta(t, 0.75, data.KPI.TotalCO2MT, 1e-9)
	// CCPV均值只统计正值：(0.5+0.3+0.1)/3
	assert.InDelta(t, 0.3, data.KPI.AvgCCPV, 1e-9)
	assert.Equal(t, 3, data.KPI.RouteCount)
	assert.InDelta(t, 3800, data.KPI.TotalFuelCostINR, 1e-9)
	assert.Equal(t, 4, data.KPI.OrderCount)

	assert.Equal(t, 4, data.TotalRowCount)
	assert.Equal(t, 4, data.FilteredRowCount)
}

func TestDashboardService_TopRoutesOrdering(t *testing.T) {
	s := NewDashboardService()

	data, err := s.BuildDashboard(buildDisplayTable(), nil)
	require.NoError(t, err)

	// R2=400 > R1=300 > R3=50
	require.Len(t, data.TopRoutes, 3)
	assert.Equal(t, "R2", data.TopRoutes[0].RouteID)
	assert.InDelta(t, 400, data.TopRoutes[0].TotalCO2Kg, 1e-9)
	assert.Equal(t, "R1", data.TopRoutes[1].RouteID)
	assert.InDelta(t, 300, data.TopRoutes[1].TotalCO2Kg, 1e-9)
	assert.Equal(t, "R3", data.TopRoutes[2].RouteID)
}

func TestDashboardService_TopRoutesTieBreak(t *testing.T) {
	s := NewDashboardService()

	table := pipeline.NewDataTable("display", []string{meta.DisplayRouteID, meta.DisplayTotalCO2})
	table.Rows = []map[string]interface{}{
		{meta.DisplayRouteID: "RB", meta.DisplayTotalCO2: float64(10)},
		{meta.DisplayRouteID: "RA", meta.DisplayTotalCO2: float64(10)},
	}

	routes := s.topRoutesByEmission(table, 10)
	require.Len(t, routes, 2)
	// 数值相同时按键名升序
	assert.Equal(t, "RA", routes[0].RouteID)
	assert.Equal(t, "RB", routes[1].RouteID)
}

func TestDashboardService_FleetProfiles(t *testing.T) {
	s := NewDashboardService()

	data, err := s.BuildDashboard(buildDisplayTable(), nil)
	require.NoError(t, err)

	// 按类型名升序：EV, Truck, Van
	require.Len(t, data.FleetProfiles, 3)
	assert.Equal(t, "EV", data.FleetProfiles[0].VehicleType)
	assert.Equal(t, "Truck", data.FleetProfiles[1].VehicleType)
	assert.Equal(t, "Van", data.FleetProfiles[2].VehicleType)

	// Truck的CCPV均值包含零值行：(0.5+0)/2
	truck := data.FleetProfiles[1]
	assert.InDelta(t, 0.25, truck.AvgCCPV, 1e-9)
	assert.InDelta(t, 5, truck.AvgAgeYears, 1e-9)
	assert.InDelta(t, 300, truck.TotalCO2Kg, 1e-9)
}

func TestDashboardService_OriginShares(t *testing.T) {
	s := NewDashboardService()

	data, err := s.BuildDashboard(buildDisplayTable(), nil)
	require.NoError(t, err)

	require.Len(t, data.OriginShares, 2)
	// 按仓名升序
	assert.Equal(t, "Delhi", data.OriginShares[0].Origin)
	assert.InDelta(t, 300, data.OriginShares[0].TotalCO2Kg, 1e-9)
	assert.Equal(t, "Mumbai", data.OriginShares[1].Origin)
	assert.InDelta(t, 450, data.OriginShares[1].TotalCO2Kg, 1e-9)
}

func TestDashboardService_OriginColumnMissing(t *testing.T) {
	s := NewDashboardService()

	table := buildDisplayTable()
	table.DropColumn(meta.DisplayOrigins)

	data, err := s.BuildDashboard(table, nil)
	require.NoError(t, err)
	assert.Nil(t, data.OriginShares)
}

func TestDashboardService_DailyTrend(t *testing.T) {
	s := NewDashboardService()

	data, err := s.BuildDashboard(buildDisplayTable(), nil)
	require.NoError(t, err)

	// 无法解析的日期行被丢弃，只剩两天
	require.Len(t, data.DailyTrend, 2)
	assert.Equal(t, "2024-01-15", data.DailyTrend[0].DateKey)
	assert.InDelta(t, 300, data.DailyTrend[0].TotalCO2Kg, 1e-9)
	assert.Equal(t, "2024-01-16", data.DailyTrend[1].DateKey)
	assert.InDelta(t, 400, data.DailyTrend[1].TotalCO2Kg, 1e-9)
}

func TestDashboardService_ApplyFilter(t *testing.T) {
	s := NewDashboardService()
	table := buildDisplayTable()

	t.Run("按车辆类型过滤", func(t *testing.T) {
		filtered := s.ApplyFilter(table, &DashboardFilter{VehicleTypes: []string{"Truck"}})
		assert.Equal(t, 2, filtered.RowCount())
	})

	t.Run("车辆与优先级组合过滤", func(t *testing.T) {
		filtered := s.ApplyFilter(table, &DashboardFilter{
			VehicleTypes: []string{"Truck"},
			Priorities:   []string{"High"},
		})
		assert.Equal(t, 1, filtered.RowCount())
	})

	t.Run("空条件不过滤", func(t *testing.T) {
		filtered := s.ApplyFilter(table, &DashboardFilter{})
		assert.Equal(t, 4, filtered.RowCount())
	})
}

func TestDashboardService_RecommendationsIgnoreFilter(t *testing.T) {
	s := NewDashboardService()

	filter := &DashboardFilter{VehicleTypes: []string{"EV"}}
	data, err := s.BuildDashboard(buildDisplayTable(), filter)
	require.NoError(t, err)

	// KPI受过滤影响
	assert.Equal(t, 1, data.KPI.OrderCount)

	// 建议基于全量数据：路线按碳排放降序
	assert.Equal(t, []string{"R2", "R1", "R3"}, data.Recommendations.HighEmissionRoutes)
	// 车辆类型按CCPV均值降序：Van 0.3 > Truck 0.25 > EV 0.1
	assert.Equal(t, []string{"Van", "Truck", "EV"}, data.Recommendations.InefficientVehicleTypes)
}

func TestDashboardService_FilterOptions(t *testing.T) {
	s := NewDashboardService()

	data, err := s.BuildDashboard(buildDisplayTable(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"EV", "Truck", "Van"}, data.FilterOptions.VehicleTypes)
	assert.Equal(t, []string{"High", "Low"}, data.FilterOptions.Priorities)
}

func TestDashboardService_ApplyDisplayNames(t *testing.T) {
	s := NewDashboardService()

	table := pipeline.NewDataTable("final", []string{"id", "total_co2_kg"})
	table.Rows = []map[string]interface{}{{"id": "A", "total_co2_kg": float64(1)}}

	display := s.ApplyDisplayNames(table, map[string]string{"id": "ID", "total_co2_kg": "Total_CO2_kg"})

	assert.Equal(t, []string{"ID", "Total_CO2_kg"}, display.Columns)
	assert.Equal(t, "A", display.Rows[0]["ID"])
	// 原表不受影响
	assert.Equal(t, []string{"id", "total_co2_kg"}, table.Columns)
}

func TestDashboardService_AvgCCPVNoPositiveRows(t *testing.T) {
	s := NewDashboardService()

	table := pipeline.NewDataTable("display", []string{meta.DisplayOrderID, meta.DisplayRouteID, meta.DisplayTotalCO2, meta.DisplayCCPV, meta.DisplayFuelCost, meta.DisplayVehicleType, meta.DisplayPriority})
	table.Rows = []map[string]interface{}{
		{meta.DisplayOrderID: "A", meta.DisplayRouteID: "R1", meta.DisplayTotalCO2: float64(10), meta.DisplayCCPV: float64(0), meta.DisplayFuelCost: float64(1), meta.DisplayVehicleType: "Truck", meta.DisplayPriority: "High"},
	}

	data, err := s.BuildDashboard(table, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), data.KPI.AvgCCPV)
}
