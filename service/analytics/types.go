/*
 * @module service/analytics/types
 * @description 看板聚合相关类型定义，包括过滤条件、KPI汇总、图表数据和治理建议
 * @architecture 数据传输对象层
 * @documentReference ai_docs/greenroute_dashboard_impl.md
 * @stateFlow 合并结果 -> 过滤 -> 聚合 -> 看板数据
 * @rules 所有图表数据均为有序切片，顺序即展示顺序
 * @dependencies time
 * @refs dashboard_service.go
 */

package analytics

import "time"

// ==================== 过滤相关 ====================

// DashboardFilter 看板过滤条件，空切片表示不过滤
type DashboardFilter struct {
	VehicleTypes []string `json:"vehicle_types"` // 车辆类型过滤
	Priorities   []string `json:"priorities"`    // 订单优先级过滤
}

// IsEmpty 判断过滤条件是否为空
func (f *DashboardFilter) IsEmpty() bool {
	return f == nil || (len(f.VehicleTypes) == 0 && len(f.Priorities) == 0)
}

// FilterOptions 可选过滤值，来自全量数据的去重排序结果
type FilterOptions struct {
	VehicleTypes []string `json:"vehicle_types"`
	Priorities   []string `json:"priorities"`
}

// ==================== KPI汇总 ====================

// KPISummary 关键指标汇总
type KPISummary struct {
	TotalCO2MT       float64 `json:"total_co2_mt"`        // 碳排放总量（公吨）
	AvgCCPV          float64 `json:"avg_ccpv"`            // 正值单均碳价值成本均值
	RouteCount       int     `json:"route_count"`         // 去重路线数
	TotalFuelCostINR float64 `json:"total_fuel_cost_inr"` // 燃料/人工/维护成本合计
	OrderCount       int     `json:"order_count"`         // 去重订单数
}

// ==================== 图表数据 ====================

// RouteEmission 单条路线的碳排放聚合
type RouteEmission struct {
	RouteID    string  `json:"route_id"`
	TotalCO2Kg float64 `json:"total_co2_kg"`
}

// FleetProfile 单个车辆类型的资产效率画像
type FleetProfile struct {
	VehicleType string  `json:"vehicle_type"`
	AvgCCPV     float64 `json:"avg_ccpv"`
	AvgAgeYears float64 `json:"avg_age_years"`
	TotalCO2Kg  float64 `json:"total_co2_kg"`
}

// OriginShare 单个发货仓的碳排放份额
type OriginShare struct {
	Origin     string  `json:"origin"`
	TotalCO2Kg float64 `json:"total_co2_kg"`
}

// TrendPoint 单日碳排放趋势点
type TrendPoint struct {
	DateKey    string  `json:"date_key"` // 形如 2024-01-15
	TotalCO2Kg float64 `json:"total_co2_kg"`
}

// ==================== 治理建议 ====================

// Recommendations 治理建议，始终基于全量数据计算，不受过滤条件影响
type Recommendations struct {
	HighEmissionRoutes      []string `json:"high_emission_routes"`      // 碳排放最高的前五条路线
	InefficientVehicleTypes []string `json:"inefficient_vehicle_types"` // CCPV均值最高的前三类车辆
}

// ==================== 看板聚合结果 ====================

// DashboardData 看板完整数据
type DashboardData struct {
	KPI             KPISummary      `json:"kpi"`
	TopRoutes       []RouteEmission `json:"top_routes"`     // 碳排放前十路线，柱状图
	FleetProfiles   []FleetProfile  `json:"fleet_profiles"` // 车辆资产画像，散点图
	OriginShares    []OriginShare   `json:"origin_shares,omitempty"`
	DailyTrend      []TrendPoint    `json:"daily_trend,omitempty"`
	Recommendations Recommendations `json:"recommendations"`
	FilterOptions   FilterOptions   `json:"filter_options"`

	FilteredRowCount int       `json:"filtered_row_count"`
	TotalRowCount    int       `json:"total_row_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}
