/*
 * @module service/analytics/dashboard_service
 * @description 看板聚合引擎，基于合并结果计算KPI、四类图表数据和治理建议
 * @architecture 引擎模式 - 无状态聚合计算，输入展示层命名的数据表
 * @documentReference ai_docs/greenroute_dashboard_impl.md
 * @stateFlow 展示改名 -> 条件过滤 -> KPI计算 -> 图表聚合 -> 建议生成
 * @rules
 *   - 过滤只影响KPI和图表，治理建议始终基于全量数据
 *   - 分组聚合跳过缺失的分组键
 *   - 排行榜按数值降序，数值相同时按键名升序
 *   - 发货仓和日期列缺失时对应图表数据为空，不报错
 * @dependencies github.com/spf13/cast
 * @refs service/pipeline/merge_engine.go, service/meta/canonical_fields.go
 */

package analytics

import (
	"sort"
	"time"

	"github.com/spf13/cast"

	"greenroute-service/service/meta"
	"greenroute-service/service/pipeline"
	"greenroute-service/service/utils"
)

// 排行榜规模
const (
	topRouteChartSize      = 10 // 柱状图路线数
	topRouteRecommendSize  = 5  // 建议关注的路线数
	topVehicleRecommendMax = 3  // 建议关注的车辆类型数
)

// DashboardService 看板聚合引擎
type DashboardService struct {
	converter *utils.DataConverter
}

// NewDashboardService 创建看板聚合引擎
func NewDashboardService() *DashboardService {
	return &DashboardService{
		converter: utils.NewDataConverter(),
	}
}

// ApplyDisplayNames 应用展示层改名映射，返回改名后的副本
func (s *DashboardService) ApplyDisplayNames(table *pipeline.DataTable, renameMap map[string]string) *pipeline.DataTable {
	display := table.Clone()
	for from, to := range renameMap {
		display.RenameColumn(from, to)
	}
	return display
}

// ApplyFilter 按车辆类型和优先级过滤，空条件或列缺失时不过滤
func (s *DashboardService) ApplyFilter(table *pipeline.DataTable, filter *DashboardFilter) *pipeline.DataTable {
	if filter.IsEmpty() {
		return table
	}

	vehicleSet := toSet(filter.VehicleTypes)
	prioritySet := toSet(filter.Priorities)

	filtered := pipeline.NewDataTable(table.Name, table.Columns)
	for _, row := range table.Rows {
		if len(vehicleSet) > 0 && table.HasColumn(meta.DisplayVehicleType) {
			if !vehicleSet[pipeline.KeyString(row[meta.DisplayVehicleType])] {
				continue
			}
		}
		if len(prioritySet) > 0 && table.HasColumn(meta.DisplayPriority) {
			if !prioritySet[pipeline.KeyString(row[meta.DisplayPriority])] {
				continue
			}
		}
		filtered.Rows = append(filtered.Rows, row)
	}
	return filtered
}

// BuildDashboard 基于展示层数据表构建完整看板数据
// table为已应用展示改名的全量合并结果，过滤只作用于KPI和图表
func (s *DashboardService) BuildDashboard(table *pipeline.DataTable, filter *DashboardFilter) (*DashboardData, error) {
	if table == nil {
		return nil, pipeline.NewUnexpectedError("看板聚合缺少合并结果", nil)
	}

	filtered := s.ApplyFilter(table, filter)

	data := &DashboardData{
		KPI:              s.buildKPI(filtered),
		TopRoutes:        s.topRoutesByEmission(filtered, topRouteChartSize),
		FleetProfiles:    s.buildFleetProfiles(filtered),
		Recommendations:  s.buildRecommendations(table),
		FilterOptions:    s.buildFilterOptions(table),
		FilteredRowCount: filtered.RowCount(),
		TotalRowCount:    table.RowCount(),
		GeneratedAt:      time.Now(),
	}

	// 发货仓份额：列缺失时跳过，不视为错误
	if filtered.HasColumn(meta.DisplayOrigins) {
		data.OriginShares = s.buildOriginShares(filtered)
	}

	// 日趋势：列缺失时跳过
	if filtered.HasColumn(meta.DisplayOrderDate) {
		data.DailyTrend = s.buildDailyTrend(filtered)
	}

	return data, nil
}

// buildKPI 计算关键指标
func (s *DashboardService) buildKPI(table *pipeline.DataTable) KPISummary {
	return KPISummary{
		TotalCO2MT:       s.sumColumn(table, meta.DisplayTotalCO2) / 1000,
		AvgCCPV:          s.meanPositive(table, meta.DisplayCCPV),
		RouteCount:       len(table.DistinctValues(meta.DisplayRouteID)),
		TotalFuelCostINR: s.sumColumn(table, meta.DisplayFuelCost),
		OrderCount:       len(table.DistinctValues(meta.DisplayOrderID)),
	}
}

// topRoutesByEmission 按碳排放聚合路线并取前N名
func (s *DashboardService) topRoutesByEmission(table *pipeline.DataTable, limit int) []RouteEmission {
	groups := s.groupSum(table, meta.DisplayRouteID, meta.DisplayTotalCO2)

	result := make([]RouteEmission, 0, limit)
	for _, g := range groups {
		result = append(result, RouteEmission{RouteID: g.key, TotalCO2Kg: g.value})
		if len(result) == limit {
			break
		}
	}
	return result
}

// buildFleetProfiles 按车辆类型聚合资产画像，结果按类型名升序
func (s *DashboardService) buildFleetProfiles(table *pipeline.DataTable) []FleetProfile {
	type accumulator struct {
		ccpvSum  float64
		ccpvN    int
		ageSum   float64
		ageN     int
		co2Total float64
	}

	order := make([]string, 0)
	acc := make(map[string]*accumulator)

	for _, row := range table.Rows {
		key := row[meta.DisplayVehicleType]
		if pipeline.IsMissing(key) {
			continue
		}
		name := pipeline.KeyString(key)
		a, ok := acc[name]
		if !ok {
			a = &accumulator{}
			acc[name] = a
			order = append(order, name)
		}

		if v, ok := s.asFloat(row[meta.DisplayCCPV]); ok {
			a.ccpvSum += v
			a.ccpvN++
		}
		if v, ok := s.asFloat(row[meta.DisplayVehicleAge]); ok {
			a.ageSum += v
			a.ageN++
		}
		if v, ok := s.asFloat(row[meta.DisplayTotalCO2]); ok {
			a.co2Total += v
		}
	}

	sort.Strings(order)

	profiles := make([]FleetProfile, 0, len(order))
	for _, name := range order {
		a := acc[name]
		profile := FleetProfile{VehicleType: name, TotalCO2Kg: a.co2Total}
		if a.ccpvN > 0 {
			profile.AvgCCPV = a.ccpvSum / float64(a.ccpvN)
		}
		if a.ageN > 0 {
			profile.AvgAgeYears = a.ageSum / float64(a.ageN)
		}
		profiles = append(profiles, profile)
	}
	return profiles
}

// buildOriginShares 按发货仓聚合碳排放份额，结果按仓名升序
func (s *DashboardService) buildOriginShares(table *pipeline.DataTable) []OriginShare {
	groups := make([]OriginShare, 0)
	for _, g := range s.groupSumByKey(table, meta.DisplayOrigins, meta.DisplayTotalCO2) {
		groups = append(groups, OriginShare{Origin: g.key, TotalCO2Kg: g.value})
	}
	return groups
}

// buildDailyTrend 解析下单日期并按天聚合碳排放，无法解析的日期跳过
func (s *DashboardService) buildDailyTrend(table *pipeline.DataTable) []TrendPoint {
	sums := make(map[string]float64)
	keys := make([]string, 0)

	for _, row := range table.Rows {
		dateKey, ok := s.toDateKey(row[meta.DisplayOrderDate])
		if !ok {
			continue
		}
		if _, seen := sums[dateKey]; !seen {
			keys = append(keys, dateKey)
		}
		if v, ok := s.asFloat(row[meta.DisplayTotalCO2]); ok {
			sums[dateKey] += v
		} else {
			sums[dateKey] += 0
		}
	}

	sort.Strings(keys)

	trend := make([]TrendPoint, 0, len(keys))
	for _, key := range keys {
		trend = append(trend, TrendPoint{DateKey: key, TotalCO2Kg: sums[key]})
	}
	return trend
}

// buildRecommendations 基于全量数据生成治理建议
func (s *DashboardService) buildRecommendations(table *pipeline.DataTable) Recommendations {
	rec := Recommendations{
		HighEmissionRoutes:      make([]string, 0, topRouteRecommendSize),
		InefficientVehicleTypes: make([]string, 0, topVehicleRecommendMax),
	}

	for _, route := range s.topRoutesByEmission(table, topRouteRecommendSize) {
		rec.HighEmissionRoutes = append(rec.HighEmissionRoutes, route.RouteID)
	}

	// 车辆类型按CCPV均值降序，均值含零值行
	profiles := s.buildFleetProfiles(table)
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].AvgCCPV != profiles[j].AvgCCPV {
			return profiles[i].AvgCCPV > profiles[j].AvgCCPV
		}
		return profiles[i].VehicleType < profiles[j].VehicleType
	})
	for i, p := range profiles {
		if i == topVehicleRecommendMax {
			break
		}
		rec.InefficientVehicleTypes = append(rec.InefficientVehicleTypes, p.VehicleType)
	}

	return rec
}

// buildFilterOptions 从全量数据提取可选过滤值
func (s *DashboardService) buildFilterOptions(table *pipeline.DataTable) FilterOptions {
	return FilterOptions{
		VehicleTypes: s.distinctStrings(table, meta.DisplayVehicleType),
		Priorities:   s.distinctStrings(table, meta.DisplayPriority),
	}
}

// ==================== 聚合辅助 ====================

type groupValue struct {
	key   string
	value float64
}

// groupSum 分组求和，结果按数值降序，数值相同按键名升序
func (s *DashboardService) groupSum(table *pipeline.DataTable, keyColumn, valueColumn string) []groupValue {
	groups := s.groupSumByKey(table, keyColumn, valueColumn)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].value != groups[j].value {
			return groups[i].value > groups[j].value
		}
		return groups[i].key < groups[j].key
	})
	return groups
}

// groupSumByKey 分组求和，结果按键名升序，缺失的分组键跳过
func (s *DashboardService) groupSumByKey(table *pipeline.DataTable, keyColumn, valueColumn string) []groupValue {
	sums := make(map[string]float64)
	keys := make([]string, 0)

	for _, row := range table.Rows {
		cell := row[keyColumn]
		if pipeline.IsMissing(cell) {
			continue
		}
		key := pipeline.KeyString(cell)
		if _, seen := sums[key]; !seen {
			keys = append(keys, key)
		}
		if v, ok := s.asFloat(row[valueColumn]); ok {
			sums[key] += v
		}
	}

	sort.Strings(keys)

	groups := make([]groupValue, 0, len(keys))
	for _, key := range keys {
		groups = append(groups, groupValue{key: key, value: sums[key]})
	}
	return groups
}

// sumColumn 对列求和，非数值单元格跳过，列缺失时为零
func (s *DashboardService) sumColumn(table *pipeline.DataTable, column string) float64 {
	total := 0.0
	for _, row := range table.Rows {
		if v, ok := s.asFloat(row[column]); ok {
			total += v
		}
	}
	return total
}

// meanPositive 对列中大于零的数值求均值，无正值时为零
func (s *DashboardService) meanPositive(table *pipeline.DataTable, column string) float64 {
	sum := 0.0
	count := 0
	for _, row := range table.Rows {
		if v, ok := s.asFloat(row[column]); ok && v > 0 {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// distinctStrings 去重并升序排序指定列的非缺失值
func (s *DashboardService) distinctStrings(table *pipeline.DataTable, column string) []string {
	values := table.DistinctValues(column)
	result := make([]string, 0, len(values))
	for _, v := range values {
		result = append(result, pipeline.KeyString(v))
	}
	sort.Strings(result)
	return result
}

// toDateKey 单元格转日期键，无法解析时返回false
func (s *DashboardService) toDateKey(cell interface{}) (string, bool) {
	if pipeline.IsMissing(cell) {
		return "", false
	}
	if t, ok := cell.(time.Time); ok {
		return t.Format("2006-01-02"), true
	}

	str := s.converter.ToString(cell)
	if str == "" {
		return "", false
	}
	t, err := s.converter.ParseTime(str, nil)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// asFloat 数值单元格检查转换，缺失和非数值返回false
func (s *DashboardService) asFloat(cell interface{}) (float64, bool) {
	if pipeline.IsMissing(cell) {
		return 0, false
	}
	v, err := cast.ToFloat64E(cell)
	if err != nil {
		return 0, false
	}
	return v, true
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
