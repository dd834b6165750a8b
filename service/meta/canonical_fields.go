/*
 * @module service/meta/canonical_fields
 * @description 规范字段名与历史别名定义，统一管理键解析候选列表和展示层改名映射
 * @architecture 常量层 - 元数据定义
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 常量定义 -> 键解析 -> 合并流水线 -> 展示层改名
 * @rules 别名列表按优先级排序，解析按顺序取第一个命中的列名
 * @dependencies 无外部依赖
 * @refs service/pipeline/key_resolver.go, service/analytics
 */

package meta

// 规范字段名常量，合并流水线内部统一使用这些名称
const (
	// FieldOrderID 订单主键，三个数据集（订单/成本/绩效）的合并键
	FieldOrderID = "id"

	// FieldRouteID 路线主键
	FieldRouteID = "route_id"

	// FieldVehicleType 车辆类型，车队档案的合并键
	FieldVehicleType = "vehicle_type"

	// FieldAssignedVehicleType 合成的车辆分配列
	FieldAssignedVehicleType = "assigned_vehicle_type"

	// FieldDistanceKm 路线距离（公里）
	FieldDistanceKm = "distance_km"

	// FieldCO2Factor 单位里程碳排放系数（kg/km）
	FieldCO2Factor = "co2_emissions_kg_per_km"

	// FieldAgeYears 车龄（年）
	FieldAgeYears = "age_years"

	// FieldOrderValue 订单价值（数值化之后的列）
	FieldOrderValue = "order_value_usd"

	// FieldOrderValueCleaned 订单价值去符号后的中间列
	FieldOrderValueCleaned = "order_value_cleaned"

	// FieldCostColumn 燃料/人工/维护成本的规范列名
	FieldCostColumn = "fuel_labor_maintenance_costs_inr"

	// FieldTotalCO2 派生指标：单均碳排放总量（kg）
	FieldTotalCO2 = "total_co2_kg"

	// FieldCCPV 派生指标：单位订单价值碳成本
	FieldCCPV = "carbon_cost_per_value"

	// FieldPriority 订单优先级
	FieldPriority = "priority"
)

// OrderIDAliases 订单主键的历史别名，按优先级排序
var OrderIDAliases = []string{"order_id", "orderid", "order_id_"}

// RouteIDAliases 路线主键的历史别名
var RouteIDAliases = []string{"route"}

// CostColumnAliases 成本列的历史别名
var CostColumnAliases = []string{"fuel_labor_maintenance_costs"}

// CostColumnMarkers 成本列兜底匹配的子串标记，列名包含任一标记即视为成本列
var CostColumnMarkers = []string{"labor", "fuel"}

// OrderValueMarkers 订单价值列的识别子串，列名需同时包含全部标记
var OrderValueMarkers = []string{"order_value", "inr"}

// 展示层标题化列名，看板聚合和CSV导出使用
const (
	DisplayOrderID      = "ID"
	DisplayRouteID      = "Route_ID"
	DisplayVehicleType  = "Vehicle_Type"
	DisplayPriority     = "Priority_Levels"
	DisplayDeliveryCost = "Delivery_Cost_INR"
	DisplayTotalCO2     = "Total_CO2_kg"
	DisplayCCPV         = "Carbon_Cost_Per_Value"
	DisplayDistanceKm   = "Distance_km"
	DisplayVehicleAge   = "Vehicle_Age"
	DisplayFuelCost     = "Fuel_Labor_Maintenance_Costs_INR"
)

// DisplayRenameBase 展示层改名映射的固定部分，键为规范列名，值为标题化列名
var DisplayRenameBase = map[string]string{
	"id":                               DisplayOrderID,
	"route_id":                         DisplayRouteID,
	"vehicle_type":                     DisplayVehicleType,
	"priority":                         DisplayPriority,
	"delivery_cost_inr":                DisplayDeliveryCost,
	"total_co2_kg":                     DisplayTotalCO2,
	"carbon_cost_per_value":            DisplayCCPV,
	"distance_km":                      DisplayDistanceKm,
	"age_years":                        DisplayVehicleAge,
	"fuel_labor_maintenance_costs_inr": DisplayFuelCost,
}

// OriginAliases 发货仓列的候选名，历史文件中出现过单复数两种写法
var OriginAliases = []string{"origin", "origins"}

// OrderDateAliases 下单日期列的候选名，历史文件中存在截断的列头
var OrderDateAliases = []string{"order_dat", "order_date"}

// 展示层固定列名
const (
	// DisplayOrigins 发货仓展示列名
	DisplayOrigins = "Origins"

	// DisplayOrderDate 下单日期展示列名
	DisplayOrderDate = "Order_Date"

	// DisplayDateKey 日趋势图使用的日期键列名
	DisplayDateKey = "Date_Key"
)

// BuildDisplayRenameMap 根据实际存在的列构造展示层改名映射，
// 仅包含输出关系中真实存在的键，发货仓和日期列按候选顺序取第一个命中者
func BuildDisplayRenameMap(columns []string) map[string]string {
	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[col] = true
	}

	renameMap := make(map[string]string)
	for from, to := range DisplayRenameBase {
		if present[from] {
			renameMap[from] = to
		}
	}

	for _, alias := range OriginAliases {
		if present[alias] {
			renameMap[alias] = DisplayOrigins
			break
		}
	}

	for _, alias := range OrderDateAliases {
		if present[alias] {
			renameMap[alias] = DisplayOrderDate
			break
		}
	}

	return renameMap
}
