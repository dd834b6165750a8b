/*
 * @module service/meta/dataset_kinds
 * @description 数据集类型常量定义，统一管理五个物流数据源的类型、默认文件名和展示名称
 * @architecture 常量层 - 元数据定义
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 常量定义 -> 验证函数 -> 业务逻辑使用
 * @rules 统一管理所有数据集类型相关的常量，确保类型安全
 * @dependencies 无外部依赖
 * @refs service/models, service/loader
 */

package meta

// 数据集类型常量
const (
	// DatasetKindOrders 订单数据集
	DatasetKindOrders = "orders"

	// DatasetKindRoutes 路线距离数据集
	DatasetKindRoutes = "routes"

	// DatasetKindFleet 车队档案数据集
	DatasetKindFleet = "fleet"

	// DatasetKindPerformance 配送绩效数据集
	DatasetKindPerformance = "performance"

	// DatasetKindCost 成本明细数据集
	DatasetKindCost = "cost"
)

// DatasetDefaultFiles 各数据集类型的默认文件名
var DatasetDefaultFiles = map[string]string{
	DatasetKindOrders:      "orders.csv",
	DatasetKindRoutes:      "routes_distance.csv",
	DatasetKindFleet:       "vehicle_fleet.csv",
	DatasetKindPerformance: "delivery_performance.csv",
	DatasetKindCost:        "cost_breakdown.csv",
}

// DatasetDisplayNames 数据集类型显示名称映射
var DatasetDisplayNames = map[string]string{
	DatasetKindOrders:      "物流订单",
	DatasetKindRoutes:      "路线距离",
	DatasetKindFleet:       "车队档案",
	DatasetKindPerformance: "配送绩效",
	DatasetKindCost:        "成本明细",
}

// DatasetDescriptions 数据集类型描述映射
var DatasetDescriptions = map[string]string{
	DatasetKindOrders:      "订单主数据，包含订单价值、发货仓、下单日期和优先级",
	DatasetKindRoutes:      "路线主数据，包含每条路线的运输距离（公里）",
	DatasetKindFleet:       "车辆类型档案，包含单位里程碳排放系数和车龄",
	DatasetKindPerformance: "每个订单的配送结果指标，与订单一对一（或缺失）",
	DatasetKindCost:        "每个订单的燃料/人工/维护成本明细，历史版本列名不统一",
}

// IsValidDatasetKind 验证数据集类型是否有效
func IsValidDatasetKind(kind string) bool {
	_, exists := DatasetDefaultFiles[kind]
	return exists
}

// GetAllDatasetKinds 获取所有数据集类型，按流水线装载顺序返回
func GetAllDatasetKinds() []string {
	return []string{
		DatasetKindOrders,
		DatasetKindRoutes,
		DatasetKindFleet,
		DatasetKindPerformance,
		DatasetKindCost,
	}
}

// GetDatasetDefaultFile 获取数据集类型的默认文件名
func GetDatasetDefaultFile(kind string) string {
	if file, exists := DatasetDefaultFiles[kind]; exists {
		return file
	}
	return ""
}

// GetDatasetDisplayName 获取数据集类型的显示名称
func GetDatasetDisplayName(kind string) string {
	if displayName, exists := DatasetDisplayNames[kind]; exists {
		return displayName
	}
	return "未知数据集"
}
