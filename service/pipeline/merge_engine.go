/*
 * @module service/pipeline/merge_engine
 * @description 合并引擎，编排五个数据源的规范化、键解析、四级左连接与指标派生全流程
 * @architecture 流水线编排 - 单线程批处理，整体成功或整体失败
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 列名规范化 -> 键解析 -> 订单价值数值化 -> 绩效连接 -> 路线连接 ->
 *            车辆连接 -> 成本连接 -> 指标派生 -> 展示改名映射
 * @rules 连接顺序不可调整，后续步骤依赖前序步骤引入的列；
 *        订单主键解析失败立即中止，不产出部分结果
 * @dependencies time
 * @refs join_engine.go, metric_engine.go, service/meta/canonical_fields.go
 */

package pipeline

import (
	"time"

	"greenroute-service/service/meta"
)

// MergeRequest 合并请求，携带装载完成的五个数据源
type MergeRequest struct {
	Orders      *DataTable `json:"orders"`      // 订单
	Routes      *DataTable `json:"routes"`      // 路线距离
	Fleet       *DataTable `json:"fleet"`       // 车队档案
	Performance *DataTable `json:"performance"` // 配送绩效
	Cost        *DataTable `json:"cost"`        // 成本明细
}

// MergeStatistics 合并执行统计
type MergeStatistics struct {
	SourceRowCounts         map[string]int `json:"source_row_counts"`         // 各数据源行数
	OutputRowCount          int            `json:"output_row_count"`          // 输出行数
	OutputColumnCount       int            `json:"output_column_count"`       // 输出列数
	DroppedDuplicateColumns int            `json:"dropped_duplicate_columns"` // 规范化重名丢弃列数
	MalformedCurrencyCount  int            `json:"malformed_currency_count"`  // 订单价值解析失败数
	OrderValueDefaulted     bool           `json:"order_value_defaulted"`     // 订单价值列整列缺省
	RouteSynthesized        bool           `json:"route_synthesized"`         // 是否合成了路线分配
	SynthesizedRouteCount   int            `json:"synthesized_route_count"`   // 合成路线分配行数
	SynthesizedVehicleCount int            `json:"synthesized_vehicle_count"` // 合成车辆分配行数
	CostDuplicatesDropped   int            `json:"cost_duplicates_dropped"`   // 成本去重丢弃行数
	ImputedDistanceCount    int            `json:"imputed_distance_count"`    // 距离均值填补行数
	ImputedCO2Count         int            `json:"imputed_co2_count"`         // 排放系数均值填补行数
	ZeroDivisorCount        int            `json:"zero_divisor_count"`        // CCPV除零归零行数
	FilledCellCount         int            `json:"filled_cell_count"`         // 稠密化填充单元格数
	DurationMs              int64          `json:"duration_ms"`               // 执行耗时（毫秒）
}

// MergeResult 合并结果，输出关系 + 展示层改名映射 + 执行统计
type MergeResult struct {
	Table       *DataTable        `json:"table"`        // 稠密输出关系
	RenameMap   map[string]string `json:"rename_map"`   // 展示层标题化改名映射
	Statistics  MergeStatistics   `json:"statistics"`   // 执行统计
	Fingerprint string            `json:"fingerprint"`  // 输入文件指纹（由调用方填入）
	GeneratedAt time.Time         `json:"generated_at"` // 生成时间
}

// MergeEngine 合并引擎
type MergeEngine struct {
	normalizer *ColumnNormalizer
	resolver   *KeyResolver
	coercer    *ValueCoercer
	joiner     *JoinEngine
	metrics    *MetricEngine
}

// NewMergeEngine 创建使用进程级随机源的合并引擎
func NewMergeEngine() *MergeEngine {
	return NewMergeEngineWithRandom(nil)
}

// NewMergeEngineWithRandom 创建使用注入随机源的合并引擎，测试用
func NewMergeEngineWithRandom(random RandomSource) *MergeEngine {
	return &MergeEngine{
		normalizer: NewColumnNormalizer(),
		resolver:   NewKeyResolver(),
		coercer:    NewValueCoercer(),
		joiner:     NewJoinEngineWithRandom(random),
		metrics:    NewMetricEngine(),
	}
}

// Execute 执行完整的合并流水线
func (e *MergeEngine) Execute(request *MergeRequest) (*MergeResult, error) {
	startTime := time.Now()

	if request == nil || request.Orders == nil || request.Routes == nil ||
		request.Fleet == nil || request.Performance == nil || request.Cost == nil {
		return nil, NewUnexpectedError("合并请求不完整，五个数据源必须全部提供", nil)
	}

	stats := MergeStatistics{
		SourceRowCounts: map[string]int{
			meta.DatasetKindOrders:      request.Orders.RowCount(),
			meta.DatasetKindRoutes:      request.Routes.RowCount(),
			meta.DatasetKindFleet:       request.Fleet.RowCount(),
			meta.DatasetKindPerformance: request.Performance.RowCount(),
			meta.DatasetKindCost:        request.Cost.RowCount(),
		},
	}

	orders := request.Orders
	routes := request.Routes
	fleet := request.Fleet
	performance := request.Performance
	cost := request.Cost

	// 1. 全部数据源列名规范化
	for _, table := range []*DataTable{orders, routes, fleet, performance, cost} {
		stats.DroppedDuplicateColumns += e.normalizer.NormalizeTable(table)
	}

	// 2. 订单主键解析，三个必需数据集任一失败即中止
	for _, table := range []*DataTable{orders, cost, performance} {
		if !e.resolver.ResolveOrderID(table) {
			return nil, NewUnresolvableKeyError(table.Name)
		}
	}

	// 3. 成本列解析（尽力而为，缺失时下游成本字段默认为零）
	e.resolver.ResolveCostColumn(cost)

	// 4. 路线主键解析（非致命，合成分配兜底）
	e.resolver.ResolveRouteID(routes)

	// 5. 订单价值数值化
	malformedCount, defaulted := e.coercer.ApplyOrderValue(orders)
	stats.MalformedCurrencyCount = malformedCount
	stats.OrderValueDefaulted = defaulted

	// 6. Link 1：订单 ⟕ 配送绩效（键：id），重名列沿用默认的 _x/_y 后缀
	merged := e.joiner.LeftJoin(orders, performance, meta.FieldOrderID, meta.FieldOrderID, "_x", "_y")

	// 7. Link 2：路线分配与距离
	if !routes.HasColumn(meta.FieldRouteID) {
		return nil, NewUnexpectedError("路线数据集缺少 "+meta.FieldRouteID+" 列，无法建立路线关系", nil)
	}
	if !merged.HasColumn(meta.FieldRouteID) {
		routeDomain := routes.DistinctValues(meta.FieldRouteID)
		if len(routeDomain) == 0 {
			return nil, NewUnexpectedError("路线数据集没有可用的 "+meta.FieldRouteID+" 取值，无法合成路线分配", nil)
		}
		stats.RouteSynthesized = true
		stats.SynthesizedRouteCount = e.joiner.SynthesizeColumn(merged, meta.FieldRouteID, routeDomain)
	}

	// 路线表中的 id 列会与订单主键冲突，连接前丢弃
	routes.DropColumn(meta.FieldOrderID)

	merged = e.joiner.LeftJoin(merged, routes, meta.FieldRouteID, meta.FieldRouteID, "_order", "_route")
	merged.RenameColumn(meta.FieldDistanceKm+"_route", meta.FieldDistanceKm)

	// 8. Link 3：车辆分配与排放系数，车辆分配始终随机合成
	if !fleet.HasColumn(meta.FieldVehicleType) {
		return nil, NewUnexpectedError("车队数据集缺少 "+meta.FieldVehicleType+" 列，无法分配车辆", nil)
	}
	vehicleDomain := fleet.DistinctValues(meta.FieldVehicleType)
	if len(vehicleDomain) == 0 {
		return nil, NewUnexpectedError("车队数据集没有可用的 "+meta.FieldVehicleType+" 取值，无法分配车辆", nil)
	}
	stats.SynthesizedVehicleCount = e.joiner.SynthesizeColumn(merged, meta.FieldAssignedVehicleType, vehicleDomain)

	merged = e.joiner.LeftJoin(merged, fleet, meta.FieldAssignedVehicleType, meta.FieldVehicleType, "_merge", "_fleet")

	// 9. Link 4：成本明细按订单去重（保留首次出现）后连接
	dedupedCost, droppedRows := e.joiner.DeduplicateByKey(cost, meta.FieldOrderID)
	stats.CostDuplicatesDropped = droppedRows

	merged = e.joiner.LeftJoin(merged, dedupedCost, meta.FieldOrderID, meta.FieldOrderID, "_final", "_cost")

	// 10. 指标派生与稠密化
	metricStats, err := e.metrics.DeriveMetrics(merged)
	if err != nil {
		return nil, err
	}
	stats.ImputedDistanceCount = metricStats.ImputedDistanceCount
	stats.ImputedCO2Count = metricStats.ImputedCO2Count
	stats.ZeroDivisorCount = metricStats.ZeroDivisorCount
	stats.FilledCellCount = metricStats.FilledCellCount

	stats.OutputRowCount = merged.RowCount()
	stats.OutputColumnCount = len(merged.Columns)
	stats.DurationMs = time.Since(startTime).Milliseconds()

	return &MergeResult{
		Table:       merged,
		RenameMap:   meta.BuildDisplayRenameMap(merged.Columns),
		Statistics:  stats,
		GeneratedAt: time.Now(),
	}, nil
}
