/*
 * @module service/pipeline/key_resolver
 * @description 合并键解析器，按优先级在历史别名列表中查找逻辑键并改名为规范列名
 * @architecture 流水线阶段 - 基于显式别名表的确定性解析
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 候选列表扫描 -> 首个命中改名 -> 返回解析结果
 * @rules 规范列名已存在时视为已解析；解析失败由调用方决定是否致命；
 *        成本列解析为尽力而为，别名未命中时按子串标记兜底匹配
 * @dependencies strings
 * @refs service/meta/canonical_fields.go, merge_engine.go
 */

package pipeline

import (
	"strings"

	"greenroute-service/service/meta"
)

// KeyResolver 合并键解析器
type KeyResolver struct{}

// NewKeyResolver 创建合并键解析器
func NewKeyResolver() *KeyResolver {
	return &KeyResolver{}
}

// ResolveKey 按优先级扫描候选列名，首个存在的列改名为规范列名
// 规范列名本身已存在时直接视为解析成功；候选全部未命中且规范列缺失时返回失败
func (r *KeyResolver) ResolveKey(table *DataTable, candidates []string, canonical string) bool {
	if table == nil {
		return false
	}

	for _, candidate := range candidates {
		if table.HasColumn(candidate) {
			table.RenameColumn(candidate, canonical)
			return true
		}
	}

	return table.HasColumn(canonical)
}

// ResolveOrderID 解析订单主键，应用于订单、成本、绩效三个数据集
func (r *KeyResolver) ResolveOrderID(table *DataTable) bool {
	return r.ResolveKey(table, meta.OrderIDAliases, meta.FieldOrderID)
}

// ResolveRouteID 解析路线主键，未命中不致命，由路线合成策略兜底
func (r *KeyResolver) ResolveRouteID(table *DataTable) bool {
	return r.ResolveKey(table, meta.RouteIDAliases, meta.FieldRouteID)
}

// ResolveCostColumn 解析成本列，尽力而为：
// 先按别名解析，规范名与别名都缺失时，取首个列名包含 labor 或 fuel 子串的列
func (r *KeyResolver) ResolveCostColumn(table *DataTable) bool {
	if table == nil {
		return false
	}

	for _, candidate := range meta.CostColumnAliases {
		if table.HasColumn(candidate) {
			table.RenameColumn(candidate, meta.FieldCostColumn)
			return true
		}
	}
	if table.HasColumn(meta.FieldCostColumn) {
		return true
	}

	for _, column := range table.Columns {
		for _, marker := range meta.CostColumnMarkers {
			if strings.Contains(column, marker) {
				table.RenameColumn(column, meta.FieldCostColumn)
				return true
			}
		}
	}

	return false
}
