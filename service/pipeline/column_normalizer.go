/*
 * @module service/pipeline/column_normalizer
 * @description 列名规范化器，将五个数据源的列头统一为小写下划线形式，保证合并键一致
 * @architecture 流水线阶段 - 无状态转换
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 原始列头 -> 去空白 -> 小写 -> 非法字符折叠为下划线 -> 去首尾下划线
 * @rules 规范化必须幂等，对已规范化的列名再执行一次是空操作；该阶段不产生错误
 * @dependencies regexp, strings
 * @refs key_resolver.go, merge_engine.go
 */

package pipeline

import (
	"regexp"
	"strings"
)

// invalidColumnChars 匹配规范字符集之外的连续字符段
var invalidColumnChars = regexp.MustCompile(`[^a-z0-9_]+`)

// ColumnNormalizer 列名规范化器
type ColumnNormalizer struct{}

// NewColumnNormalizer 创建列名规范化器
func NewColumnNormalizer() *ColumnNormalizer {
	return &ColumnNormalizer{}
}

// NormalizeName 规范化单个列名：去空白、小写、非法字符段折叠为单个下划线、去首尾下划线
func (n *ColumnNormalizer) NormalizeName(name string) string {
	normalized := strings.TrimSpace(name)
	normalized = strings.ToLower(normalized)
	normalized = invalidColumnChars.ReplaceAllString(normalized, "_")
	normalized = strings.Trim(normalized, "_")
	return normalized
}

// NormalizeTable 规范化表的全部列名，返回因规范化后重名而被丢弃的列数
// 重名时保留先出现的列的数据，后续同名列整列丢弃
func (n *ColumnNormalizer) NormalizeTable(table *DataTable) int {
	if table == nil {
		return 0
	}

	dropped := 0
	seen := make(map[string]bool, len(table.Columns))
	newColumns := make([]string, 0, len(table.Columns))
	nameMapping := make([]string, len(table.Columns))

	for i, oldName := range table.Columns {
		newName := n.NormalizeName(oldName)
		if seen[newName] {
			nameMapping[i] = ""
			dropped++
			continue
		}
		seen[newName] = true
		newColumns = append(newColumns, newName)
		nameMapping[i] = newName
	}

	// 重建行记录，避免改名与已有键冲突时数据互相覆盖
	for rowIdx, row := range table.Rows {
		newRow := make(map[string]interface{}, len(newColumns))
		for i, oldName := range table.Columns {
			if nameMapping[i] == "" {
				continue
			}
			newRow[nameMapping[i]] = row[oldName]
		}
		table.Rows[rowIdx] = newRow
	}

	table.Columns = newColumns
	return dropped
}
