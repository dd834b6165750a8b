/*
 * @module service/pipeline/data_table
 * @description 内存表结构定义，承载五个数据源在合并流水线各阶段的关系数据
 * @architecture 数据传输对象模式 - 有序列名 + 泛型记录行
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 装载 -> 列名规范化 -> 键解析 -> 合并 -> 指标派生
 * @rules 列顺序决定导出顺序，改名操作同时更新列表和所有行记录
 * @dependencies strconv, math
 * @refs merge_engine.go, service/loader
 */

package pipeline

import (
	"fmt"
	"math"
	"strconv"
)

// DataTable 内存关系表，行记录以列名为键
// 单元格取值为 float64、string 或 nil（缺失）
type DataTable struct {
	Name    string                   `json:"name"`    // 数据集名称
	Columns []string                 `json:"columns"` // 有序列名
	Rows    []map[string]interface{} `json:"rows"`    // 行记录
}

// NewDataTable 创建空表
func NewDataTable(name string, columns []string) *DataTable {
	return &DataTable{
		Name:    name,
		Columns: columns,
		Rows:    make([]map[string]interface{}, 0),
	}
}

// RowCount 返回行数
func (t *DataTable) RowCount() int {
	return len(t.Rows)
}

// HasColumn 判断列是否存在
func (t *DataTable) HasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

// columnIndex 返回列下标，不存在时返回-1
func (t *DataTable) columnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// RenameColumn 重命名列，同时更新所有行记录的键
func (t *DataTable) RenameColumn(oldName, newName string) bool {
	idx := t.columnIndex(oldName)
	if idx < 0 || oldName == newName {
		return false
	}

	t.Columns[idx] = newName
	for _, row := range t.Rows {
		if value, exists := row[oldName]; exists {
			row[newName] = value
			delete(row, oldName)
		}
	}
	return true
}

// AddColumn 追加新列并为所有行设置同一默认值，列已存在时覆盖取值
func (t *DataTable) AddColumn(name string, defaultValue interface{}) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	for _, row := range t.Rows {
		row[name] = defaultValue
	}
}

// SetColumn 追加新列并按行设置取值，values长度不足的行填缺失
func (t *DataTable) SetColumn(name string, values []interface{}) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	for i, row := range t.Rows {
		if i < len(values) {
			row[name] = values[i]
		} else {
			row[name] = nil
		}
	}
}

// DropColumn 删除列及所有行中的取值
func (t *DataTable) DropColumn(name string) bool {
	idx := t.columnIndex(name)
	if idx < 0 {
		return false
	}

	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	for _, row := range t.Rows {
		delete(row, name)
	}
	return true
}

// DistinctValues 返回列的去重取值，保持首次出现顺序，缺失值跳过
func (t *DataTable) DistinctValues(column string) []interface{} {
	seen := make(map[string]bool)
	values := make([]interface{}, 0)
	for _, row := range t.Rows {
		value := row[column]
		if IsMissing(value) {
			continue
		}
		key := KeyString(value)
		if !seen[key] {
			seen[key] = true
			values = append(values, value)
		}
	}
	return values
}

// Clone 深拷贝表结构和所有行记录
func (t *DataTable) Clone() *DataTable {
	columns := make([]string, len(t.Columns))
	copy(columns, t.Columns)

	rows := make([]map[string]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		cloned := make(map[string]interface{}, len(row))
		for key, value := range row {
			cloned[key] = value
		}
		rows[i] = cloned
	}

	return &DataTable{Name: t.Name, Columns: columns, Rows: rows}
}

// IsMissing 判断单元格取值是否缺失，nil和NaN视为缺失
func IsMissing(value interface{}) bool {
	if value == nil {
		return true
	}
	if f, ok := value.(float64); ok {
		return math.IsNaN(f)
	}
	return false
}

// KeyString 将单元格取值转为合并键的比较形式
// 数值统一按最短十进制表示，避免 10 与 "10" 因装载推断差异错失匹配
func KeyString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
