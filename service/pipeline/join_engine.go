/*
 * @module service/pipeline/join_engine
 * @description 左连接引擎，提供保序左连接、重名列后缀处理、键去重和随机外键合成
 * @architecture 流水线阶段 - 合并机制层，连接顺序由合并引擎编排
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 右表建索引 -> 左表逐行匹配 -> 重名列加后缀 -> 未匹配侧置缺失
 * @rules 左连接保留左表每一行；右表同键多行时取首行，保证每订单一行的输出约定；
 *        随机合成只从右表实际存在的键值域中抽取
 * @dependencies math/rand
 * @refs merge_engine.go, data_table.go
 */

package pipeline

import (
	"math/rand"
)

// RandomSource 随机源接口，路线与车辆的随机分配通过该接口注入
// 生产环境使用进程级随机源，测试注入确定性实现
type RandomSource interface {
	Intn(n int) int
}

// processRandomSource 进程级随机源，不承诺固定种子
type processRandomSource struct{}

func (processRandomSource) Intn(n int) int {
	return rand.Intn(n)
}

// JoinEngine 左连接引擎
type JoinEngine struct {
	random RandomSource
}

// NewJoinEngine 创建使用进程级随机源的连接引擎
func NewJoinEngine() *JoinEngine {
	return &JoinEngine{random: processRandomSource{}}
}

// NewJoinEngineWithRandom 创建使用注入随机源的连接引擎
func NewJoinEngineWithRandom(random RandomSource) *JoinEngine {
	if random == nil {
		random = processRandomSource{}
	}
	return &JoinEngine{random: random}
}

// LeftJoin 左连接两张表
// 连接键同名时输出只保留左侧一列；重名的非键列分别追加左右后缀；
// 右表同键多行时取首行匹配；未匹配行的右侧列全部置缺失
func (e *JoinEngine) LeftJoin(left, right *DataTable, leftKey, rightKey, leftSuffix, rightSuffix string) *DataTable {
	sameKey := leftKey == rightKey

	// 右表参与合并的列，键同名时右侧键列不重复输出
	carriedColumns := make([]string, 0, len(right.Columns))
	for _, column := range right.Columns {
		if sameKey && column == rightKey {
			continue
		}
		carriedColumns = append(carriedColumns, column)
	}

	// 两侧重名的非键列需要加后缀区分
	leftSet := make(map[string]bool, len(left.Columns))
	for _, column := range left.Columns {
		leftSet[column] = true
	}
	overlap := make(map[string]bool)
	for _, column := range carriedColumns {
		if leftSet[column] {
			overlap[column] = true
		}
	}

	leftNames := make(map[string]string, len(left.Columns))
	resultColumns := make([]string, 0, len(left.Columns)+len(carriedColumns))
	for _, column := range left.Columns {
		name := column
		if overlap[column] {
			name = column + leftSuffix
		}
		leftNames[column] = name
		resultColumns = append(resultColumns, name)
	}
	rightNames := make(map[string]string, len(carriedColumns))
	for _, column := range carriedColumns {
		name := column
		if overlap[column] {
			name = column + rightSuffix
		}
		rightNames[column] = name
		resultColumns = append(resultColumns, name)
	}

	// 右表按键建索引，同键保留首行
	rightIndex := make(map[string]map[string]interface{}, right.RowCount())
	for _, row := range right.Rows {
		keyValue := row[rightKey]
		if IsMissing(keyValue) {
			continue
		}
		key := KeyString(keyValue)
		if _, exists := rightIndex[key]; !exists {
			rightIndex[key] = row
		}
	}

	result := NewDataTable(left.Name, resultColumns)
	result.Rows = make([]map[string]interface{}, 0, left.RowCount())

	for _, leftRow := range left.Rows {
		merged := make(map[string]interface{}, len(resultColumns))
		for _, column := range left.Columns {
			merged[leftNames[column]] = leftRow[column]
		}

		var rightRow map[string]interface{}
		if keyValue := leftRow[leftKey]; !IsMissing(keyValue) {
			rightRow = rightIndex[KeyString(keyValue)]
		}
		for _, column := range carriedColumns {
			if rightRow != nil {
				merged[rightNames[column]] = rightRow[column]
			} else {
				merged[rightNames[column]] = nil
			}
		}

		result.Rows = append(result.Rows, merged)
	}

	return result
}

// SynthesizeColumn 为每一行独立地从取值域中均匀随机抽取一个值写入新列
// 返回实际合成的行数；取值域为空时整列置缺失
func (e *JoinEngine) SynthesizeColumn(table *DataTable, column string, domain []interface{}) int {
	if len(domain) == 0 {
		table.AddColumn(column, nil)
		return 0
	}

	values := make([]interface{}, table.RowCount())
	for i := range values {
		values[i] = domain[e.random.Intn(len(domain))]
	}
	table.SetColumn(column, values)
	return table.RowCount()
}

// DeduplicateByKey 按键去重，保留文件顺序中的首次出现，返回新表和被丢弃的行数
// 键缺失的行视为同一组，同样保留首行
func (e *JoinEngine) DeduplicateByKey(table *DataTable, key string) (*DataTable, int) {
	result := NewDataTable(table.Name, table.Columns)
	result.Rows = make([]map[string]interface{}, 0, table.RowCount())

	seen := make(map[string]bool, table.RowCount())
	droppedCount := 0
	for _, row := range table.Rows {
		keyValue := KeyString(row[key])
		if seen[keyValue] {
			droppedCount++
			continue
		}
		seen[keyValue] = true
		result.Rows = append(result.Rows, row)
	}

	return result, droppedCount
}
