/*
 * @module service/pipeline/data_table_test
 * @description 内存表结构测试，验证列操作、去重取值和合并键比较形式
 * @architecture 测试层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第10节
 * @stateFlow 构造表 -> 列操作 -> 断言列清单与行记录同步
 * @rules 改名和删列必须同时作用于列清单和全部行记录
 * @dependencies testing, testify
 * @refs data_table.go
 */

package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleTable() *DataTable {
	table := NewDataTable("orders", []string{"id", "route_id", "priority"})
	table.Rows = []map[string]interface{}{
		{"id": "ORD-1", "route_id": "RT-1", "priority": "High"},
		{"id": "ORD-2", "route_id": "RT-2", "priority": "Low"},
		{"id": "ORD-3", "route_id": "RT-1", "priority": nil},
	}
	return table
}

func TestDataTableColumnOps(t *testing.T) {
	t.Run("改名同步列清单和行记录", func(t *testing.T) {
		table := buildSampleTable()
		require.True(t, table.RenameColumn("route_id", "route"))

		assert.Equal(t, []string{"id", "route", "priority"}, table.Columns)
		assert.Equal(t, "RT-1", table.Rows[0]["route"])
		_, exists := table.Rows[0]["route_id"]
		assert.False(t, exists)

		assert.False(t, table.RenameColumn("missing", "x"))
		assert.False(t, table.RenameColumn("id", "id"))
	})

	t.Run("删列同步行记录", func(t *testing.T) {
		table := buildSampleTable()
		require.True(t, table.DropColumn("priority"))

		assert.Equal(t, []string{"id", "route_id"}, table.Columns)
		_, exists := table.Rows[1]["priority"]
		assert.False(t, exists)

		assert.False(t, table.DropColumn("priority"))
	})

	t.Run("加列填默认值", func(t *testing.T) {
		table := buildSampleTable()
		table.AddColumn("source", "csv")

		assert.True(t, table.HasColumn("source"))
		for _, row := range table.Rows {
			assert.Equal(t, "csv", row["source"])
		}

		// 重复加列只覆盖取值，不重复追加列名
		table.AddColumn("source", "api")
		assert.Equal(t, []string{"id", "route_id", "priority", "source"}, table.Columns)
		assert.Equal(t, "api", table.Rows[0]["source"])
	})

	t.Run("按行设值长度不足补缺失", func(t *testing.T) {
		table := buildSampleTable()
		table.SetColumn("score", []interface{}{1.0, 2.0})

		assert.Equal(t, 1.0, table.Rows[0]["score"])
		assert.Equal(t, 2.0, table.Rows[1]["score"])
		assert.Nil(t, table.Rows[2]["score"])
	})
}

func TestDataTableDistinctValues(t *testing.T) {
	table := buildSampleTable()

	// 保持首次出现顺序，缺失值跳过
	assert.Equal(t, []interface{}{"RT-1", "RT-2"}, table.DistinctValues("route_id"))
	assert.Equal(t, []interface{}{"High", "Low"}, table.DistinctValues("priority"))
	assert.Empty(t, table.DistinctValues("missing"))

	// 数值与等值字符串视为同一取值
	mixed := NewDataTable("mixed", []string{"key"})
	mixed.Rows = []map[string]interface{}{
		{"key": 1001.0},
		{"key": "1001"},
		{"key": 1002.0},
	}
	assert.Len(t, mixed.DistinctValues("key"), 2)
}

func TestDataTableClone(t *testing.T) {
	table := buildSampleTable()
	cloned := table.Clone()

	cloned.Rows[0]["id"] = "CHANGED"
	cloned.Columns[0] = "changed"

	assert.Equal(t, "ORD-1", table.Rows[0]["id"])
	assert.Equal(t, "id", table.Columns[0])
	assert.Equal(t, table.RowCount(), cloned.RowCount())
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"整数浮点去小数点", 1001.0, "1001"},
		{"小数保留最短表示", 412.5, "412.5"},
		{"字符串原样", "RT-01", "RT-01"},
		{"空值为空串", nil, ""},
		{"整型", 7, "7"},
		{"布尔", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KeyString(tt.value))
		})
	}
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(nil))
	assert.True(t, IsMissing(math.NaN()))
	assert.False(t, IsMissing(0.0))
	assert.False(t, IsMissing(""))
	assert.False(t, IsMissing("N/A"))
}