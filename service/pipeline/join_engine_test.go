/*
 * @module service/pipeline/join_engine_test
 * @description 左连接引擎测试，覆盖保序左连接、后缀区分、键去重和随机合成
 * @architecture 测试层 - 注入确定性随机源
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第10节
 * @stateFlow 构造左右表 -> 连接 -> 断言行列
 * @rules 左连接不增不减左表行数；右表同键多行取首行
 * @dependencies testing, testify
 * @refs join_engine.go
 */

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceRandom 确定性随机源，按预置序列循环返回
type sequenceRandom struct {
	values []int
	cursor int
}

func (r *sequenceRandom) Intn(n int) int {
	value := r.values[r.cursor%len(r.values)]
	r.cursor++
	return value % n
}

func TestLeftJoinSameKey(t *testing.T) {
	left := NewDataTable("orders", []string{"id", "priority"})
	left.Rows = []map[string]interface{}{
		{"id": "ORD-1", "priority": "High"},
		{"id": "ORD-2", "priority": "Low"},
		{"id": "ORD-3", "priority": "Medium"},
	}

	right := NewDataTable("performance", []string{"id", "delivery_time_days"})
	right.Rows = []map[string]interface{}{
		{"id": "ORD-1", "delivery_time_days": 3.0},
		{"id": "ORD-3", "delivery_time_days": 5.0},
	}

	engine := NewJoinEngine()
	result := engine.LeftJoin(left, right, "id", "id", "_x", "_y")

	// 左表每行保留，键列只输出一份
	require.Equal(t, 3, result.RowCount())
	assert.Equal(t, []string{"id", "priority", "delivery_time_days"}, result.Columns)

	assert.Equal(t, 3.0, result.Rows[0]["delivery_time_days"])
	// 未匹配行右侧列置缺失
	assert.Nil(t, result.Rows[1]["delivery_time_days"])
	assert.Equal(t, 5.0, result.Rows[2]["delivery_time_days"])
}

func TestLeftJoinSuffixOnOverlap(t *testing.T) {
	left := NewDataTable("merged", []string{"id", "status"})
	left.Rows = []map[string]interface{}{
		{"id": "ORD-1", "status": "left_status"},
	}

	right := NewDataTable("cost", []string{"id", "status", "amount"})
	right.Rows = []map[string]interface{}{
		{"id": "ORD-1", "status": "right_status", "amount": 42.0},
	}

	engine := NewJoinEngine()
	result := engine.LeftJoin(left, right, "id", "id", "_final", "_cost")

	assert.Equal(t, []string{"id", "status_final", "status_cost", "amount"}, result.Columns)
	assert.Equal(t, "left_status", result.Rows[0]["status_final"])
	assert.Equal(t, "right_status", result.Rows[0]["status_cost"])
	assert.Equal(t, 42.0, result.Rows[0]["amount"])
}

func TestLeftJoinDifferentKeys(t *testing.T) {
	left := NewDataTable("merged", []string{"id", "assigned_vehicle_type"})
	left.Rows = []map[string]interface{}{
		{"id": "ORD-1", "assigned_vehicle_type": "EV_Van"},
	}

	right := NewDataTable("fleet", []string{"vehicle_type", "co2_emissions_kg_per_km"})
	right.Rows = []map[string]interface{}{
		{"vehicle_type": "EV_Van", "co2_emissions_kg_per_km": 0.05},
	}

	engine := NewJoinEngine()
	result := engine.LeftJoin(left, right, "assigned_vehicle_type", "vehicle_type", "_merge", "_fleet")

	// 键列名不同，右侧键列照常并入输出
	assert.Equal(t, []string{"id", "assigned_vehicle_type", "vehicle_type", "co2_emissions_kg_per_km"}, result.Columns)
	assert.Equal(t, "EV_Van", result.Rows[0]["vehicle_type"])
	assert.Equal(t, 0.05, result.Rows[0]["co2_emissions_kg_per_km"])
}

func TestLeftJoinRightDuplicateKeepsFirst(t *testing.T) {
	left := NewDataTable("orders", []string{"id"})
	left.Rows = []map[string]interface{}{{"id": "ORD-1"}}

	right := NewDataTable("cost", []string{"id", "amount"})
	right.Rows = []map[string]interface{}{
		{"id": "ORD-1", "amount": 100.0},
		{"id": "ORD-1", "amount": 999.0},
	}

	engine := NewJoinEngine()
	result := engine.LeftJoin(left, right, "id", "id", "_x", "_y")

	require.Equal(t, 1, result.RowCount())
	assert.Equal(t, 100.0, result.Rows[0]["amount"])
}

func TestLeftJoinNumericStringKeyMatch(t *testing.T) {
	// 装载推断差异导致一侧是数值、一侧是字符串时仍要能匹配
	left := NewDataTable("orders", []string{"id"})
	left.Rows = []map[string]interface{}{{"id": 1001.0}}

	right := NewDataTable("performance", []string{"id", "rating"})
	right.Rows = []map[string]interface{}{{"id": "1001", "rating": 4.5}}

	engine := NewJoinEngine()
	result := engine.LeftJoin(left, right, "id", "id", "_x", "_y")

	assert.Equal(t, 4.5, result.Rows[0]["rating"])
}

func TestLeftJoinMissingKeyRow(t *testing.T) {
	left := NewDataTable("orders", []string{"id", "priority"})
	left.Rows = []map[string]interface{}{
		{"id": nil, "priority": "High"},
	}

	right := NewDataTable("performance", []string{"id", "rating"})
	right.Rows = []map[string]interface{}{{"id": "ORD-1", "rating": 4.5}}

	engine := NewJoinEngine()
	result := engine.LeftJoin(left, right, "id", "id", "_x", "_y")

	// 键缺失的左行保留，右侧置缺失
	require.Equal(t, 1, result.RowCount())
	assert.Equal(t, "High", result.Rows[0]["priority"])
	assert.Nil(t, result.Rows[0]["rating"])
}

func TestSynthesizeColumn(t *testing.T) {
	t.Run("从取值域均匀抽取", func(t *testing.T) {
		table := NewDataTable("merged", []string{"id"})
		table.Rows = []map[string]interface{}{
			{"id": "ORD-1"}, {"id": "ORD-2"}, {"id": "ORD-3"},
		}

		random := &sequenceRandom{values: []int{0, 2, 1}}
		engine := NewJoinEngineWithRandom(random)

		domain := []interface{}{"Diesel_Truck", "CNG_Truck", "EV_Van"}
		count := engine.SynthesizeColumn(table, "assigned_vehicle_type", domain)

		assert.Equal(t, 3, count)
		assert.Equal(t, "Diesel_Truck", table.Rows[0]["assigned_vehicle_type"])
		assert.Equal(t, "EV_Van", table.Rows[1]["assigned_vehicle_type"])
		assert.Equal(t, "CNG_Truck", table.Rows[2]["assigned_vehicle_type"])
	})

	t.Run("进程级随机源只从取值域抽取", func(t *testing.T) {
		table := NewDataTable("merged", []string{"id"})
		for i := 0; i < 50; i++ {
			table.Rows = append(table.Rows, map[string]interface{}{"id": i})
		}

		engine := NewJoinEngine()
		domain := []interface{}{"A", "B"}
		engine.SynthesizeColumn(table, "assigned", domain)

		for _, row := range table.Rows {
			assert.Contains(t, []interface{}{"A", "B"}, row["assigned"])
		}
	})

	t.Run("取值域为空时整列置缺失", func(t *testing.T) {
		table := NewDataTable("merged", []string{"id"})
		table.Rows = []map[string]interface{}{{"id": "ORD-1"}}

		engine := NewJoinEngine()
		count := engine.SynthesizeColumn(table, "assigned", nil)

		assert.Equal(t, 0, count)
		assert.True(t, table.HasColumn("assigned"))
		assert.Nil(t, table.Rows[0]["assigned"])
	})
}

func TestDeduplicateByKey(t *testing.T) {
	table := NewDataTable("cost", []string{"id", "amount"})
	table.Rows = []map[string]interface{}{
		{"id": "ORD-1", "amount": 100.0},
		{"id": "ORD-2", "amount": 200.0},
		{"id": "ORD-1", "amount": 999.0},
		{"id": "ORD-2", "amount": 888.0},
		{"id": "ORD-3", "amount": 300.0},
	}

	engine := NewJoinEngine()
	deduped, dropped := engine.DeduplicateByKey(table, "id")

	assert.Equal(t, 2, dropped)
	require.Equal(t, 3, deduped.RowCount())
	// 文件顺序中的首次出现保留
	assert.Equal(t, 100.0, deduped.Rows[0]["amount"])
	assert.Equal(t, 200.0, deduped.Rows[1]["amount"])
	assert.Equal(t, 300.0, deduped.Rows[2]["amount"])
	// 原表不受影响
	assert.Equal(t, 5, table.RowCount())
}
