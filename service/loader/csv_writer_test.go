/*
 * @module service/loader/csv_writer_test
 * @description CSV导出器单元测试
 * @architecture 单元测试 - 数据表到字节流的验证
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第2节
 * @stateFlow 数据表构造 -> 序列化 -> 文本验证
 * @rules 确保缺失值、浮点格式化和列顺序的输出约定
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs csv_writer.go
 */

package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenroute-service/service/pipeline"
)

func TestCSVWriter_WriteTable(t *testing.T) {
	w := NewCSVWriter()

	table := pipeline.NewDataTable("export", []string{"ID", "Distance_km", "Origins"})
	table.Rows = []map[string]interface{}{
		{"ID": "ORD-1", "Distance_km": 12.5, "Origins": "Delhi"},
		{"ID": "ORD-2", "Distance_km": float64(8), "Origins": nil},
	}

	out, err := w.WriteTable(table)
	require.NoError(t, err)

	assert.Equal(t, "ID,Distance_km,Origins\nORD-1,12.5,Delhi\nORD-2,8,\n", string(out))
}

func TestCSVWriter_WriteTable_RoundTrip(t *testing.T) {
	w := NewCSVWriter()
	l := NewCSVLoader()

	table := pipeline.NewDataTable("roundtrip", []string{"id", "total_co2_kg"})
	table.Rows = []map[string]interface{}{
		{"id": "A", "total_co2_kg": 20.25},
		{"id": "B", "total_co2_kg": float64(0)},
	}

	out, err := w.WriteTable(table)
	require.NoError(t, err)

	back, err := l.LoadBytes("roundtrip", out)
	require.NoError(t, err)
	require.Equal(t, 2, back.RowCount())
	assert.Equal(t, 20.25, back.Rows[0]["total_co2_kg"])
	assert.Equal(t, float64(0), back.Rows[1]["total_co2_kg"])
}

func TestCSVWriter_WriteTable_QuotedCells(t *testing.T) {
	w := NewCSVWriter()

	table := pipeline.NewDataTable("quoted", []string{"id", "note"})
	table.Rows = []map[string]interface{}{
		{"id": "A", "note": "with,comma"},
	}

	out, err := w.WriteTable(table)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"with,comma"`)
}
