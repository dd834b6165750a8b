/*
 * @module service/loader/csv_loader_test
 * @description CSV装载器单元测试，覆盖编码处理、类型推断和异常输入
 * @architecture 单元测试 - 字节流输入到数据表输出的验证
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第2节
 * @stateFlow 测试数据准备 -> 装载 -> 结构和类型验证
 * @rules 确保装载结果的列顺序、缺失值表示和数值类型推断正确
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs csv_loader.go
 */

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenroute-service/service/pipeline"
)

func TestCSVLoader_LoadBytes_Basic(t *testing.T) {
	l := NewCSVLoader()

	data := []byte("Order ID,Distance (KM),Origin\nORD-1,12.5,Delhi\nORD-2,8,Mumbai\n")
	table, err := l.LoadBytes("orders", data)
	require.NoError(t, err)

	assert.Equal(t, "orders", table.Name)
	assert.Equal(t, []string{"Order ID", "Distance (KM)", "Origin"}, table.Columns)
	assert.Equal(t, 2, table.RowCount())

	// 数值列推断为浮点，文本列保持字符串
	assert.Equal(t, 12.5, table.Rows[0]["Distance (KM)"])
	assert.Equal(t, float64(8), table.Rows[1]["Distance (KM)"])
	assert.Equal(t, "ORD-1", table.Rows[0]["Order ID"])
	assert.Equal(t, "Delhi", table.Rows[0]["Origin"])
}

func TestCSVLoader_LoadBytes_BOMStripped(t *testing.T) {
	l := NewCSVLoader()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,value\nA,1\n")...)
	table, err := l.LoadBytes("with_bom", data)
	require.NoError(t, err)

	// BOM不应污染首列列名
	assert.Equal(t, []string{"id", "value"}, table.Columns)
}

func TestCSVLoader_LoadBytes_GBKFallback(t *testing.T) {
	l := NewCSVLoader()

	// "中文" 的GBK编码作为单元格内容
	data := []byte("id,name\nA,")
	data = append(data, 0xD6, 0xD0, 0xCE, 0xC4)
	data = append(data, '\n')

	table, err := l.LoadBytes("gbk_file", data)
	require.NoError(t, err)
	assert.Equal(t, "中文", table.Rows[0]["name"])
}

func TestCSVLoader_LoadBytes_RaggedRows(t *testing.T) {
	l := NewCSVLoader()

	tests := []struct {
		name     string
		data     string
		expected interface{}
	}{
		{
			name:     "行宽不足补缺失",
			data:     "a,b,c\n1,2\n",
			expected: nil,
		},
		{
			name:     "超宽部分丢弃",
			data:     "a,b,c\n1,2,3,4\n",
			expected: float64(3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := l.LoadBytes("ragged", []byte(tt.data))
			require.NoError(t, err)
			require.Equal(t, 1, table.RowCount())
			assert.Equal(t, tt.expected, table.Rows[0]["c"])
			assert.Len(t, table.Columns, 3)
		})
	}
}

func TestCSVLoader_LoadBytes_EmptyCellsAreMissing(t *testing.T) {
	l := NewCSVLoader()

	data := []byte("id,distance_km,origin\nA,,Delhi\nB,5.0,\n")
	table, err := l.LoadBytes("gaps", data)
	require.NoError(t, err)

	assert.True(t, pipeline.IsMissing(table.Rows[0]["distance_km"]))
	assert.True(t, pipeline.IsMissing(table.Rows[1]["origin"]))
	assert.Equal(t, 5.0, table.Rows[1]["distance_km"])
}

func TestCSVLoader_LoadBytes_MixedColumnStaysText(t *testing.T) {
	l := NewCSVLoader()

	// 含货币符号的列不可整体解析为数值，保持字符串
	data := []byte("id,order_value\nA,$1234.50\nB,900\n")
	table, err := l.LoadBytes("currency", data)
	require.NoError(t, err)

	assert.Equal(t, "$1234.50", table.Rows[0]["order_value"])
	assert.Equal(t, "900", table.Rows[1]["order_value"])
}

func TestCSVLoader_LoadBytes_EmptyFile(t *testing.T) {
	l := NewCSVLoader()

	_, err := l.LoadBytes("empty", []byte(""))
	assert.Error(t, err)
}

func TestCSVLoader_LoadFile(t *testing.T) {
	l := NewCSVLoader()
	dir := t.TempDir()

	t.Run("正常文件", func(t *testing.T) {
		path := filepath.Join(dir, "routes_distance.csv")
		require.NoError(t, os.WriteFile(path, []byte("route_id,distance_km\nR1,10\n"), 0o644))

		table, err := l.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "routes_distance", table.Name)
		assert.Equal(t, 1, table.RowCount())
	})

	t.Run("文件不存在返回缺失文件错误", func(t *testing.T) {
		_, err := l.LoadFile(filepath.Join(dir, "nope.csv"))
		require.Error(t, err)

		pe, ok := pipeline.AsPipelineError(err)
		require.True(t, ok)
		assert.Equal(t, pipeline.ErrCodeMissingInputFile, pe.Code)
	})
}
