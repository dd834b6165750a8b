/*
 * @module service/utils/data_converter_test
 * @description 数据转换工具函数单元测试
 * @architecture 测试层 - 纯函数测试，无外部依赖
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第6.2节
 * @stateFlow 输入参数 -> 函数调用 -> 输出验证
 * @rules 确保数据转换的正确性、类型安全和边界处理
 * @dependencies testing, testify
 * @refs data_converter.go
 */

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToString(t *testing.T) {
	dc := NewDataConverter()

	testCases := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{
			name:     "字符串输入",
			input:    "hello",
			expected: "hello",
		},
		{
			name:     "整数输入",
			input:    123,
			expected: "123",
		},
		{
			name:     "浮点数输入",
			input:    123.45,
			expected: "123.45",
		},
		{
			name:     "整数值浮点数不带小数点",
			input:    float64(60),
			expected: "60",
		},
		{
			name:     "布尔值true",
			input:    true,
			expected: "true",
		},
		{
			name:     "nil输入",
			input:    nil,
			expected: "",
		},
		{
			name:     "字节切片",
			input:    []byte("hello"),
			expected: "hello",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := dc.ToString(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestToFloat(t *testing.T) {
	dc := NewDataConverter()

	testCases := []struct {
		name     string
		input    interface{}
		expected float64
		wantErr  bool
	}{
		{
			name:     "浮点数输入",
			input:    123.45,
			expected: 123.45,
			wantErr:  false,
		},
		{
			name:     "整数输入",
			input:    42,
			expected: 42.0,
			wantErr:  false,
		},
		{
			name:     "数字字符串",
			input:    "123.45",
			expected: 123.45,
			wantErr:  false,
		},
		{
			name:     "包含空格的数字字符串",
			input:    " 123.45 ",
			expected: 123.45,
			wantErr:  false,
		},
		{
			name:     "科学计数法",
			input:    "1.23e10",
			expected: 1.23e10,
			wantErr:  false,
		},
		{
			name:     "无效字符串",
			input:    "abc",
			expected: 0.0,
			wantErr:  true,
		},
		{
			name:     "nil输入",
			input:    nil,
			expected: 0.0,
			wantErr:  true,
		},
		{
			name:     "布尔值true",
			input:    true,
			expected: 1.0,
			wantErr:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := dc.ToFloat(tc.input)

			if tc.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tc.expected, result)
			} else {
				assert.NoError(t, err)
				assert.InDelta(t, tc.expected, result, 0.0001)
			}
		})
	}
}

func TestConvertEncoding(t *testing.T) {
	dc := NewDataConverter()

	t.Run("GBK转UTF-8", func(t *testing.T) {
		// "中文" 的GBK编码字节
		gbkBytes := []byte{0xD6, 0xD0, 0xCE, 0xC4}

		result, err := dc.ConvertEncoding(gbkBytes, "gbk", "utf-8")
		require.NoError(t, err)
		assert.Equal(t, "中文", string(result))
	})

	t.Run("UTF-8转GBK再转回", func(t *testing.T) {
		original := []byte("绿色路线分析")

		gbk, err := dc.ConvertEncoding(original, "utf-8", "gbk")
		require.NoError(t, err)

		back, err := dc.ConvertEncoding(gbk, "gbk", "utf-8")
		require.NoError(t, err)
		assert.Equal(t, original, back)
	})

	t.Run("不支持的编码返回原数据", func(t *testing.T) {
		data := []byte("unchanged")

		result, err := dc.ConvertEncoding(data, "latin-1", "utf-8")
		require.NoError(t, err)
		assert.Equal(t, data, result)
	})
}

func TestEnsureUTF8(t *testing.T) {
	dc := NewDataConverter()

	t.Run("合法UTF-8保持不变", func(t *testing.T) {
		data := []byte("route,vehicle\nR1,Truck")
		assert.Equal(t, data, dc.EnsureUTF8(data))
	})

	t.Run("GBK字节回退解码", func(t *testing.T) {
		gbkBytes := []byte{0xD6, 0xD0, 0xCE, 0xC4}
		assert.Equal(t, "中文", string(dc.EnsureUTF8(gbkBytes)))
	})
}

func TestParseTime(t *testing.T) {
	dc := NewDataConverter()

	testCases := []struct {
		name    string
		input   string
		layouts []string
		want    time.Time
		wantErr bool
	}{
		{
			name:    "RFC3339格式",
			input:   "2024-01-15T10:30:00Z",
			layouts: nil,
			want:    time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			wantErr: false,
		},
		{
			name:    "日期格式",
			input:   "2024-01-15",
			layouts: nil,
			want:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantErr: false,
		},
		{
			name:    "斜杠日期格式",
			input:   "2024/01/15",
			layouts: nil,
			want:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantErr: false,
		},
		{
			name:    "美式日期格式",
			input:   "01/15/2024",
			layouts: nil,
			want:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantErr: false,
		},
		{
			name:    "带空格的日期",
			input:   " 2024-01-15 ",
			layouts: nil,
			want:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantErr: false,
		},
		{
			name:    "自定义布局优先",
			input:   "15.01.2024",
			layouts: []string{"02.01.2006"},
			want:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantErr: false,
		},
		{
			name:    "无效时间",
			input:   "invalid-time",
			layouts: nil,
			wantErr: true,
		},
		{
			name:    "空字符串",
			input:   "",
			layouts: nil,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := dc.ParseTime(tc.input, tc.layouts)

			if tc.wantErr {
				assert.Error(t, err)
				assert.True(t, result.IsZero())
			} else {
				assert.NoError(t, err)
				assert.True(t, tc.want.Equal(result))
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	dc := NewDataConverter()
	ts := time.Date(2024, 3, 7, 9, 15, 30, 0, time.UTC)

	assert.Equal(t, "2024-03-07 09:15:30", dc.FormatTime(ts, ""))
	assert.Equal(t, "2024-03-07", dc.FormatTime(ts, "2006-01-02"))
}
