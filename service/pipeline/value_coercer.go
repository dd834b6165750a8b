/*
 * @module service/pipeline/value_coercer
 * @description 货币取值清洗器，将带符号和千分位的订单价值字符串转为数值
 * @architecture 流水线阶段 - 全函数转换，解析失败回退为零
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 原始取值 -> 去货币符号/千分位 -> 十进制解析 -> 失败回退为零
 * @rules 转换必须对任意输入都返回有限数值，宁可低估订单价值也不允许失败中断流水线
 * @dependencies strconv, strings, github.com/spf13/cast
 * @refs merge_engine.go, metric_engine.go
 */

package pipeline

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"greenroute-service/service/meta"
)

// ValueCoercer 货币取值清洗器
type ValueCoercer struct{}

// NewValueCoercer 创建货币取值清洗器
func NewValueCoercer() *ValueCoercer {
	return &ValueCoercer{}
}

// CoerceCurrency 将货币形式的取值转为数值，任何解析失败都返回0
func (c *ValueCoercer) CoerceCurrency(raw interface{}) float64 {
	value, _ := c.coerceChecked(raw)
	return value
}

// coerceChecked 带解析结果标记的清洗，ok为false表示非空输入解析失败
func (c *ValueCoercer) coerceChecked(raw interface{}) (float64, bool) {
	if IsMissing(raw) {
		return 0, true
	}

	cleaned := c.StripCurrency(cast.ToString(raw))
	if cleaned == "" {
		return 0, true
	}

	// ParseFloat接受NaN/Inf字面量，这类取值同样视为解析失败
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// StripCurrency 去掉货币符号和千分位分隔符，保留原始字符串的其余部分
func (c *ValueCoercer) StripCurrency(raw string) string {
	cleaned := strings.ReplaceAll(raw, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return strings.TrimSpace(cleaned)
}

// ApplyOrderValue 在订单表上定位订单价值列并生成数值列
// 取首个列名同时包含 order_value 和 inr 的列，生成去符号中间列和数值列；
// 找不到候选列时整列默认为0（defaulted为true，区别于单值解析失败）
func (c *ValueCoercer) ApplyOrderValue(table *DataTable) (malformedCount int, defaulted bool) {
	if table == nil {
		return 0, false
	}

	sourceColumn := ""
	for _, column := range table.Columns {
		matched := true
		for _, marker := range meta.OrderValueMarkers {
			if !strings.Contains(column, marker) {
				matched = false
				break
			}
		}
		if matched {
			sourceColumn = column
			break
		}
	}

	if sourceColumn == "" {
		table.AddColumn(meta.FieldOrderValue, float64(0))
		return 0, true
	}

	cleanedValues := make([]interface{}, table.RowCount())
	numericValues := make([]interface{}, table.RowCount())
	for i, row := range table.Rows {
		raw := row[sourceColumn]
		cleanedValues[i] = c.StripCurrency(cast.ToString(raw))

		value, ok := c.coerceChecked(raw)
		if !ok {
			malformedCount++
		}
		numericValues[i] = value
	}

	table.SetColumn(meta.FieldOrderValueCleaned, cleanedValues)
	table.SetColumn(meta.FieldOrderValue, numericValues)
	return malformedCount, false
}
