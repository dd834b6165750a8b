/*
 * @module service/pipeline/metric_engine
 * @description 可持续性指标派生引擎，计算单均碳排放与单位订单价值碳成本，并保证输出关系无缺失值
 * @architecture 流水线阶段 - 列均值填补 + 行级派生 + 全表稠密化
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 均值填补 -> 碳排放计算 -> CCPV计算 -> 除零归零 -> 全表缺失值填充
 * @rules 两个派生指标必须是有限数值；除数为零或结果非有限时CCPV归零（行保留）；
 *        最终输出数值列缺失补0、文本列缺失补空串
 * @dependencies math, github.com/spf13/cast
 * @refs merge_engine.go, service/meta/canonical_fields.go
 */

package pipeline

import (
	"math"

	"github.com/spf13/cast"

	"greenroute-service/service/meta"
)

// MetricEngine 指标派生引擎
type MetricEngine struct{}

// NewMetricEngine 创建指标派生引擎
func NewMetricEngine() *MetricEngine {
	return &MetricEngine{}
}

// MetricStatistics 指标派生统计
type MetricStatistics struct {
	ImputedDistanceCount int `json:"imputed_distance_count"` // 距离均值填补行数
	ImputedCO2Count      int `json:"imputed_co2_count"`      // 排放系数均值填补行数
	ZeroDivisorCount     int `json:"zero_divisor_count"`     // CCPV除零归零行数
	FilledCellCount      int `json:"filled_cell_count"`      // 稠密化阶段填充的单元格数
}

// DeriveMetrics 在合并结果上派生指标并稠密化，派生依赖的列缺失时返回致命错误
func (e *MetricEngine) DeriveMetrics(table *DataTable) (*MetricStatistics, error) {
	if !table.HasColumn(meta.FieldDistanceKm) {
		return nil, NewUnexpectedError("合并结果缺少距离列 "+meta.FieldDistanceKm+"，无法计算碳排放", nil)
	}
	if !table.HasColumn(meta.FieldCO2Factor) {
		return nil, NewUnexpectedError("合并结果缺少排放系数列 "+meta.FieldCO2Factor+"，无法计算碳排放", nil)
	}
	if !table.HasColumn(meta.FieldOrderValue) {
		return nil, NewUnexpectedError("合并结果缺少订单价值列 "+meta.FieldOrderValue+"，无法计算CCPV", nil)
	}

	stats := &MetricStatistics{}

	// 1. 距离与排放系数列均值填补
	stats.ImputedDistanceCount = e.imputeWithMean(table, meta.FieldDistanceKm)
	stats.ImputedCO2Count = e.imputeWithMean(table, meta.FieldCO2Factor)

	// 2. 单均碳排放总量 = 距离 × 排放系数
	totals := make([]interface{}, table.RowCount())
	for i, row := range table.Rows {
		distance := asFloat(row[meta.FieldDistanceKm])
		factor := asFloat(row[meta.FieldCO2Factor])
		totals[i] = distance * factor
	}
	table.SetColumn(meta.FieldTotalCO2, totals)

	// 3. CCPV = 碳排放总量 / 订单价值，除零和非有限结果归零
	ccpvValues := make([]interface{}, table.RowCount())
	for i, row := range table.Rows {
		total := asFloat(row[meta.FieldTotalCO2])
		orderValue := asFloat(row[meta.FieldOrderValue])

		ccpv := float64(0)
		if orderValue != 0 {
			ccpv = total / orderValue
		}
		if orderValue == 0 || math.IsInf(ccpv, 0) || math.IsNaN(ccpv) {
			ccpv = 0
			stats.ZeroDivisorCount++
		}
		ccpvValues[i] = ccpv
	}
	table.SetColumn(meta.FieldCCPV, ccpvValues)

	// 4. 全表稠密化，输出关系不允许遗留缺失值
	stats.FilledCellCount = e.fillMissing(table)

	return stats, nil
}

// imputeWithMean 对数值列做均值填补，无法解释为数值的取值一并视为缺失
// 整列缺失时均值取0，返回填补的行数
func (e *MetricEngine) imputeWithMean(table *DataTable, column string) int {
	sum := float64(0)
	presentCount := 0
	for _, row := range table.Rows {
		if value, ok := asFloatChecked(row[column]); ok {
			sum += value
			presentCount++
		}
	}

	mean := float64(0)
	if presentCount > 0 {
		mean = sum / float64(presentCount)
	}

	imputedCount := 0
	for _, row := range table.Rows {
		if value, ok := asFloatChecked(row[column]); ok {
			row[column] = value
		} else {
			row[column] = mean
			imputedCount++
		}
	}
	return imputedCount
}

// fillMissing 填充全表剩余缺失值：存在文本取值的列补空串，其余列补0
func (e *MetricEngine) fillMissing(table *DataTable) int {
	filledCount := 0
	for _, column := range table.Columns {
		textColumn := false
		for _, row := range table.Rows {
			if value := row[column]; !IsMissing(value) {
				if _, isText := value.(string); isText {
					textColumn = true
					break
				}
			}
		}

		var fillValue interface{} = float64(0)
		if textColumn {
			fillValue = ""
		}

		for _, row := range table.Rows {
			if IsMissing(row[column]) {
				row[column] = fillValue
				filledCount++
			}
		}
	}
	return filledCount
}

// asFloat 将单元格取值解释为数值，缺失或不可解释时返回0
func asFloat(value interface{}) float64 {
	result, _ := asFloatChecked(value)
	return result
}

// asFloatChecked 将单元格取值解释为数值，ok为false表示缺失或不可解释
func asFloatChecked(value interface{}) (float64, bool) {
	if IsMissing(value) {
		return 0, false
	}
	result, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, false
	}
	return result, true
}
