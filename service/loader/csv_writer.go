/*
 * @module service/loader/csv_writer
 * @description CSV导出器，负责将数据表序列化为UTF-8编码的CSV字节流
 * @architecture 序列化器模式 - 数据表到字节流的单向转换
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第2节
 * @stateFlow 数据表 -> 逐行格式化 -> CSV写出
 * @rules
 *   - 列顺序与数据表列顺序一致，不输出行索引
 *   - 缺失值输出为空字符串
 *   - 浮点值使用最短精确表示
 * @dependencies encoding/csv
 * @refs service/pipeline/data_table.go
 */

package loader

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"greenroute-service/service/pipeline"
	"greenroute-service/service/utils"
)

// CSVWriter CSV导出器
type CSVWriter struct {
	converter *utils.DataConverter
}

// NewCSVWriter 创建CSV导出器
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{
		converter: utils.NewDataConverter(),
	}
}

// WriteTable 将数据表序列化为CSV字节流
func (w *CSVWriter) WriteTable(table *pipeline.DataTable) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(table.Columns); err != nil {
		return nil, pipeline.NewUnexpectedError("写出CSV列头失败", err)
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = w.formatCell(row[col])
		}
		if err := writer.Write(record); err != nil {
			return nil, pipeline.NewUnexpectedError("写出CSV数据行失败", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, pipeline.NewUnexpectedError("刷新CSV缓冲失败", err)
	}

	return buf.Bytes(), nil
}

// formatCell 单元格格式化：缺失为空，浮点取最短精确表示
func (w *CSVWriter) formatCell(value interface{}) string {
	if pipeline.IsMissing(value) {
		return ""
	}
	if f, ok := value.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return w.converter.ToString(value)
}
