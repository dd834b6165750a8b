/*
 * @module service/loader/csv_loader
 * @description CSV数据装载器，负责读取数据源文件并构建内存数据表，支持BOM剥离、GBK回退和数值类型推断
 * @architecture 装载器模式 - 文件字节流到数据表的单向转换
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第2节
 * @stateFlow 文件读取 -> 编码归一 -> CSV解析 -> 列类型推断 -> 数据表构建
 * @rules
 *   - 首行作为列头，空文件视为装载失败
 *   - 行宽不足按空值补齐，超宽部分丢弃
 *   - 空单元格统一表示为缺失值
 *   - 全数值列转换为浮点类型，其余保持字符串
 * @dependencies encoding/csv
 * @refs service/pipeline/data_table.go, service/utils/data_converter.go
 */

package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"greenroute-service/service/pipeline"
	"greenroute-service/service/utils"
)

// utf8BOM UTF-8字节序标记，Excel导出文件常见前缀
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVLoader CSV装载器
type CSVLoader struct {
	converter *utils.DataConverter
}

// NewCSVLoader 创建CSV装载器
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{
		converter: utils.NewDataConverter(),
	}
}

// LoadFile 从磁盘读取CSV文件并构建数据表，表名取文件名（不含扩展名）
func (l *CSVLoader) LoadFile(path string) (*pipeline.DataTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pipeline.NewMissingInputFileError(filepath.Base(path), err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return l.LoadBytes(name, data)
}

// LoadBytes 从字节流解析CSV并构建数据表
func (l *CSVLoader) LoadBytes(name string, data []byte) (*pipeline.DataTable, error) {
	// 1. 编码归一：剥离BOM，非法UTF-8按GBK回退
	data = bytes.TrimPrefix(data, utf8BOM)
	data = l.converter.EnsureUTF8(data)

	// 2. CSV解析，允许变长行
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, pipeline.NewUnexpectedError(fmt.Sprintf("解析CSV文件 %s 失败", name), err)
	}
	if len(records) == 0 {
		return nil, pipeline.NewUnexpectedError(fmt.Sprintf("CSV文件 %s 为空", name), nil)
	}

	// 3. 首行作为列头
	headers := records[0]
	columns := make([]string, len(headers))
	copy(columns, headers)

	// 4. 行归一：不足补空，超宽截断
	rawRows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		rawRows = append(rawRows, row)
	}

	// 5. 列类型推断：全数值列转浮点，空单元格统一为缺失值
	numericColumn := make([]bool, len(columns))
	for i := range columns {
		numericColumn[i] = l.isNumericColumn(rawRows, i)
	}

	table := pipeline.NewDataTable(name, columns)
	for _, raw := range rawRows {
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = l.parseCell(raw[i], numericColumn[i])
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// isNumericColumn 判断列内所有非空单元格是否均可解析为数值
func (l *CSVLoader) isNumericColumn(rows [][]string, index int) bool {
	seen := false
	for _, row := range rows {
		cell := strings.TrimSpace(row[index])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// parseCell 单元格解析：空为缺失，数值列转浮点，其余保持原始字符串
func (l *CSVLoader) parseCell(cell string, numeric bool) interface{} {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if numeric {
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return v
		}
		return nil
	}
	return cell
}
