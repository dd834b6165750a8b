/**
 * @module data_converter
 * @description 数据转换工具模块，负责类型转换、编码转换和时间解析
 * @architecture 工具函数模式，提供无状态转换方法集合
 * @documentReference 参考 ai_docs/greenroute_pipeline_impl.md 第6.2节
 * @stateFlow 无状态转换：输入 -> 转换逻辑 -> 输出
 * @rules
 *   - 转换操作需要处理异常情况
 *   - 类型转换需要保证数据精度
 *   - 编码转换支持GBK/GB2312历史导出文件
 *   - 时间解析按布局列表逐个尝试
 * @dependencies
 *   - golang.org/x/text: GBK编码转换
 *   - time: 时间处理
 *   - strconv: 字符串转换
 * @refs
 *   - service/loader/*: 数据装载
 *   - service/analytics/*: 看板聚合
 */

package utils

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// DataConverter 数据转换器
type DataConverter struct{}

// NewDataConverter 创建新的数据转换器实例
func NewDataConverter() *DataConverter {
	return &DataConverter{}
}

// ToString 转换为字符串
func (dc *DataConverter) ToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// ToFloat 转换为浮点数
func (dc *DataConverter) ToFloat(value interface{}) (float64, error) {
	if value == nil {
		return 0, fmt.Errorf("nil值无法转换为浮点数")
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int, int8, int16, int32, int64:
		return float64(reflect.ValueOf(v).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(v).Uint()), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return 0, fmt.Errorf("无法将类型 %T 转换为浮点数", value)
	}
}

// ConvertEncoding 编码转换，支持GBK/GB2312与UTF-8互转
func (dc *DataConverter) ConvertEncoding(data []byte, fromEncoding, toEncoding string) ([]byte, error) {
	switch strings.ToLower(fromEncoding) {
	case "gbk", "gb2312":
		if strings.ToLower(toEncoding) == "utf-8" {
			decoder := simplifiedchinese.GBK.NewDecoder()
			result, _, err := transform.Bytes(decoder, data)
			return result, err
		}
	case "utf-8":
		if strings.ToLower(toEncoding) == "gbk" || strings.ToLower(toEncoding) == "gb2312" {
			encoder := simplifiedchinese.GBK.NewEncoder()
			result, _, err := transform.Bytes(encoder, data)
			return result, err
		}
	}

	// 默认情况下，如果不需要转换或不支持的编码，返回原数据
	return data, nil
}

// EnsureUTF8 保证字节流为合法UTF-8，非法时按GBK历史导出文件回退解码
func (dc *DataConverter) EnsureUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	if converted, err := dc.ConvertEncoding(data, "gbk", "utf-8"); err == nil && utf8.Valid(converted) {
		return converted
	}
	return data
}

// ParseTime 按布局列表解析时间字符串，用户布局优先于默认布局
func (dc *DataConverter) ParseTime(timeStr string, layouts []string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, fmt.Errorf("时间字符串为空")
	}

	// 默认时间格式
	defaultLayouts := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"02-01-2006",
	}

	allLayouts := append(layouts, defaultLayouts...)

	for _, layout := range allLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(timeStr)); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("无法解析时间字符串: %s", timeStr)
}

// FormatTime 格式化时间
func (dc *DataConverter) FormatTime(t time.Time, layout string) string {
	if layout == "" {
		layout = "2006-01-02 15:04:05"
	}
	return t.Format(layout)
}
