/*
 * @module service/pipeline/errors
 * @description 合并流水线错误分类定义，区分致命错误与本地降级恢复的异常
 * @architecture 错误分类模式 - 带错误码的类型化错误
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 错误捕获 -> 错误分类 -> 顶层上报 -> 运行记录落库
 * @rules 仅缺失输入文件、订单键不可解析、未知异常三类为致命错误；
 *        格式异常取值和缺失可选列走默认值降级，不作为错误向上传播
 * @dependencies errors, fmt
 * @refs merge_engine.go, service/pipeline_service.go
 */

package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode 流水线错误码
type ErrorCode string

const (
	// ErrCodeMissingInputFile 输入文件缺失或不可读，致命
	ErrCodeMissingInputFile ErrorCode = "missing_input_file"

	// ErrCodeUnresolvableKey 订单主键在必需数据集中无法解析，致命
	ErrCodeUnresolvableKey ErrorCode = "unresolvable_key"

	// ErrCodeUnexpected 其他未预期的处理异常，致命并携带原因
	ErrCodeUnexpected ErrorCode = "unexpected"
)

// PipelineError 流水线致命错误
type PipelineError struct {
	Code    ErrorCode `json:"code"`    // 错误码
	Message string    `json:"message"` // 面向用户的错误说明
	Cause   error     `json:"-"`       // 底层原因
}

// Error 实现 error 接口
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层原因，支持 errors.Is/As 链式判断
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewMissingInputFileError 创建输入文件缺失错误
func NewMissingInputFileError(fileName string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeMissingInputFile,
		Message: fmt.Sprintf("输入文件不可读: %s，请确认五个核心数据文件齐全", fileName),
		Cause:   cause,
	}
}

// NewUnresolvableKeyError 创建订单主键不可解析错误
func NewUnresolvableKeyError(datasetName string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeUnresolvableKey,
		Message: fmt.Sprintf("数据集 %s 中找不到订单主键的任何已知别名，无法建立合并关系", datasetName),
	}
}

// NewUnexpectedError 包装未预期的处理异常
func NewUnexpectedError(message string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeUnexpected,
		Message: message,
		Cause:   cause,
	}
}

// AsPipelineError 从错误链中提取流水线错误
func AsPipelineError(err error) (*PipelineError, bool) {
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr, true
	}
	return nil, false
}

// WrapIfNeeded 将普通错误包装为未预期流水线错误，已分类的错误原样返回
func WrapIfNeeded(err error, message string) *PipelineError {
	if err == nil {
		return nil
	}
	if pipelineErr, ok := AsPipelineError(err); ok {
		return pipelineErr
	}
	return NewUnexpectedError(message, err)
}
