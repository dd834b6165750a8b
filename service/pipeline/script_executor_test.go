/*
 * @module service/pipeline/script_executor_test
 * @description 预处理脚本执行器测试，覆盖脚本转换、入口校验、失败分类和编译缓存
 * @architecture 测试层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第10节
 * @stateFlow 构造脚本 -> 执行转换 -> 断言行集与错误
 * @rules 损坏的脚本必须报错中止，不允许静默放行原始数据
 * @dependencies testing, testify
 * @refs script_executor.go
 */

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addColumnScript = `
func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	for _, row := range rows {
		row["flagged"] = true
	}
	return rows, nil
}
`

const upperPriorityScript = `
func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if v, ok := row["priority"].(string); ok {
			row["priority"] = strings.ToUpper(v)
		}
		out = append(out, row)
	}
	return out, nil
}
`

const filterRowsScript = `
func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	out := []map[string]interface{}{}
	for _, row := range rows {
		if row["priority"] != "Low" {
			out = append(out, row)
		}
	}
	return out, nil
}
`

func sampleRows() []map[string]interface{} {
	return []map[string]interface{}{
		{"id": "ORD-1", "priority": "high"},
		{"id": "ORD-2", "priority": "Low"},
	}
}

func TestScriptExecutorTransform(t *testing.T) {
	executor := NewScriptExecutor()

	t.Run("空脚本原样放行", func(t *testing.T) {
		rows := sampleRows()
		result, err := executor.Transform("", rows)
		require.NoError(t, err)
		assert.Equal(t, rows, result)
	})

	t.Run("脚本追加列", func(t *testing.T) {
		result, err := executor.Transform(addColumnScript, sampleRows())
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, true, result[0]["flagged"])
		assert.Equal(t, true, result[1]["flagged"])
	})

	t.Run("脚本可使用预置标准库", func(t *testing.T) {
		result, err := executor.Transform(upperPriorityScript, sampleRows())
		require.NoError(t, err)
		assert.Equal(t, "HIGH", result[0]["priority"])
	})

	t.Run("脚本过滤行", func(t *testing.T) {
		result, err := executor.Transform(filterRowsScript, sampleRows())
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "ORD-1", result[0]["id"])
	})
}

func TestScriptExecutorFailures(t *testing.T) {
	executor := NewScriptExecutor()

	tests := []struct {
		name        string
		script      string
		errContains string
	}{
		{
			name:        "语法错误",
			script:      "func Transform(rows []map[string]interface{}) (",
			errContains: "编译失败",
		},
		{
			name: "缺少Transform入口",
			script: `
func Process(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	return rows, nil
}
`,
			errContains: "Transform",
		},
		{
			name: "入口签名不符",
			script: `
func Transform(n int) int {
	return n
}
`,
			errContains: "签名不符",
		},
		{
			name: "脚本返回错误",
			script: `
func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	return nil, fmt.Errorf("上游数据损坏")
}
`,
			errContains: "执行失败",
		},
		{
			name: "脚本返回空行集",
			script: `
func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}
`,
			errContains: "空行集",
		},
		{
			name: "脚本自带import声明被拒绝",
			script: `
import "os"

func Transform(rows []map[string]interface{}) ([]map[string]interface{}, error) {
	return rows, nil
}
`,
			errContains: "import",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := executor.Transform(tt.script, sampleRows())
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestScriptExecutorCompileCache(t *testing.T) {
	executor := NewScriptExecutor()

	_, err := executor.Transform(addColumnScript, sampleRows())
	require.NoError(t, err)

	executor.mu.RLock()
	cacheSize := len(executor.cache)
	executor.mu.RUnlock()
	assert.Equal(t, 1, cacheSize)

	// 相同脚本复用缓存条目
	_, err = executor.Transform(addColumnScript, sampleRows())
	require.NoError(t, err)

	executor.mu.RLock()
	cacheSize = len(executor.cache)
	executor.mu.RUnlock()
	assert.Equal(t, 1, cacheSize)

	// 不同脚本产生新条目
	_, err = executor.Transform(upperPriorityScript, sampleRows())
	require.NoError(t, err)

	executor.mu.RLock()
	cacheSize = len(executor.cache)
	executor.mu.RUnlock()
	assert.Equal(t, 2, cacheSize)
}

func TestScriptExecutorValidate(t *testing.T) {
	executor := NewScriptExecutor()

	assert.NoError(t, executor.Validate(""))
	assert.NoError(t, executor.Validate(addColumnScript))
	assert.Error(t, executor.Validate("func Transform("))
	assert.Error(t, executor.Validate(`
func Transform(n int) int {
	return n
}
`))
}