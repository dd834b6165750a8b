/*
 * @module service/pipeline/script_executor
 * @description 数据集行级预处理脚本执行器，基于yaegi解释执行用户脚本，带编译缓存
 * @architecture 解释器模式 - 脚本包装为固定入口函数，按脚本哈希缓存编译结果
 * @documentReference ai_docs/greenroute_pipeline_impl.md
 * @stateFlow 脚本哈希 -> 缓存命中/编译 -> Transform入口调用 -> 返回转换后行集
 * @rules 脚本必须定义 Transform(rows) 入口；包装层预置 fmt/strings/strconv/time/sort，
 *        脚本自带import声明会与预置包冲突，编译前直接拒绝；
 *        脚本执行失败视为致命错误，不允许损坏的脚本静默放行原始数据
 * @dependencies github.com/traefik/yaegi/interp, github.com/traefik/yaegi/stdlib, crypto/sha1
 * @refs service/pipeline_service.go, service/models/dataset.go
 */

package pipeline

import (
	"crypto/sha1"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// RowTransformFunc 脚本入口函数签名，接收并返回行记录集
type RowTransformFunc func(rows []map[string]interface{}) ([]map[string]interface{}, error)

// compiledScript 编译缓存条目
type compiledScript struct {
	transform  RowTransformFunc
	compiledAt time.Time
}

// ScriptExecutor 预处理脚本执行器
type ScriptExecutor struct {
	mu    sync.RWMutex
	cache map[string]*compiledScript
}

// NewScriptExecutor 创建脚本执行器
func NewScriptExecutor() *ScriptExecutor {
	return &ScriptExecutor{
		cache: make(map[string]*compiledScript),
	}
}

// Transform 执行脚本转换行集，编译结果按脚本内容哈希缓存
func (e *ScriptExecutor) Transform(script string, rows []map[string]interface{}) ([]map[string]interface{}, error) {
	if script == "" {
		return rows, nil
	}

	hash := e.scriptHash(script)

	e.mu.RLock()
	compiled, exists := e.cache[hash]
	e.mu.RUnlock()

	if !exists {
		var err error
		compiled, err = e.compile(script)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.cache[hash] = compiled
		e.mu.Unlock()
	}

	transformed, err := compiled.transform(rows)
	if err != nil {
		return nil, fmt.Errorf("预处理脚本执行失败: %w", err)
	}
	if transformed == nil {
		return nil, fmt.Errorf("预处理脚本返回了空行集")
	}
	return transformed, nil
}

// Validate 校验脚本语法和入口函数签名，保存脚本前调用
func (e *ScriptExecutor) Validate(script string) error {
	if script == "" {
		return nil
	}
	_, err := e.compile(script)
	return err
}

// scriptImportPattern 匹配脚本自带的import声明
var scriptImportPattern = regexp.MustCompile(`(?m)^\s*import\b`)

// compile 编译脚本并提取Transform入口
func (e *ScriptExecutor) compile(script string) (*compiledScript, error) {
	if scriptImportPattern.MatchString(script) {
		return nil, fmt.Errorf("预处理脚本不允许自带import声明，包装层已预置 fmt、strings、strconv、time、sort")
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库符号失败: %w", err)
	}

	// 包装脚本：要求脚本必须实现一个 Transform 函数作为入口
	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"strings"
	"strconv"
	"time"
	"sort"
)

var _ = fmt.Sprintf
var _ = strings.TrimSpace
var _ = strconv.ParseFloat
var _ = time.Now
var _ = sort.Strings

%s
`, script)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("预处理脚本编译失败: %w", err)
	}

	value, err := i.Eval("main.Transform")
	if err != nil {
		return nil, fmt.Errorf("预处理脚本缺少 Transform 入口函数: %w", err)
	}

	transform, ok := value.Interface().(func([]map[string]interface{}) ([]map[string]interface{}, error))
	if !ok {
		return nil, fmt.Errorf("Transform 入口签名不符，期望 func(rows []map[string]interface{}) ([]map[string]interface{}, error)")
	}

	return &compiledScript{
		transform:  transform,
		compiledAt: time.Now(),
	}, nil
}

// scriptHash 计算脚本内容哈希，作为编译缓存键
func (e *ScriptExecutor) scriptHash(script string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(script)))
}
