/*
 * @module service/loader/fingerprint_test
 * @description 文件指纹计算器单元测试
 * @architecture 单元测试 - 文件元信息到指纹的验证
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第4节
 * @stateFlow 临时文件构造 -> 指纹计算 -> 稳定性和灵敏度验证
 * @rules 确保未变更集合指纹稳定、内容变更后指纹改变、缺失文件参与计算
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs fingerprint.go
 */

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprinter_Compute_Stable(t *testing.T) {
	f := NewFingerprinter()
	dir := t.TempDir()

	path := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\nA\n"), 0o644))

	first := f.Compute([]string{path})
	second := f.Compute([]string{path})

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestFingerprinter_Compute_ChangesWithContent(t *testing.T) {
	f := NewFingerprinter()
	dir := t.TempDir()

	path := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\nA\n"), 0o644))
	before := f.Compute([]string{path})

	// 追加内容改变文件大小，指纹必须变化
	require.NoError(t, os.WriteFile(path, []byte("id\nA\nB\n"), 0o644))
	after := f.Compute([]string{path})

	assert.NotEqual(t, before, after)
}

func TestFingerprinter_Compute_MissingFileParticipates(t *testing.T) {
	f := NewFingerprinter()
	dir := t.TempDir()

	existing := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(existing, []byte("id\nA\n"), 0o644))

	withMissing := f.Compute([]string{existing, filepath.Join(dir, "cost_breakdown.csv")})
	withoutMissing := f.Compute([]string{existing})

	assert.NotEqual(t, withMissing, withoutMissing)
}

func TestFingerprinter_Compute_OrderSensitive(t *testing.T) {
	f := NewFingerprinter()
	dir := t.TempDir()

	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("x\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("y\n2\n"), 0o644))

	assert.NotEqual(t, f.Compute([]string{a, b}), f.Compute([]string{b, a}))
}
