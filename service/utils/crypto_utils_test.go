/*
 * @module service/utils/crypto_utils_test
 * @description 加密工具函数单元测试
 * @architecture 测试层 - 纯函数测试，无外部依赖
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第8.3节
 * @stateFlow 输入参数 -> 函数调用 -> 输出验证
 * @rules 确保哈希的确定性和密钥生成的随机性
 * @dependencies testing, testify
 * @refs crypto_utils.go
 */

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMD5Hash(t *testing.T) {
	cu := NewCryptoUtils()

	t.Run("已知输入的哈希值", func(t *testing.T) {
		// md5("hello") 的标准值
		assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", cu.MD5Hash("hello"))
	})

	t.Run("相同输入产生相同哈希", func(t *testing.T) {
		input := "orders.csv|1024|1700000000"
		assert.Equal(t, cu.MD5Hash(input), cu.MD5Hash(input))
	})

	t.Run("不同输入产生不同哈希", func(t *testing.T) {
		assert.NotEqual(t, cu.MD5Hash("orders.csv|1024|1"), cu.MD5Hash("orders.csv|1024|2"))
	})

	t.Run("哈希值为32位十六进制", func(t *testing.T) {
		assert.Len(t, cu.MD5Hash("anything"), 32)
	})
}

func TestSHA256Hash(t *testing.T) {
	cu := NewCryptoUtils()

	// sha256("hello") 的标准值
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		cu.SHA256Hash("hello"))
	assert.Len(t, cu.SHA256Hash("anything"), 64)
}

func TestGenerateKeyString(t *testing.T) {
	cu := NewCryptoUtils()

	t.Run("默认长度", func(t *testing.T) {
		key, err := cu.GenerateKeyString(0)
		require.NoError(t, err)
		assert.Len(t, key, 64) // 32字节的十六进制表示
	})

	t.Run("指定长度", func(t *testing.T) {
		key, err := cu.GenerateKeyString(16)
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("两次生成不相同", func(t *testing.T) {
		key1, err := cu.GenerateKeyString(16)
		require.NoError(t, err)
		key2, err := cu.GenerateKeyString(16)
		require.NoError(t, err)
		assert.NotEqual(t, key1, key2)
	})
}
