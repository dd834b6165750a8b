/**
 * @module crypto_utils
 * @description 加密工具模块，负责文件指纹哈希与接口密钥生成
 * @architecture 加密工具集模式，提供无状态哈希和随机密钥方法
 * @documentReference 参考 ai_docs/greenroute_pipeline_impl.md 第8.3节
 * @stateFlow 无状态计算：输入 -> 哈希/随机源 -> 输出
 * @rules
 *   - 指纹哈希只用于变更检测，不用于安全场景
 *   - 接口密钥必须使用安全随机数生成
 * @dependencies
 *   - crypto/md5: 指纹哈希
 *   - crypto/sha256: 哈希算法
 *   - crypto/rand: 安全随机数
 * @refs
 *   - service/loader/*: 文件指纹
 *   - service/api_key_service.go: 接口密钥
 */

package utils

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CryptoUtils 加密工具
type CryptoUtils struct{}

// NewCryptoUtils 创建新的加密工具实例
func NewCryptoUtils() *CryptoUtils {
	return &CryptoUtils{}
}

// MD5Hash MD5哈希
func (cu *CryptoUtils) MD5Hash(data string) string {
	hasher := md5.New()
	hasher.Write([]byte(data))
	return hex.EncodeToString(hasher.Sum(nil))
}

// SHA256Hash SHA256哈希
func (cu *CryptoUtils) SHA256Hash(data string) string {
	hasher := sha256.New()
	hasher.Write([]byte(data))
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateKey 生成随机密钥
func (cu *CryptoUtils) GenerateKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32 // 默认32字节
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("生成密钥失败: %v", err)
	}

	return key, nil
}

// GenerateKeyString 生成随机密钥字符串
func (cu *CryptoUtils) GenerateKeyString(length int) (string, error) {
	key, err := cu.GenerateKey(length)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(key), nil
}
