/*
 * @module service/loader/fingerprint
 * @description 数据源文件指纹计算器，基于文件路径、大小和修改时间生成变更检测指纹
 * @architecture 工具模式 - 文件元信息到摘要的单向计算
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第4节
 * @stateFlow 文件列表 -> 逐个Stat -> 元信息拼接 -> MD5摘要
 * @rules
 *   - 指纹只依赖文件元信息，不读取文件内容
 *   - 缺失文件参与指纹计算并标记为missing
 *   - 同一文件集合在未变更时指纹稳定
 * @dependencies crypto/md5
 * @refs service/cache/result_cache.go, service/scheduler/refresh_scheduler.go
 */

package loader

import (
	"fmt"
	"os"
	"strings"

	"greenroute-service/service/utils"
)

// Fingerprinter 文件指纹计算器
type Fingerprinter struct {
	crypto *utils.CryptoUtils
}

// NewFingerprinter 创建文件指纹计算器
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{
		crypto: utils.NewCryptoUtils(),
	}
}

// Compute 计算文件集合的指纹，路径顺序参与计算，调用方需保证顺序稳定
func (f *Fingerprinter) Compute(paths []string) string {
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, f.describeFile(path))
	}
	return f.crypto.MD5Hash(strings.Join(parts, ";"))
}

// describeFile 生成单个文件的元信息描述
func (f *Fingerprinter) describeFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("%s|missing", path)
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}
