/*
 * @module service/cache/result_cache
 * @description 合并结果缓存，按输入文件指纹缓存流水线输出，支持Redis后端和内存后端
 * @architecture 缓存层 - 接口加双实现，Redis不可用时降级为进程内缓存
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第4节
 * @stateFlow 指纹查询 -> 命中返回快照 / 未命中执行流水线 -> 回填缓存
 * @rules
 *   - 缓存键由数据集ID和文件指纹构成，文件变更天然失效
 *   - 缓存值为完整合并结果的JSON快照
 *   - 数据集失效操作按前缀清除所有历史指纹
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/pipeline_service.go, service/loader/fingerprint.go
 */

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"greenroute-service/service/pipeline"
)

// 缓存键前缀
const resultKeyPrefix = "greenroute:result:"

// ResultCache 合并结果缓存接口
type ResultCache interface {
	// Get 按键查询缓存的合并结果
	Get(ctx context.Context, key string) (*pipeline.MergeResult, bool, error)
	// Set 写入合并结果，ttl为零表示不过期
	Set(ctx context.Context, key string, result *pipeline.MergeResult, ttl time.Duration) error
	// Invalidate 清除指定数据集的全部缓存条目
	Invalidate(ctx context.Context, datasetID string) error
	// Ping 检查缓存后端可用性
	Ping(ctx context.Context) error
	// Close 释放底层连接
	Close() error
}

// CacheKey 构造缓存键，数据集ID加文件指纹
func CacheKey(datasetID, fingerprint string) string {
	return fmt.Sprintf("%s%s:%s", resultKeyPrefix, datasetID, fingerprint)
}

// NewResultCache 按环境变量创建缓存实例
// CACHE_BACKEND=memory 强制使用内存后端；默认尝试Redis，连接失败时降级
func NewResultCache() ResultCache {
	if getEnvWithDefault("CACHE_BACKEND", "redis") == "memory" {
		slog.Info("结果缓存使用内存后端")
		return NewMemoryResultCache()
	}

	redisCache, err := NewRedisResultCache()
	if err != nil {
		slog.Warn("Redis结果缓存初始化失败，降级为内存后端", "error", err)
		return NewMemoryResultCache()
	}

	return redisCache
}

// ==================== Redis后端 ====================

// RedisResultCache Redis结果缓存实现
type RedisResultCache struct {
	client *redis.Client
}

// NewRedisResultCache 创建Redis结果缓存
func NewRedisResultCache() (*RedisResultCache, error) {
	// 从环境变量读取Redis配置
	host := getEnvWithDefault("REDIS_HOST", "localhost")
	port := getEnvWithDefault("REDIS_PORT", "6379")
	password := os.Getenv("REDIS_PASSWORD")
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		fmt.Sscanf(dbStr, "%d", &db)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	slog.Info("Redis结果缓存初始化成功", "redis_host", host, "redis_port", port, "redis_db", db)

	return &RedisResultCache{client: client}, nil
}

// Get 按键查询缓存的合并结果
func (c *RedisResultCache) Get(ctx context.Context, key string) (*pipeline.MergeResult, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取结果缓存失败: %w", err)
	}

	var result pipeline.MergeResult
	if err := json.Unmarshal(data, &result); err != nil {
		// 快照损坏按未命中处理，并清掉坏键
		slog.Warn("结果缓存快照反序列化失败，按未命中处理", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, false, nil
	}

	return &result, true, nil
}

// Set 写入合并结果
func (c *RedisResultCache) Set(ctx context.Context, key string, result *pipeline.MergeResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化合并结果失败: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("写入结果缓存失败: %w", err)
	}
	return nil
}

// Invalidate 清除指定数据集的全部缓存条目，按前缀SCAN逐批删除
func (c *RedisResultCache) Invalidate(ctx context.Context, datasetID string) error {
	pattern := fmt.Sprintf("%s%s:*", resultKeyPrefix, datasetID)

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("扫描结果缓存失败: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("删除结果缓存失败: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// Ping 检查Redis连接
func (c *RedisResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭Redis客户端
func (c *RedisResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ==================== 内存后端 ====================

type memoryEntry struct {
	result    *pipeline.MergeResult
	expiresAt time.Time // 零值表示不过期
}

// MemoryResultCache 进程内结果缓存实现，单实例部署和测试环境使用
type MemoryResultCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryResultCache 创建内存结果缓存
func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{
		entries: make(map[string]memoryEntry),
	}
}

// Get 按键查询缓存的合并结果
func (c *MemoryResultCache) Get(ctx context.Context, key string) (*pipeline.MergeResult, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.result, true, nil
}

// Set 写入合并结果
func (c *MemoryResultCache) Set(ctx context.Context, key string, result *pipeline.MergeResult, ttl time.Duration) error {
	entry := memoryEntry{result: result}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Invalidate 清除指定数据集的全部缓存条目
func (c *MemoryResultCache) Invalidate(ctx context.Context, datasetID string) error {
	prefix := fmt.Sprintf("%s%s:", resultKeyPrefix, datasetID)

	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// Ping 内存后端始终可用
func (c *MemoryResultCache) Ping(ctx context.Context) error {
	return nil
}

// Close 关闭缓存
func (c *MemoryResultCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
