/*
 * @module api/middleware/api_key_auth
 * @description API密钥鉴权中间件，验证请求头中的密钥并注入上下文
 * @architecture 中间件模式 - HTTP请求拦截和验证
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 密钥提取 -> 密钥验证 -> 上下文注入 -> 下一个处理器
 * @rules 统一鉴权、安全验证、错误处理；AUTH_ENABLED=false时全部放行
 * @dependencies net/http, strings, context
 * @refs service/api_key_service.go, api/routes.go
 */

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/render"

	"greenroute-service/service"
	"greenroute-service/service/models"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	// ApiKeyContextKey 验证通过的密钥在上下文中的键
	ApiKeyContextKey ContextKey = "api_key"
)

// ApiKeyAuthMiddleware API密钥认证中间件
type ApiKeyAuthMiddleware struct {
	enabled bool
	// 验证结果缓存，避免每个请求都做bcrypt比对
	cache      map[string]*cacheEntry
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	// 白名单路径（不需要鉴权）
	whitelistPaths []string
}

// cacheEntry 缓存条目
type cacheEntry struct {
	apiKey    *models.ApiKey
	expiresAt time.Time
}

// NewApiKeyAuthMiddleware 创建API密钥认证中间件实例
func NewApiKeyAuthMiddleware() *ApiKeyAuthMiddleware {
	enabled := os.Getenv("AUTH_ENABLED") == "true"

	return &ApiKeyAuthMiddleware{
		enabled:  enabled,
		cache:    make(map[string]*cacheEntry),
		cacheTTL: 5 * time.Minute, // 缓存5分钟
		whitelistPaths: []string{
			"/health",  // 健康检查
			"/ready",   // 就绪检查
			"/swagger", // Swagger文档
			"/metrics", // Prometheus指标
			"/sse",     // SSE事件流
		},
	}
}

// Enabled 鉴权是否启用
func (m *ApiKeyAuthMiddleware) Enabled() bool {
	return m.enabled
}

// AddWhitelistPath 添加白名单路径
func (m *ApiKeyAuthMiddleware) AddWhitelistPath(path string) {
	m.whitelistPaths = append(m.whitelistPaths, path)
}

// IsWhitelistPath 检查路径是否在白名单中
func (m *ApiKeyAuthMiddleware) IsWhitelistPath(path string) bool {
	for _, whitelistPath := range m.whitelistPaths {
		// 支持前缀匹配
		if strings.HasPrefix(path, whitelistPath) {
			return true
		}
	}
	return false
}

// Middleware 认证中间件处理函数
func (m *ApiKeyAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		// 检查是否在白名单中
		if m.IsWhitelistPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// 提取密钥，优先X-API-Key头
		plainKey := r.Header.Get("X-API-Key")
		if plainKey == "" {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				plainKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if plainKey == "" {
			m.respondUnauthorized(w, r, "缺少API密钥，请通过X-API-Key头或Bearer Token传递")
			return
		}

		// 先检查缓存
		if apiKey := m.getFromCache(plainKey); apiKey != nil {
			ctx := context.WithValue(r.Context(), ApiKeyContextKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// 验证密钥
		apiKey, err := service.GlobalApiKeyService.VerifyApiKey(r.Context(), plainKey)
		if err != nil {
			m.respondUnauthorized(w, r, fmt.Sprintf("密钥验证失败: %v", err))
			return
		}

		// 保存到缓存
		m.saveToCache(plainKey, apiKey)

		// 将密钥信息注入到上下文中
		ctx := context.WithValue(r.Context(), ApiKeyContextKey, apiKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope 创建一个需要特定作用域的中间件
func (m *ApiKeyAuthMiddleware) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.enabled {
				next.ServeHTTP(w, r)
				return
			}

			apiKey, ok := GetApiKeyFromContext(r.Context())
			if !ok {
				m.respondUnauthorized(w, r, "未找到密钥信息")
				return
			}

			if !apiKey.HasScope(scope) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, map[string]interface{}{
					"status":  http.StatusForbidden,
					"message": fmt.Sprintf("缺少所需作用域: %s", scope),
					"error":   "Forbidden",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getFromCache 从缓存中获取验证结果
func (m *ApiKeyAuthMiddleware) getFromCache(plainKey string) *models.ApiKey {
	m.cacheMutex.RLock()
	defer m.cacheMutex.RUnlock()

	entry, exists := m.cache[plainKey]
	if !exists {
		return nil
	}

	// 检查是否过期
	if time.Now().After(entry.expiresAt) {
		// 异步删除过期缓存
		go m.removeFromCache(plainKey)
		return nil
	}

	return entry.apiKey
}

// saveToCache 保存验证结果到缓存
func (m *ApiKeyAuthMiddleware) saveToCache(plainKey string, apiKey *models.ApiKey) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	// 缓存过期时间不超过密钥自身的过期时间
	cacheExpiry := time.Now().Add(m.cacheTTL)
	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(cacheExpiry) {
		cacheExpiry = *apiKey.ExpiresAt
	}

	m.cache[plainKey] = &cacheEntry{
		apiKey:    apiKey,
		expiresAt: cacheExpiry,
	}
}

// removeFromCache 从缓存中删除密钥
func (m *ApiKeyAuthMiddleware) removeFromCache(plainKey string) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	delete(m.cache, plainKey)
}

// ClearExpiredCache 清理过期缓存（可以定期调用）
func (m *ApiKeyAuthMiddleware) ClearExpiredCache() int {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	now := time.Now()
	clearedCount := 0

	for plainKey, entry := range m.cache {
		if now.After(entry.expiresAt) {
			delete(m.cache, plainKey)
			clearedCount++
		}
	}

	return clearedCount
}

// respondUnauthorized 返回401未授权响应
func (m *ApiKeyAuthMiddleware) respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	render.JSON(w, r, map[string]interface{}{
		"status":  http.StatusUnauthorized,
		"message": message,
		"error":   "Unauthorized",
	})
}

// GetApiKeyFromContext 从上下文中获取验证通过的密钥
func GetApiKeyFromContext(ctx context.Context) (*models.ApiKey, bool) {
	apiKey, ok := ctx.Value(ApiKeyContextKey).(*models.ApiKey)
	return apiKey, ok
}
