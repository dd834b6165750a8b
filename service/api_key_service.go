/*
 * @module service/api_key_service
 * @description API密钥管理服务，密钥创建时返回一次明文，之后仅凭哈希验证
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 密钥创建(active) -> 验证与使用计数 -> 吊销(revoked)
 * @rules 明文密钥不落库，按前缀检索候选后用bcrypt比对
 * @dependencies golang.org/x/crypto/bcrypt
 * @refs api/middleware/api_key_auth.go, api/controllers/api_key_controller.go
 */

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"greenroute-service/service/models"
	"greenroute-service/service/utils"
)

// ApiKeyService API密钥管理服务
type ApiKeyService struct {
	db     *gorm.DB
	crypto *utils.CryptoUtils
}

// NewApiKeyService 创建API密钥管理服务实例
func NewApiKeyService(db *gorm.DB) *ApiKeyService {
	return &ApiKeyService{
		db:     db,
		crypto: utils.NewCryptoUtils(),
	}
}

// CreateApiKey 创建API密钥，返回的明文密钥只在此处出现一次
func (s *ApiKeyService) CreateApiKey(ctx context.Context, name, description string, scopes []string, expiresAt *time.Time) (*models.ApiKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", errors.New("密钥名称不能为空")
	}
	for _, scope := range scopes {
		if scope != models.ApiKeyScopeRead && scope != models.ApiKeyScopeWrite && scope != models.ApiKeyScopeAdmin {
			return nil, "", fmt.Errorf("不支持的作用域: %s", scope)
		}
	}

	plainKey, err := s.crypto.GenerateKeyString(32)
	if err != nil {
		return nil, "", fmt.Errorf("生成密钥失败: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("密钥加密失败: %w", err)
	}

	apiKey := &models.ApiKey{
		Name:         name,
		KeyPrefix:    plainKey[:8],
		KeyValueHash: string(hashed),
		Description:  description,
		Scopes:       models.JSONBStringArray(scopes),
		ExpiresAt:    expiresAt,
	}

	if err := s.db.WithContext(ctx).Create(apiKey).Error; err != nil {
		return nil, "", fmt.Errorf("保存密钥失败: %w", err)
	}

	return apiKey, plainKey, nil
}

// VerifyApiKey 验证明文密钥，成功时更新使用统计
func (s *ApiKeyService) VerifyApiKey(ctx context.Context, plainKey string) (*models.ApiKey, error) {
	if len(plainKey) < 8 {
		return nil, errors.New("密钥格式无效")
	}

	// 前缀非唯一，同前缀的候选逐一比对
	var candidates []models.ApiKey
	if err := s.db.WithContext(ctx).
		Where("key_prefix = ? AND status = ?", plainKey[:8], "active").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("查询密钥失败: %w", err)
	}

	for i := range candidates {
		key := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(key.KeyValueHash), []byte(plainKey)) != nil {
			continue
		}
		if key.IsExpired() {
			return nil, errors.New("密钥已过期")
		}

		now := time.Now()
		if err := s.db.WithContext(ctx).Model(key).Updates(map[string]interface{}{
			"last_used_at": &now,
			"usage_count":  gorm.Expr("usage_count + 1"),
		}).Error; err == nil {
			key.LastUsedAt = &now
			key.UsageCount++
		}

		return key, nil
	}

	return nil, errors.New("密钥验证失败")
}

// GetApiKeys 分页查询API密钥列表
func (s *ApiKeyService) GetApiKeys(ctx context.Context, page, pageSize int, status string) ([]models.ApiKey, int64, error) {
	var keys []models.ApiKey
	var total int64

	query := s.db.WithContext(ctx).Model(&models.ApiKey{})

	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, 0, err
	}

	return keys, total, nil
}

// GetApiKeyByID 按ID查询API密钥
func (s *ApiKeyService) GetApiKeyByID(ctx context.Context, id string) (*models.ApiKey, error) {
	var key models.ApiKey
	if err := s.db.WithContext(ctx).First(&key, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("密钥不存在: %s", id)
		}
		return nil, err
	}
	return &key, nil
}

// RevokeApiKey 吊销API密钥
func (s *ApiKeyService) RevokeApiKey(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.ApiKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     "revoked",
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("吊销密钥失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("密钥不存在: %s", id)
	}
	return nil
}

// DeleteApiKey 删除API密钥
func (s *ApiKeyService) DeleteApiKey(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.ApiKey{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("删除密钥失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("密钥不存在: %s", id)
	}
	return nil
}
