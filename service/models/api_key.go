/*
 * @module service/models/api_key
 * @description 接口密钥模型定义，密钥仅存储哈希值，明文只在创建时返回一次
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 密钥创建(active) -> 使用计数更新 -> 吊销(revoked)/过期
 * @rules 密钥明文不落库，前缀用于快速识别，作用域控制可访问的操作
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs api/middleware/api_key_auth.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 密钥作用域
const (
	ApiKeyScopeRead  = "read"  // 查询结果、看板和运行记录
	ApiKeyScopeWrite = "write" // 触发运行、管理数据集
	ApiKeyScopeAdmin = "admin" // 密钥管理和系统配置
)

// ApiKey API密钥模型
type ApiKey struct {
	ID           string           `gorm:"type:uuid;primary_key" json:"id"`
	Name         string           `gorm:"not null" json:"name"`              // ApiKey名称
	KeyPrefix    string           `gorm:"not null;size:8" json:"key_prefix"` // Key的前缀，用于快速识别
	KeyValueHash string           `gorm:"not null;unique" json:"-"`          // 存储Hash后的Key值
	Description  string           `json:"description"`
	Scopes       JSONBStringArray `gorm:"type:jsonb" json:"scopes"`                // 作用域列表，空表示只读
	Status       string           `gorm:"not null;default:'active'" json:"status"` // active, inactive, revoked
	ExpiresAt    *time.Time       `json:"expires_at"`
	LastUsedAt   *time.Time       `json:"last_used_at"`
	UsageCount   int64            `gorm:"default:0" json:"usage_count"`
	CreatedBy    string           `gorm:"size:100" json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	UpdatedBy    string           `gorm:"size:100" json:"updated_by"`
}

// TableName 指定表名
func (ApiKey) TableName() string {
	return "api_keys"
}

// BeforeCreate 创建前钩子
func (ak *ApiKey) BeforeCreate(tx *gorm.DB) error {
	if ak.ID == "" {
		ak.ID = uuid.New().String()
	}
	if ak.CreatedBy == "" {
		ak.CreatedBy = "system"
	}
	if ak.UpdatedBy == "" {
		ak.UpdatedBy = "system"
	}
	return nil
}

// IsExpired 判断密钥是否已过期
func (ak *ApiKey) IsExpired() bool {
	return ak.ExpiresAt != nil && time.Now().After(*ak.ExpiresAt)
}

// HasScope 判断密钥是否具备指定作用域，admin隐含全部作用域
func (ak *ApiKey) HasScope(scope string) bool {
	for _, s := range ak.Scopes {
		if s == scope || s == ApiKeyScopeAdmin {
			return true
		}
	}
	// 未配置作用域时默认只读
	return len(ak.Scopes) == 0 && scope == ApiKeyScopeRead
}
