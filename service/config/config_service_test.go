/*
 * @module service/config/config_service_test
 * @description 配置服务单元测试，验证配置读写、默认值回退和缓存行为
 * @architecture 测试层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 构造内存数据库 -> 配置读写 -> 验证优先级
 * @rules 使用内存SQLite，测试完成后自动清理
 * @dependencies github.com/stretchr/testify
 * @refs service/config/config_service.go
 */

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenroute-service/service/models"
)

func setupConfigService(t *testing.T) (*ConfigService, *models.ModelTestDB) {
	t.Helper()
	testDB, err := models.NewModelTestDB()
	require.NoError(t, err, "创建测试数据库失败")
	t.Cleanup(func() { testDB.Close() })
	return NewConfigService(testDB.DB), testDB
}

func TestConfigService_SetAndGet(t *testing.T) {
	service, _ := setupConfigService(t)

	err := service.SetSystemConfig(ConfigKeyRunRetentionDays, "15", "测试配置")
	require.NoError(t, err)

	value, err := service.GetSystemConfig(ConfigKeyRunRetentionDays)
	require.NoError(t, err)
	assert.Equal(t, "15", value)

	// 更新已存在的配置
	err = service.SetSystemConfig(ConfigKeyRunRetentionDays, "45", "测试配置")
	require.NoError(t, err)

	value, err = service.GetSystemConfig(ConfigKeyRunRetentionDays)
	require.NoError(t, err)
	assert.Equal(t, "45", value)
}

func TestConfigService_GetMissingKey(t *testing.T) {
	service, _ := setupConfigService(t)

	_, err := service.GetSystemConfig("no_such_key")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestConfigService_EnvFallback(t *testing.T) {
	service, _ := setupConfigService(t)

	// 数据库未命中时回退到大写键名的环境变量
	t.Setenv("CACHE_TTL_SECONDS", "120")

	value, err := service.GetSystemConfig(ConfigKeyCacheTTLSeconds)
	require.NoError(t, err)
	assert.Equal(t, "120", value)

	// 数据库配置优先于环境变量
	err = service.SetSystemConfig(ConfigKeyCacheTTLSeconds, "600", "缓存过期秒数")
	require.NoError(t, err)

	value, err = service.GetSystemConfig(ConfigKeyCacheTTLSeconds)
	require.NoError(t, err)
	assert.Equal(t, "600", value)
}

func TestConfigService_TypedGetters(t *testing.T) {
	tests := []struct {
		name          string
		setupKey      string
		setupValue    string
		wantRetention int
		wantTTL       time.Duration
	}{
		{
			name:          "无配置时返回默认值",
			wantRetention: DefaultRunRetentionDays,
			wantTTL:       time.Duration(DefaultCacheTTLSeconds) * time.Second,
		},
		{
			name:          "保留天数取数据库值",
			setupKey:      ConfigKeyRunRetentionDays,
			setupValue:    "7",
			wantRetention: 7,
			wantTTL:       time.Duration(DefaultCacheTTLSeconds) * time.Second,
		},
		{
			name:          "非法值回退默认值",
			setupKey:      ConfigKeyRunRetentionDays,
			setupValue:    "not-a-number",
			wantRetention: DefaultRunRetentionDays,
			wantTTL:       time.Duration(DefaultCacheTTLSeconds) * time.Second,
		},
		{
			name:          "缓存过期秒数取数据库值",
			setupKey:      ConfigKeyCacheTTLSeconds,
			setupValue:    "90",
			wantRetention: DefaultRunRetentionDays,
			wantTTL:       90 * time.Second,
		},
		{
			name:          "负数保留天数回退默认值",
			setupKey:      ConfigKeyRunRetentionDays,
			setupValue:    "-1",
			wantRetention: DefaultRunRetentionDays,
			wantTTL:       time.Duration(DefaultCacheTTLSeconds) * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := setupConfigService(t)
			if tt.setupKey != "" {
				require.NoError(t, service.SetSystemConfig(tt.setupKey, tt.setupValue, ""))
			}

			retention, err := service.GetRunRetentionDays()
			require.NoError(t, err)
			assert.Equal(t, tt.wantRetention, retention)

			assert.Equal(t, tt.wantTTL, service.GetCacheTTL())
		})
	}
}

func TestConfigService_GetRefreshCron(t *testing.T) {
	service, _ := setupConfigService(t)

	cron, err := service.GetRefreshCron()
	require.NoError(t, err)
	assert.Equal(t, DefaultRefreshCron, cron)

	require.NoError(t, service.SetSystemConfig(ConfigKeyRefreshCron, "0 0 * * * *", "每小时"))

	cron, err = service.GetRefreshCron()
	require.NoError(t, err)
	assert.Equal(t, "0 0 * * * *", cron)
}

func TestConfigService_GetAllSystemConfigs(t *testing.T) {
	service, _ := setupConfigService(t)

	require.NoError(t, service.SetSystemConfig(ConfigKeyRunRetentionDays, "10", "保留天数"))

	items, err := service.GetAllSystemConfigs()
	require.NoError(t, err)

	byKey := make(map[string]models.SystemConfigItem)
	for _, item := range items {
		byKey[item.Key] = item
	}

	// 数据库中的配置保留原值，缺失的键补默认值
	assert.Equal(t, "10", byKey[ConfigKeyRunRetentionDays].Value)
	assert.Equal(t, "3600", byKey[ConfigKeyCacheTTLSeconds].Value)
	assert.Equal(t, DefaultRefreshCron, byKey[ConfigKeyRefreshCron].Value)
}

func TestConfigService_ClearCache(t *testing.T) {
	service, testDB := setupConfigService(t)

	require.NoError(t, service.SetSystemConfig(ConfigKeyRunRetentionDays, "20", ""))

	// 绕过服务直接改库，缓存清除后应读到新值
	err := testDB.DB.Model(&models.SystemConfig{}).
		Where("key = ?", ConfigKeyRunRetentionDays).
		Update("value", "25").Error
	require.NoError(t, err)

	value, err := service.GetSystemConfig(ConfigKeyRunRetentionDays)
	require.NoError(t, err)
	assert.Equal(t, "20", value, "缓存未清除前读到旧值")

	service.ClearCache()

	value, err = service.GetSystemConfig(ConfigKeyRunRetentionDays)
	require.NoError(t, err)
	assert.Equal(t, "25", value)
}
