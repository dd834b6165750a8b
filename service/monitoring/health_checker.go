/*
 * @module service/monitoring/health_checker
 * @description 健康检查器，负责数据库连接检查、依赖组件检查和健康评分计算
 * @architecture 分层架构 - 监控层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第10节
 * @stateFlow 检查项注册 -> 状态检测 -> 评分计算 -> 状态汇总
 * @rules 数据库不可用时整体状态为critical，其余组件故障为degraded
 * @dependencies gorm.io/gorm
 * @refs api/controllers/health_controller.go
 */

package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// 组件健康状态
const (
	ComponentStatusHealthy  = "healthy"
	ComponentStatusDegraded = "degraded"
	ComponentStatusCritical = "critical"
)

// checkTimeout 单项检查超时
const checkTimeout = 5 * time.Second

// CheckFunc 组件检查函数，返回nil表示健康
type CheckFunc func(ctx context.Context) error

// HealthChecker 健康检查器
type HealthChecker struct {
	db     *gorm.DB
	checks map[string]CheckFunc
	mutex  sync.RWMutex
}

// ComponentHealth 组件健康状态
type ComponentHealth struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"` // healthy, degraded, critical
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	DurationMs  int64     `json:"duration_ms"`
}

// HealthStatus 整体健康状态
type HealthStatus struct {
	Overall    string                      `json:"overall"` // healthy, degraded, critical
	Score      int                         `json:"score"`   // 健康评分 0-100
	Timestamp  time.Time                   `json:"timestamp"`
	Components map[string]*ComponentHealth `json:"components"`
}

// NewHealthChecker 创建健康检查器，自动注册数据库检查
func NewHealthChecker(db *gorm.DB) *HealthChecker {
	checker := &HealthChecker{
		db:     db,
		checks: make(map[string]CheckFunc),
	}

	checker.RegisterCheck("database", checker.checkDatabase)
	return checker
}

// RegisterCheck 注册组件检查项
func (h *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checks[name] = check
}

// CheckHealth 执行所有检查项并汇总
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	h.mutex.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mutex.RUnlock()

	status := &HealthStatus{
		Timestamp:  time.Now(),
		Components: make(map[string]*ComponentHealth, len(names)),
	}

	healthyCount := 0
	databaseDown := false

	for _, name := range names {
		component := h.runCheck(ctx, name, checks[name])
		status.Components[name] = component

		if component.Status == ComponentStatusHealthy {
			healthyCount++
		} else if name == "database" {
			databaseDown = true
		}
	}

	if len(names) > 0 {
		status.Score = healthyCount * 100 / len(names)
	} else {
		status.Score = 100
	}

	switch {
	case databaseDown:
		status.Overall = ComponentStatusCritical
	case healthyCount == len(names):
		status.Overall = ComponentStatusHealthy
	default:
		status.Overall = ComponentStatusDegraded
	}

	return status
}

// runCheck 执行单项检查
func (h *HealthChecker) runCheck(ctx context.Context, name string, check CheckFunc) *ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := check(checkCtx)
	duration := time.Since(start)

	component := &ComponentHealth{
		Name:        name,
		Status:      ComponentStatusHealthy,
		LastChecked: start,
		DurationMs:  duration.Milliseconds(),
	}

	if err != nil {
		component.Status = ComponentStatusDegraded
		component.Message = err.Error()
	}

	return component
}

// checkDatabase 数据库连接检查
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
