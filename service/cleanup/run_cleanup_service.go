/*
 * @module service/cleanup/run_cleanup_service
 * @description 运行记录清理服务，负责定期清理过期的流水线运行记录和事件
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 定时触发 -> 读取配置 -> 执行清理 -> 记录结果
 * @rules 多实例部署时通过分布式锁防止重复清理
 * @dependencies greenroute-service/service/config, gorm.io/gorm, github.com/robfig/cron/v3
 * @refs service/config, service/distributed_lock
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"greenroute-service/service/config"
	"greenroute-service/service/distributed_lock"
	"greenroute-service/service/models"
)

// cleanupLockKey 清理任务的分布式锁键
const cleanupLockKey = "run_cleanup"

// RunCleanupService 运行记录清理服务
type RunCleanupService struct {
	db            *gorm.DB
	configService *config.ConfigService
	lockExecutor  *distributed_lock.LockExecutor // 可为nil，单实例部署时不加锁
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewRunCleanupService 创建运行记录清理服务实例
func NewRunCleanupService(db *gorm.DB, configService *config.ConfigService, lockExecutor *distributed_lock.LockExecutor) *RunCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &RunCleanupService{
		db:            db,
		configService: configService,
		lockExecutor:  lockExecutor,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
		started:       false,
	}
}

// CleanupExpiredRecords 清理所有过期的运行记录和事件
func (s *RunCleanupService) CleanupExpiredRecords(ctx context.Context) error {
	slog.Info("开始清理过期运行记录")
	startTime := time.Now()

	retentionDays, err := s.configService.GetRunRetentionDays()
	if err != nil {
		slog.Error("获取运行记录保留天数失败", "error", err)
		retentionDays = config.DefaultRunRetentionDays
	}

	// 1. 清理流水线运行记录
	runsDeleted, err := s.CleanupPipelineRuns(ctx, retentionDays)
	if err != nil {
		slog.Error("清理流水线运行记录失败", "error", err)
	} else {
		slog.Info("清理流水线运行记录完成", "deleted_count", runsDeleted, "retention_days", retentionDays)
	}

	// 2. 清理流水线事件
	eventsDeleted, err := s.CleanupPipelineEvents(ctx, retentionDays)
	if err != nil {
		slog.Error("清理流水线事件失败", "error", err)
	} else {
		slog.Info("清理流水线事件完成", "deleted_count", eventsDeleted, "retention_days", retentionDays)
	}

	duration := time.Since(startTime)
	slog.Info("运行记录清理完成",
		"runs_deleted", runsDeleted,
		"events_deleted", eventsDeleted,
		"total_deleted", runsDeleted+eventsDeleted,
		"duration_ms", duration.Milliseconds())

	return nil
}

// CleanupPipelineRuns 清理过期的流水线运行记录
func (s *RunCleanupService) CleanupPipelineRuns(ctx context.Context, retentionDays int) (int64, error) {
	// 计算截止日期
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	slog.Debug("清理流水线运行记录", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", retentionDays)

	// 超过保留期的running状态记录视为孤儿记录，一并删除
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoffDate).Delete(&models.PipelineRun{})

	if result.Error != nil {
		return 0, fmt.Errorf("删除流水线运行记录失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// CleanupPipelineEvents 清理过期的流水线事件
func (s *RunCleanupService) CleanupPipelineEvents(ctx context.Context, retentionDays int) (int64, error) {
	// 计算截止日期
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	slog.Debug("清理流水线事件", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoffDate).Delete(&models.PipelineEvent{})

	if result.Error != nil {
		return 0, fmt.Errorf("删除流水线事件失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *RunCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("运行记录清理调度器已经启动")
	}

	slog.Info("启动运行记录清理调度器")

	// 每天凌晨2点执行清理任务
	// Cron表达式：秒 分 时 日 月 周
	_, err := s.cron.AddFunc("0 0 2 * * *", func() {
		slog.Info("开始执行定时运行记录清理任务")

		if err := s.runCleanupWithLock(); err != nil {
			slog.Error("定时运行记录清理任务失败", "error", err)
		}
	})

	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	// 启动调度器
	s.cron.Start()
	s.started = true

	slog.Info("运行记录清理调度器启动成功，将于每天凌晨2点执行清理任务")
	return nil
}

// runCleanupWithLock 在分布式锁保护下执行清理
func (s *RunCleanupService) runCleanupWithLock() error {
	cleanup := func() error {
		return s.CleanupExpiredRecords(s.ctx)
	}

	if s.lockExecutor != nil {
		return s.lockExecutor.ExecuteWithLock(s.ctx, cleanupLockKey, 10*time.Minute, cleanup)
	}
	return cleanup()
}

// StopScheduledCleanup 停止定时清理任务
func (s *RunCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	slog.Info("停止运行记录清理调度器")

	s.cancel()

	if s.cron != nil {
		s.cron.Stop()
	}

	s.started = false

	slog.Info("运行记录清理调度器已停止")
}
