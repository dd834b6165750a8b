/**
 * @module RefreshScheduler
 * @description 数据源刷新调度器，定时比对数据集文件指纹并触发变更数据集的重新合并
 * @architecture 基于Go协程和定时器的调度器模式
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第8节
 * @stateFlow 定时触发 -> 指纹比对 -> 变更入队 -> 工作协程执行合并
 * @rules 多实例部署时通过分布式锁防止重复检查，队列满时跳过入队等待下轮
 * @dependencies gorm, cron库, service/loader, service/distributed_lock
 * @refs service/pipeline_service.go, service/event/event_service.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"greenroute-service/service/config"
	"greenroute-service/service/distributed_lock"
	"greenroute-service/service/event"
	"greenroute-service/service/loader"
	"greenroute-service/service/models"
	"greenroute-service/service/monitoring"
)

// refreshLockKey 刷新检查的分布式锁键
const refreshLockKey = "refresh_check"

// RunLauncher 合并运行触发接口，由流水线服务实现
type RunLauncher interface {
	Run(ctx context.Context, datasetID, triggerType string, force bool) (*models.PipelineRun, error)
}

// RefreshScheduler 数据源刷新调度器
type RefreshScheduler struct {
	db            *gorm.DB
	fingerprinter *loader.Fingerprinter
	launcher      RunLauncher
	eventService  *event.EventService
	configService *config.ConfigService
	lockExecutor  *distributed_lock.LockExecutor // 可为nil，单实例部署时不加锁
	cron          *cron.Cron
	runQueue      chan string
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewRefreshScheduler 创建刷新调度器
func NewRefreshScheduler(
	db *gorm.DB,
	fingerprinter *loader.Fingerprinter,
	launcher RunLauncher,
	eventService *event.EventService,
	configService *config.ConfigService,
	lockExecutor *distributed_lock.LockExecutor,
	maxWorkers int,
) *RefreshScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if maxWorkers <= 0 {
		maxWorkers = 2
	}

	scheduler := &RefreshScheduler{
		db:            db,
		fingerprinter: fingerprinter,
		launcher:      launcher,
		eventService:  eventService,
		configService: configService,
		lockExecutor:  lockExecutor,
		cron:          cron.New(cron.WithSeconds()),
		runQueue:      make(chan string, 100),
		ctx:           ctx,
		cancel:        cancel,
	}

	// 启动工作协程
	for i := 0; i < maxWorkers; i++ {
		go scheduler.worker()
	}

	return scheduler
}

// Start 启动调度器
func (s *RefreshScheduler) Start() error {
	if s.started {
		return fmt.Errorf("刷新调度器已经启动")
	}

	log.Println("启动数据源刷新调度器")

	cronExpr, err := s.configService.GetRefreshCron()
	if err != nil {
		cronExpr = config.DefaultRefreshCron
	}

	// Cron表达式：秒 分 时 日 月 周
	if _, err := s.cron.AddFunc(cronExpr, s.runCheckCycle); err != nil {
		return fmt.Errorf("添加刷新检查任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	log.Printf("数据源刷新调度器启动完成 [%s]", cronExpr)
	return nil
}

// Stop 停止调度器
func (s *RefreshScheduler) Stop() {
	if !s.started {
		return
	}

	log.Println("停止数据源刷新调度器")

	s.cancel()

	if s.cron != nil {
		s.cron.Stop()
	}

	s.started = false
	log.Println("数据源刷新调度器已停止")
}

// ReloadSchedule 重新加载调度配置
// cron库不支持按ID修改任务，这里重建调度器实例
func (s *RefreshScheduler) ReloadSchedule() error {
	if !s.started {
		return fmt.Errorf("刷新调度器未启动")
	}

	s.cron.Stop()
	s.cron = cron.New(cron.WithSeconds())

	cronExpr, err := s.configService.GetRefreshCron()
	if err != nil {
		cronExpr = config.DefaultRefreshCron
	}

	if _, err := s.cron.AddFunc(cronExpr, s.runCheckCycle); err != nil {
		return fmt.Errorf("添加刷新检查任务失败: %w", err)
	}

	s.cron.Start()
	log.Printf("刷新调度配置已重新加载 [%s]", cronExpr)
	return nil
}

// runCheckCycle 执行一轮刷新检查
func (s *RefreshScheduler) runCheckCycle() {
	check := func() error {
		return s.CheckAllDatasets(s.ctx)
	}

	var err error
	if s.lockExecutor != nil {
		// 锁TTL覆盖一轮检查的最长耗时
		err = s.lockExecutor.ExecuteWithLock(s.ctx, refreshLockKey, 2*time.Minute, check)
	} else {
		err = check()
	}

	if err != nil {
		log.Printf("刷新检查失败: %v", err)
	}
}

// CheckAllDatasets 检查所有活跃数据集的文件指纹
func (s *RefreshScheduler) CheckAllDatasets(ctx context.Context) error {
	var datasets []models.Dataset
	if err := s.db.WithContext(ctx).Where("status = ?", "active").Find(&datasets).Error; err != nil {
		return fmt.Errorf("查询数据集失败: %w", err)
	}

	changedCount := 0
	for i := range datasets {
		changed, err := s.CheckDataset(ctx, &datasets[i])
		if err != nil {
			log.Printf("检查数据集失败 [%s]: %v", datasets[i].ID, err)
			continue
		}
		if changed {
			changedCount++
		}
	}

	if changedCount > 0 {
		log.Printf("刷新检查完成: %d/%d 个数据集发生变更", changedCount, len(datasets))
	}
	return nil
}

// CheckDataset 检查单个数据集的文件指纹，发生变更时发布事件并入队重新合并
func (s *RefreshScheduler) CheckDataset(ctx context.Context, dataset *models.Dataset) (bool, error) {
	// 从未运行过的数据集由首次API调用触发，调度器不抢跑
	if dataset.LastFingerprint == "" {
		return false, nil
	}

	fingerprint := s.fingerprinter.Compute(dataset.FilePaths())

	if fingerprint == dataset.LastFingerprint {
		return false, nil
	}

	log.Printf("检测到数据源变更 [%s]: %s -> %s", dataset.ID, dataset.LastFingerprint, fingerprint)
	monitoring.RecordSourceChange()

	if s.eventService != nil {
		if err := s.eventService.PublishSourceChanged(dataset.ID, fingerprint); err != nil {
			log.Printf("发布数据源变更事件失败 [%s]: %v", dataset.ID, err)
		}
	}

	s.enqueueRun(dataset.ID)
	return true, nil
}

// enqueueRun 将数据集加入重新合并队列
func (s *RefreshScheduler) enqueueRun(datasetID string) {
	select {
	case s.runQueue <- datasetID:
	default:
		log.Printf("合并队列已满，数据集 [%s] 等待下轮检查", datasetID)
	}
}

// worker 工作协程，消费队列并触发合并运行
func (s *RefreshScheduler) worker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case datasetID := <-s.runQueue:
			// 指纹已变化，缓存必然未命中，强制执行避免读到陈旧结果
			if _, err := s.launcher.Run(s.ctx, datasetID, models.RunTriggerSchedule, true); err != nil {
				log.Printf("调度合并运行失败 [%s]: %v", datasetID, err)
			}
		}
	}
}
