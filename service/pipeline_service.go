/*
 * @module service/pipeline_service
 * @description 流水线服务，编排数据装载、合并计算、结果缓存、运行记录和事件广播
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第7节
 * @stateFlow 指纹计算 -> 缓存查询 -> 装载合并 -> 缓存写入 -> 运行记录与事件
 * @rules 同一数据集的合并运行串行执行，失败的运行记录保留错误详情
 * @dependencies greenroute-service/service/pipeline, greenroute-service/service/loader, gorm.io/gorm
 * @refs api/controllers/pipeline_controller.go, service/scheduler/refresh_scheduler.go
 */

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"greenroute-service/service/analytics"
	"greenroute-service/service/cache"
	"greenroute-service/service/config"
	"greenroute-service/service/event"
	"greenroute-service/service/loader"
	"greenroute-service/service/meta"
	"greenroute-service/service/models"
	"greenroute-service/service/monitoring"
	"greenroute-service/service/pipeline"
)

// ExportFileName 导出文件名
const ExportFileName = "greenroute_analysis.csv"

// PreviewData 合并结果预览
type PreviewData struct {
	Columns     []string                 `json:"columns"`
	Rows        []map[string]interface{} `json:"rows"`
	TotalRows   int                      `json:"total_rows"`
	Fingerprint string                   `json:"fingerprint"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// PipelineService 流水线服务
type PipelineService struct {
	db               *gorm.DB
	resultCache      cache.ResultCache
	eventService     *event.EventService
	configService    *config.ConfigService
	dashboardService *analytics.DashboardService
	engine           *pipeline.MergeEngine
	csvLoader        *loader.CSVLoader
	csvWriter        *loader.CSVWriter
	fingerprinter    *loader.Fingerprinter
	scriptExecutor   *pipeline.ScriptExecutor
	runLocks         sync.Map // datasetID -> *sync.Mutex
}

// NewPipelineService 创建流水线服务实例
func NewPipelineService(db *gorm.DB, resultCache cache.ResultCache, eventService *event.EventService, configService *config.ConfigService) *PipelineService {
	return &PipelineService{
		db:               db,
		resultCache:      resultCache,
		eventService:     eventService,
		configService:    configService,
		dashboardService: analytics.NewDashboardService(),
		engine:           pipeline.NewMergeEngine(),
		csvLoader:        loader.NewCSVLoader(),
		csvWriter:        loader.NewCSVWriter(),
		fingerprinter:    loader.NewFingerprinter(),
		scriptExecutor:   pipeline.NewScriptExecutor(),
	}
}

// Run 触发一次合并运行，同一数据集的运行串行执行；
// 缓存命中且force为false时返回对应指纹的历史运行记录，不新建运行
func (s *PipelineService) Run(ctx context.Context, datasetID, triggerType string, force bool) (*models.PipelineRun, error) {
	dataset, err := s.getDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	if !force {
		fingerprint := s.fingerprinter.Compute(dataset.FilePaths())
		key := cache.CacheKey(dataset.ID, fingerprint)
		if _, found, cacheErr := s.resultCache.Get(ctx, key); cacheErr == nil && found {
			var last models.PipelineRun
			queryErr := s.db.WithContext(ctx).
				Where("dataset_id = ? AND fingerprint = ? AND status = ?",
					dataset.ID, fingerprint, models.RunStatusSucceeded).
				Order("started_at DESC").First(&last).Error
			if queryErr == nil {
				monitoring.RecordCacheHit()
				return &last, nil
			}
		}
	}

	mu := s.runLock(dataset.ID)
	mu.Lock()
	defer mu.Unlock()

	_, run, err := s.runLocked(ctx, dataset, triggerType)
	return run, err
}

// Current 返回数据集当前指纹对应的合并结果，缓存未命中时同步执行一次运行
func (s *PipelineService) Current(ctx context.Context, datasetID string) (*pipeline.MergeResult, error) {
	dataset, err := s.getDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	fingerprint := s.fingerprinter.Compute(dataset.FilePaths())
	key := cache.CacheKey(dataset.ID, fingerprint)

	result, found, err := s.resultCache.Get(ctx, key)
	if err != nil {
		slog.Warn("读取结果缓存失败", "dataset_id", dataset.ID, "error", err)
	}
	if found {
		monitoring.RecordCacheHit()
		return result, nil
	}
	monitoring.RecordCacheMiss()

	mu := s.runLock(dataset.ID)
	mu.Lock()
	defer mu.Unlock()

	// 等锁期间可能已有运行写入缓存，加锁后复查
	result, found, err = s.resultCache.Get(ctx, key)
	if err == nil && found {
		return result, nil
	}

	result, _, err = s.runLocked(ctx, dataset, models.RunTriggerAPI)
	return result, err
}

// Preview 返回合并结果的前若干行
func (s *PipelineService) Preview(ctx context.Context, datasetID string, limit int) (*PreviewData, error) {
	result, err := s.Current(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 20
	}

	display := s.dashboardService.ApplyDisplayNames(result.Table, result.RenameMap)

	rows := display.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}

	return &PreviewData{
		Columns:     display.Columns,
		Rows:        rows,
		TotalRows:   display.RowCount(),
		Fingerprint: result.Fingerprint,
		GeneratedAt: result.GeneratedAt,
	}, nil
}

// Dashboard 构建数据集的看板数据
func (s *PipelineService) Dashboard(ctx context.Context, datasetID string, filter *analytics.DashboardFilter) (*analytics.DashboardData, error) {
	result, err := s.Current(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	display := s.dashboardService.ApplyDisplayNames(result.Table, result.RenameMap)
	return s.dashboardService.BuildDashboard(display, filter)
}

// Export 导出过滤后的合并结果CSV
func (s *PipelineService) Export(ctx context.Context, datasetID string, filter *analytics.DashboardFilter) ([]byte, string, error) {
	result, err := s.Current(ctx, datasetID)
	if err != nil {
		return nil, "", err
	}

	display := s.dashboardService.ApplyDisplayNames(result.Table, result.RenameMap)
	filtered := s.dashboardService.ApplyFilter(display, filter)

	data, err := s.csvWriter.WriteTable(filtered)
	if err != nil {
		return nil, "", err
	}

	return data, ExportFileName, nil
}

// ListRuns 分页查询运行记录
func (s *PipelineService) ListRuns(ctx context.Context, page, pageSize int, datasetID, status string) ([]models.PipelineRun, int64, error) {
	var runs []models.PipelineRun
	var total int64

	query := s.db.WithContext(ctx).Model(&models.PipelineRun{})

	if datasetID != "" {
		query = query.Where("dataset_id = ?", datasetID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("started_at DESC").
		Offset(offset).Limit(pageSize).Find(&runs).Error

	return runs, total, err
}

// GetRunDailyStats 查询数据集最近若干天的运行统计视图
func (s *PipelineService) GetRunDailyStats(ctx context.Context, datasetID string, days int) ([]models.RunDailyStat, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	var stats []models.RunDailyStat
	err := s.db.WithContext(ctx).
		Where("dataset_id = ? AND run_date >= ?", datasetID, cutoff).
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("查询运行统计失败: %w", err)
	}
	return stats, nil
}

// GetRun 按ID查询运行记录
func (s *PipelineService) GetRun(ctx context.Context, runID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := s.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("运行记录不存在: %s", runID)
		}
		return nil, err
	}
	return &run, nil
}

// InvalidateDataset 清除数据集的全部缓存结果并广播失效事件
func (s *PipelineService) InvalidateDataset(ctx context.Context, datasetID string) error {
	dataset, err := s.getDataset(ctx, datasetID)
	if err != nil {
		return err
	}

	if err := s.resultCache.Invalidate(ctx, dataset.ID); err != nil {
		return fmt.Errorf("清除结果缓存失败: %w", err)
	}

	if s.eventService != nil {
		if err := s.eventService.PublishCacheInvalidated(dataset.ID); err != nil {
			slog.Warn("发布缓存失效事件失败", "dataset_id", dataset.ID, "error", err)
		}
	}

	return nil
}

// runLocked 在持有数据集运行锁的前提下执行一次完整运行
func (s *PipelineService) runLocked(ctx context.Context, dataset *models.Dataset, triggerType string) (*pipeline.MergeResult, *models.PipelineRun, error) {
	fingerprint := s.fingerprinter.Compute(dataset.FilePaths())

	// 1. 创建运行记录
	run := &models.PipelineRun{
		DatasetID:   dataset.ID,
		TriggerType: triggerType,
		Status:      models.RunStatusRunning,
		Fingerprint: fingerprint,
		StartedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, nil, fmt.Errorf("创建运行记录失败: %w", err)
	}

	if s.eventService != nil {
		if err := s.eventService.PublishRunStarted(dataset.ID, run.ID, triggerType); err != nil {
			slog.Warn("发布运行开始事件失败", "run_id", run.ID, "error", err)
		}
	}

	// 2. 装载数据源并执行合并
	result, err := s.executeMerge(dataset)
	if err != nil {
		return nil, run, s.finishFailed(ctx, dataset, run, triggerType, err)
	}
	result.Fingerprint = fingerprint

	// 3. 写入结果缓存
	key := cache.CacheKey(dataset.ID, fingerprint)
	if cacheErr := s.resultCache.Set(ctx, key, result, s.configService.GetCacheTTL()); cacheErr != nil {
		slog.Warn("写入结果缓存失败", "dataset_id", dataset.ID, "error", cacheErr)
	}

	// 4. 更新运行记录和数据集状态
	run.MarkSucceeded(result.Statistics.OutputRowCount, result.Statistics.OutputColumnCount, statisticsToJSONB(result.Statistics))
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		slog.Error("保存运行记录失败", "run_id", run.ID, "error", err)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"last_fingerprint": fingerprint,
		"last_run_at":      &now,
	}
	if err := s.db.WithContext(ctx).Model(&models.Dataset{}).Where("id = ?", dataset.ID).Updates(updates).Error; err != nil {
		slog.Error("更新数据集指纹失败", "dataset_id", dataset.ID, "error", err)
	}
	dataset.LastFingerprint = fingerprint
	dataset.LastRunAt = &now

	// 5. 广播事件并记录指标
	if s.eventService != nil {
		if err := s.eventService.PublishRunSucceeded(dataset.ID, run.ID, run.RowCount, run.ColumnCount, run.DurationMs); err != nil {
			slog.Warn("发布运行成功事件失败", "run_id", run.ID, "error", err)
		}
	}
	monitoring.ObserveRunCompleted(dataset.Name, triggerType, models.RunStatusSucceeded,
		float64(run.DurationMs)/1000.0, run.RowCount)

	slog.Info("合并运行完成",
		"dataset_id", dataset.ID,
		"run_id", run.ID,
		"trigger", triggerType,
		"rows", run.RowCount,
		"columns", run.ColumnCount,
		"duration_ms", run.DurationMs)

	return result, run, nil
}

// finishFailed 记录失败的运行并广播事件
func (s *PipelineService) finishFailed(ctx context.Context, dataset *models.Dataset, run *models.PipelineRun, triggerType string, cause error) error {
	code := string(pipeline.ErrCodeUnexpected)
	message := cause.Error()
	if pe, ok := pipeline.AsPipelineError(cause); ok {
		code = string(pe.Code)
		message = pe.Message
	}

	run.MarkFailed(code, message)
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		slog.Error("保存失败运行记录失败", "run_id", run.ID, "error", err)
	}

	if s.eventService != nil {
		if err := s.eventService.PublishRunFailed(dataset.ID, run.ID, code, message); err != nil {
			slog.Warn("发布运行失败事件失败", "run_id", run.ID, "error", err)
		}
	}
	monitoring.ObserveRunCompleted(dataset.Name, triggerType, models.RunStatusFailed,
		float64(run.DurationMs)/1000.0, -1)

	slog.Error("合并运行失败",
		"dataset_id", dataset.ID,
		"run_id", run.ID,
		"error_code", code,
		"error", message)

	return cause
}

// executeMerge 装载五个数据源并执行合并流水线
// 脚本钩子在装载之后、列名规范化之前对每个数据源的原始行集执行，
// 脚本产出的列随后一并走规范化和合并流程
func (s *PipelineService) executeMerge(dataset *models.Dataset) (*pipeline.MergeResult, error) {
	scripted := dataset.ScriptEnabled && strings.TrimSpace(dataset.Script) != ""

	tables := make(map[string]*pipeline.DataTable, 5)
	for _, kind := range meta.GetAllDatasetKinds() {
		table, err := s.csvLoader.LoadFile(dataset.FilePathByKind(kind))
		if err != nil {
			return nil, err
		}
		if scripted {
			if err := s.applyScript(table, dataset.Script); err != nil {
				return nil, err
			}
		}
		tables[kind] = table
	}

	return s.engine.Execute(&pipeline.MergeRequest{
		Orders:      tables[meta.DatasetKindOrders],
		Routes:      tables[meta.DatasetKindRoutes],
		Fleet:       tables[meta.DatasetKindFleet],
		Performance: tables[meta.DatasetKindPerformance],
		Cost:        tables[meta.DatasetKindCost],
	})
}

// applyScript 对单个数据源的原始行集执行自定义脚本变换
func (s *PipelineService) applyScript(table *pipeline.DataTable, script string) error {
	rows, err := s.scriptExecutor.Transform(script, table.Rows)
	if err != nil {
		return pipeline.NewUnexpectedError("自定义脚本执行失败", err)
	}

	table.Rows = rows

	// 脚本可能新增列，补充到列清单末尾
	existing := make(map[string]bool, len(table.Columns))
	for _, column := range table.Columns {
		existing[column] = true
	}
	added := make([]string, 0)
	for _, row := range rows {
		for key := range row {
			if !existing[key] {
				existing[key] = true
				added = append(added, key)
			}
		}
	}
	sort.Strings(added)
	table.Columns = append(table.Columns, added...)

	return nil
}

// getDataset 按ID查询数据集
func (s *PipelineService) getDataset(ctx context.Context, datasetID string) (*models.Dataset, error) {
	var dataset models.Dataset
	if err := s.db.WithContext(ctx).Where("id = ?", datasetID).First(&dataset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("数据集不存在: %s", datasetID)
		}
		return nil, err
	}
	return &dataset, nil
}

// runLock 获取数据集级别的运行互斥锁
func (s *PipelineService) runLock(datasetID string) *sync.Mutex {
	actual, _ := s.runLocks.LoadOrStore(datasetID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// statisticsToJSONB 将合并统计转换为JSONB快照
func statisticsToJSONB(stats pipeline.MergeStatistics) models.JSONB {
	data, err := json.Marshal(stats)
	if err != nil {
		return models.JSONB{}
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return models.JSONB{}
	}
	return models.JSONB(result)
}
