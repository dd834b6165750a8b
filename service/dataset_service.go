/*
 * @module service/dataset_service
 * @description 数据集管理服务，提供数据集的注册、查询、更新、删除和默认数据集初始化
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第3节
 * @stateFlow 数据集注册 -> 文件路径配置 -> 流水线消费
 * @rules 数据集名称全局唯一，删除数据集时级联清理运行记录和事件
 * @dependencies gorm.io/gorm
 * @refs api/controllers/dataset_controller.go
 */

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"greenroute-service/service/loader"
	"greenroute-service/service/meta"
	"greenroute-service/service/models"
	"greenroute-service/service/pipeline"
)

// DefaultDatasetName 默认数据集名称
const DefaultDatasetName = "default"

// DatasetService 数据集管理服务
type DatasetService struct {
	db *gorm.DB
}

// NewDatasetService 创建数据集管理服务实例
func NewDatasetService(db *gorm.DB) *DatasetService {
	return &DatasetService{db: db}
}

// CreateDataset 创建数据集
func (s *DatasetService) CreateDataset(ctx context.Context, dataset *models.Dataset) error {
	if strings.TrimSpace(dataset.Name) == "" {
		return errors.New("数据集名称不能为空")
	}
	if strings.TrimSpace(dataset.BaseDir) == "" {
		return errors.New("数据目录不能为空")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Dataset{}).
		Where("name = ?", dataset.Name).Count(&count).Error; err != nil {
		return fmt.Errorf("检查数据集名称失败: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("数据集名称已存在: %s", dataset.Name)
	}

	if err := s.db.WithContext(ctx).Create(dataset).Error; err != nil {
		return fmt.Errorf("创建数据集失败: %w", err)
	}
	return nil
}

// GetDatasets 分页查询数据集列表
func (s *DatasetService) GetDatasets(ctx context.Context, page, pageSize int, status, keyword string) ([]models.Dataset, int64, error) {
	var datasets []models.Dataset
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Dataset{})

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计数据集数量失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").
		Offset(offset).Limit(pageSize).Find(&datasets).Error; err != nil {
		return nil, 0, fmt.Errorf("查询数据集列表失败: %w", err)
	}

	return datasets, total, nil
}

// GetDatasetByID 按ID查询数据集
func (s *DatasetService) GetDatasetByID(ctx context.Context, id string) (*models.Dataset, error) {
	var dataset models.Dataset
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&dataset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("数据集不存在: %s", id)
		}
		return nil, fmt.Errorf("查询数据集失败: %w", err)
	}
	return &dataset, nil
}

// GetDatasetByName 按名称查询数据集
func (s *DatasetService) GetDatasetByName(ctx context.Context, name string) (*models.Dataset, error) {
	var dataset models.Dataset
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&dataset).Error; err != nil {
		return nil, err
	}
	return &dataset, nil
}

// UpdateDataset 更新数据集，仅允许更新白名单内的字段
func (s *DatasetService) UpdateDataset(ctx context.Context, id string, updates map[string]interface{}) (*models.Dataset, error) {
	dataset, err := s.GetDatasetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := map[string]bool{
		"name":             true,
		"description":      true,
		"base_dir":         true,
		"orders_file":      true,
		"routes_file":      true,
		"fleet_file":       true,
		"performance_file": true,
		"cost_file":        true,
		"script":           true,
		"script_enabled":   true,
		"status":           true,
		"updated_by":       true,
	}

	filtered := make(map[string]interface{})
	for key, value := range updates {
		if allowed[key] {
			filtered[key] = value
		}
	}
	if len(filtered) == 0 {
		return dataset, nil
	}

	if newName, ok := filtered["name"].(string); ok && newName != dataset.Name {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Dataset{}).
			Where("name = ? AND id != ?", newName, id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("检查数据集名称失败: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("数据集名称已存在: %s", newName)
		}
	}

	filtered["updated_at"] = time.Now()
	if err := s.db.WithContext(ctx).Model(dataset).Updates(filtered).Error; err != nil {
		return nil, fmt.Errorf("更新数据集失败: %w", err)
	}

	return s.GetDatasetByID(ctx, id)
}

// DeleteDataset 删除数据集及其运行记录和事件
func (s *DatasetService) DeleteDataset(ctx context.Context, id string) error {
	dataset, err := s.GetDatasetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_id = ?", id).Delete(&models.PipelineEvent{}).Error; err != nil {
			return fmt.Errorf("删除数据集事件失败: %w", err)
		}
		if err := tx.Where("dataset_id = ?", id).Delete(&models.PipelineRun{}).Error; err != nil {
			return fmt.Errorf("删除运行记录失败: %w", err)
		}
		if err := tx.Delete(dataset).Error; err != nil {
			return fmt.Errorf("删除数据集失败: %w", err)
		}
		return nil
	})
}

// GetDatasetOverviews 查询数据集总览视图，包含运行统计
func (s *DatasetService) GetDatasetOverviews(ctx context.Context) ([]models.DatasetOverview, error) {
	var overviews []models.DatasetOverview
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&overviews).Error; err != nil {
		return nil, fmt.Errorf("查询数据集总览失败: %w", err)
	}
	return overviews, nil
}

// SourcePreview 单个数据源文件的规范化预览
type SourcePreview struct {
	Kind      string                   `json:"kind"`
	File      string                   `json:"file"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	TotalRows int                      `json:"total_rows"`
}

// PreviewSource 装载指定类别的数据源文件，返回列名规范化后的前若干行
// 仅做装载和列名规范化，不执行脚本和连接，用于排查原始文件问题
func (s *DatasetService) PreviewSource(ctx context.Context, id, kind string, limit int) (*SourcePreview, error) {
	if !meta.IsValidDatasetKind(kind) {
		return nil, fmt.Errorf("未知的数据源类别: %s", kind)
	}

	dataset, err := s.GetDatasetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	path := dataset.FilePathByKind(kind)
	table, err := loader.NewCSVLoader().LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("装载数据源文件失败: %w", err)
	}
	pipeline.NewColumnNormalizer().NormalizeTable(table)

	total := len(table.Rows)
	if limit > total {
		limit = total
	}

	return &SourcePreview{
		Kind:      kind,
		File:      filepath.Base(path),
		Columns:   table.Columns,
		Rows:      table.Rows[:limit],
		TotalRows: total,
	}, nil
}

// EnsureDefaultDataset 确保默认数据集存在，服务启动时调用
func (s *DatasetService) EnsureDefaultDataset(ctx context.Context, baseDir string) (*models.Dataset, error) {
	dataset, err := s.GetDatasetByName(ctx, DefaultDatasetName)
	if err == nil {
		return dataset, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询默认数据集失败: %w", err)
	}

	dataset = &models.Dataset{
		Name:        DefaultDatasetName,
		Description: "绿色路线默认数据集",
		BaseDir:     baseDir,
	}
	if err := s.CreateDataset(ctx, dataset); err != nil {
		return nil, err
	}
	return dataset, nil
}
