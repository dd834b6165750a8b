/*
 * @module api/controllers/dataset_controller
 * @description 数据集管理控制器，提供数据集注册、查询、更新、删除和缓存失效接口
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第3节
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies greenroute-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/dataset_service.go
 */

package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"greenroute-service/service"
	"greenroute-service/service/meta"
	"greenroute-service/service/models"
)

// DatasetController 数据集管理控制器
type DatasetController struct {
	datasetService  *service.DatasetService
	pipelineService *service.PipelineService
}

// NewDatasetController 创建数据集控制器实例
func NewDatasetController() *DatasetController {
	return &DatasetController{
		datasetService:  service.GlobalDatasetService,
		pipelineService: service.GlobalPipelineService,
	}
}

// CreateDatasetRequest 创建数据集请求
type CreateDatasetRequest struct {
	Name            string `json:"name" example:"default"`
	Description     string `json:"description" example:"绿色路线默认数据集"`
	BaseDir         string `json:"base_dir" example:"./data"`
	OrdersFile      string `json:"orders_file" example:"orders.csv"`
	RoutesFile      string `json:"routes_file" example:"routes_distance.csv"`
	FleetFile       string `json:"fleet_file" example:"vehicle_fleet.csv"`
	PerformanceFile string `json:"performance_file" example:"delivery_performance.csv"`
	CostFile        string `json:"cost_file" example:"cost_breakdown.csv"`
	Script          string `json:"script"`
	ScriptEnabled   bool   `json:"script_enabled"`
}

// CreateDataset 创建数据集
// @Summary 创建数据集
// @Description 注册一组五类CSV数据源文件为新数据集
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param request body CreateDatasetRequest true "创建数据集请求"
// @Success 200 {object} APIResponse{data=models.Dataset}
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /datasets [post]
func (c *DatasetController) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasetRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "请求参数解析失败", err))
		return
	}

	dataset := &models.Dataset{
		Name:            req.Name,
		Description:     req.Description,
		BaseDir:         req.BaseDir,
		OrdersFile:      req.OrdersFile,
		RoutesFile:      req.RoutesFile,
		FleetFile:       req.FleetFile,
		PerformanceFile: req.PerformanceFile,
		CostFile:        req.CostFile,
		Script:          req.Script,
		ScriptEnabled:   req.ScriptEnabled,
	}

	if err := c.datasetService.CreateDataset(r.Context(), dataset); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "创建数据集失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("创建数据集成功", dataset))
}

// GetDatasets 获取数据集列表
// @Summary 获取数据集列表
// @Description 分页获取数据集列表，支持状态和关键词过滤
// @Tags 数据集管理
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param status query string false "状态过滤"
// @Param keyword query string false "名称/描述关键词"
// @Success 200 {object} PaginatedResponse
// @Router /datasets [get]
func (c *DatasetController) GetDatasets(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)
	status := r.URL.Query().Get("status")
	keyword := r.URL.Query().Get("keyword")

	datasets, total, err := c.datasetService.GetDatasets(r.Context(), page, size, status, keyword)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取数据集列表失败", err))
		return
	}

	render.Render(w, r, PaginatedSuccessResponse("获取数据集列表成功", datasets, total, page, size))
}

// GetDatasetOverviews 获取数据集总览
// @Summary 获取数据集总览
// @Description 返回包含运行统计的数据集总览视图
// @Tags 数据集管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.DatasetOverview}
// @Router /datasets/overview [get]
func (c *DatasetController) GetDatasetOverviews(w http.ResponseWriter, r *http.Request) {
	overviews, err := c.datasetService.GetDatasetOverviews(r.Context())
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取数据集总览失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("获取数据集总览成功", overviews))
}

// GetDataset 获取数据集详情
// @Summary 获取数据集详情
// @Description 根据ID获取数据集详情
// @Tags 数据集管理
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=models.Dataset}
// @Failure 404 {object} APIResponse "数据集不存在"
// @Router /datasets/{id} [get]
func (c *DatasetController) GetDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dataset, err := c.datasetService.GetDatasetByID(r.Context(), id)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "获取数据集失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("获取数据集成功", dataset))
}

// UpdateDataset 更新数据集
// @Summary 更新数据集
// @Description 更新数据集配置，文件路径变更后自动清除缓存结果
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param id path string true "数据集ID"
// @Param request body map[string]interface{} true "更新字段"
// @Success 200 {object} APIResponse{data=models.Dataset}
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /datasets/{id} [put]
func (c *DatasetController) UpdateDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "请求参数解析失败", err))
		return
	}

	dataset, err := c.datasetService.UpdateDataset(r.Context(), id, updates)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "更新数据集失败", err))
		return
	}

	// 路径或脚本变更会使缓存结果过时
	if touchesPipelineInput(updates) {
		if err := c.pipelineService.InvalidateDataset(r.Context(), id); err != nil {
			render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "清除缓存结果失败", err))
			return
		}
	}

	render.Render(w, r, SuccessResponse("更新数据集成功", dataset))
}

// DeleteDataset 删除数据集
// @Summary 删除数据集
// @Description 删除数据集及其运行记录、事件和缓存结果
// @Tags 数据集管理
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse "数据集不存在"
// @Router /datasets/{id} [delete]
func (c *DatasetController) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 缓存清理先于记录删除，删除后数据集查询将失败
	if err := c.pipelineService.InvalidateDataset(r.Context(), id); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "删除数据集失败", err))
		return
	}

	if err := c.datasetService.DeleteDataset(r.Context(), id); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "删除数据集失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("删除数据集成功", map[string]interface{}{"id": id}))
}

// PreviewSource 预览数据源文件
// @Summary 预览数据源文件
// @Description 装载指定类别的数据源CSV并返回列名规范化后的前若干行
// @Tags 数据集管理
// @Produce json
// @Param id path string true "数据集ID"
// @Param kind path string true "数据源类别" Enums(orders, routes, fleet, performance, cost)
// @Param limit query int false "预览行数" default(10)
// @Success 200 {object} APIResponse{data=service.SourcePreview}
// @Failure 400 {object} APIResponse "数据源类别无效"
// @Failure 500 {object} APIResponse "文件装载失败"
// @Router /datasets/{id}/sources/{kind}/preview [get]
func (c *DatasetController) PreviewSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := chi.URLParam(r, "kind")

	if !meta.IsValidDatasetKind(kind) {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "数据源类别无效",
			fmt.Errorf("未知的数据源类别: %s", kind)))
		return
	}

	limit := 10
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	preview, err := c.datasetService.PreviewSource(r.Context(), id, kind, limit)
	if err != nil {
		render.Render(w, r, PipelineErrorResponse("预览数据源失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("预览数据源成功", preview))
}

// InvalidateCache 清除数据集缓存
// @Summary 清除数据集缓存
// @Description 清除数据集的全部缓存合并结果，下次查询将重新执行流水线
// @Tags 数据集管理
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse
// @Router /datasets/{id}/invalidate-cache [post]
func (c *DatasetController) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.pipelineService.InvalidateDataset(r.Context(), id); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "清除缓存失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("缓存已清除", map[string]interface{}{"id": id}))
}

// touchesPipelineInput 判断更新字段是否影响流水线输入
func touchesPipelineInput(updates map[string]interface{}) bool {
	inputKeys := []string{
		"base_dir", "orders_file", "routes_file", "fleet_file",
		"performance_file", "cost_file", "script", "script_enabled",
	}
	for _, key := range inputKeys {
		if _, ok := updates[key]; ok {
			return true
		}
	}
	return false
}

// parsePagination 解析分页参数
func parsePagination(r *http.Request) (int, int) {
	page := 1
	size := 10

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 100 {
		size = s
	}

	return page, size
}
