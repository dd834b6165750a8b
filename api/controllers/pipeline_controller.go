/*
 * @module api/controllers/pipeline_controller
 * @description 流水线控制器，提供合并运行触发、结果查询、预览和运行记录接口
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第7节
 * @stateFlow HTTP请求 -> 流水线服务 -> 响应返回
 * @rules 运行失败返回结构化错误码，结果查询优先命中缓存
 * @dependencies greenroute-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/pipeline_service.go
 */

package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"greenroute-service/service"
	"greenroute-service/service/models"
	"greenroute-service/service/pipeline"
)

// PipelineController 流水线控制器
type PipelineController struct {
	pipelineService *service.PipelineService
}

// NewPipelineController 创建流水线控制器实例
func NewPipelineController() *PipelineController {
	return &PipelineController{
		pipelineService: service.GlobalPipelineService,
	}
}

// CurrentResultResponse 当前合并结果元信息响应
type CurrentResultResponse struct {
	Fingerprint string                   `json:"fingerprint"`
	RowCount    int                      `json:"row_count"`
	ColumnCount int                      `json:"column_count"`
	Statistics  pipeline.MergeStatistics `json:"statistics"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// TriggerRun 触发合并运行
// @Summary 触发合并运行
// @Description 对指定数据集执行一次合并运行，缓存命中且未指定force时直接返回对应的历史运行记录
// @Tags 流水线
// @Produce json
// @Param id path string true "数据集ID"
// @Param force query boolean false "为true时跳过缓存强制重新计算" default(false)
// @Success 200 {object} APIResponse{data=models.PipelineRun}
// @Failure 500 {object} APIResponse "流水线执行失败，响应携带错误分类码"
// @Router /datasets/{id}/run [post]
func (c *PipelineController) TriggerRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	run, err := c.pipelineService.Run(r.Context(), id, models.RunTriggerManual, force)
	if err != nil {
		// 致命流水线错误返回500和分类码，运行记录已保存错误详情并随响应返回
		if pipelineErr, ok := pipeline.AsPipelineError(err); ok {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, APIResponse{
				Status: http.StatusInternalServerError,
				Msg:    "合并运行失败: " + pipelineErr.Message,
				Code:   string(pipelineErr.Code),
				Data:   run,
			})
			return
		}
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "合并运行失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("合并运行完成", run))
}

// GetCurrentResult 获取当前合并结果元信息
// @Summary 获取当前合并结果
// @Description 返回数据集当前指纹对应的合并结果元信息，缓存未命中时同步执行一次运行
// @Tags 流水线
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=CurrentResultResponse}
// @Failure 500 {object} APIResponse "流水线执行失败，响应携带错误分类码"
// @Router /datasets/{id}/current [get]
func (c *PipelineController) GetCurrentResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := c.pipelineService.Current(r.Context(), id)
	if err != nil {
		render.Render(w, r, PipelineErrorResponse("获取合并结果失败", err))
		return
	}

	response := CurrentResultResponse{
		Fingerprint: result.Fingerprint,
		RowCount:    result.Statistics.OutputRowCount,
		ColumnCount: result.Statistics.OutputColumnCount,
		Statistics:  result.Statistics,
		GeneratedAt: result.GeneratedAt,
	}

	render.Render(w, r, SuccessResponse("获取合并结果成功", response))
}

// PreviewResult 预览合并结果
// @Summary 预览合并结果
// @Description 返回展示列名重命名后的合并结果前若干行
// @Tags 流水线
// @Produce json
// @Param id path string true "数据集ID"
// @Param limit query int false "预览行数" default(20)
// @Success 200 {object} APIResponse{data=service.PreviewData}
// @Failure 500 {object} APIResponse "流水线执行失败，响应携带错误分类码"
// @Router /datasets/{id}/preview [get]
func (c *PipelineController) PreviewResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}

	preview, err := c.pipelineService.Preview(r.Context(), id, limit)
	if err != nil {
		render.Render(w, r, PipelineErrorResponse("预览合并结果失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("预览合并结果成功", preview))
}

// GetRuns 获取运行记录列表
// @Summary 获取运行记录列表
// @Description 分页获取流水线运行记录，支持数据集和状态过滤
// @Tags 流水线
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param dataset_id query string false "数据集ID过滤"
// @Param status query string false "状态过滤" Enums(running, succeeded, failed)
// @Success 200 {object} PaginatedResponse
// @Router /runs [get]
func (c *PipelineController) GetRuns(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)
	datasetID := r.URL.Query().Get("dataset_id")
	status := r.URL.Query().Get("status")

	runs, total, err := c.pipelineService.ListRuns(r.Context(), page, size, datasetID, status)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取运行记录失败", err))
		return
	}

	render.Render(w, r, PaginatedSuccessResponse("获取运行记录成功", runs, total, page, size))
}

// GetRun 获取运行记录详情
// @Summary 获取运行记录详情
// @Description 根据ID获取单次运行的完整信息，包括统计快照和错误详情
// @Tags 流水线
// @Produce json
// @Param id path string true "运行记录ID"
// @Success 200 {object} APIResponse{data=models.PipelineRun}
// @Failure 404 {object} APIResponse "运行记录不存在"
// @Router /runs/{id} [get]
func (c *PipelineController) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := c.pipelineService.GetRun(r.Context(), id)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "获取运行记录失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("获取运行记录成功", run))
}

// GetRunStats 获取运行统计
// @Summary 获取运行按日统计
// @Description 返回数据集最近若干天的运行按日统计
// @Tags 流水线
// @Produce json
// @Param id path string true "数据集ID"
// @Param days query int false "统计天数" default(30)
// @Success 200 {object} APIResponse{data=[]models.RunDailyStat}
// @Router /datasets/{id}/run-stats [get]
func (c *PipelineController) GetRunStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	days := 30
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 && d <= 365 {
		days = d
	}

	stats, err := c.pipelineService.GetRunDailyStats(r.Context(), id, days)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取运行统计失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("获取运行统计成功", stats))
}
