/*
 * @module api/controllers/dashboard_controller
 * @description 看板控制器，提供可持续性关键指标、图表数据、治理建议和CSV导出
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/greenroute_dashboard_impl.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式，数据聚合展示
 * @dependencies greenroute-service/service, github.com/go-chi/render
 * @refs api/routes.go
 */

package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"greenroute-service/service"
	"greenroute-service/service/analytics"
)

// DashboardController 看板控制器
type DashboardController struct {
	pipelineService *service.PipelineService
}

// NewDashboardController 创建看板控制器实例
func NewDashboardController() *DashboardController {
	return &DashboardController{
		pipelineService: service.GlobalPipelineService,
	}
}

// GetDashboard 获取看板数据
// @Summary 获取看板数据
// @Description 返回KPI、路线碳排放排行、车辆画像、发货仓份额、按日趋势和治理建议；治理建议始终基于全量数据
// @Tags 看板
// @Produce json
// @Param id path string true "数据集ID"
// @Param vehicle_types query string false "车辆类型过滤，逗号分隔"
// @Param priorities query string false "订单优先级过滤，逗号分隔"
// @Success 200 {object} APIResponse{data=analytics.DashboardData}
// @Failure 500 {object} APIResponse "流水线执行失败，响应携带错误分类码"
// @Router /datasets/{id}/dashboard [get]
func (c *DashboardController) GetDashboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	filter := parseDashboardFilter(r)

	data, err := c.pipelineService.Dashboard(r.Context(), id, filter)
	if err != nil {
		render.Render(w, r, PipelineErrorResponse("获取看板数据失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("获取看板数据成功", data))
}

// ExportCSV 导出过滤后的合并结果
// @Summary 导出合并结果CSV
// @Description 以CSV附件形式下载展示列名重命名并过滤后的合并结果
// @Tags 看板
// @Produce text/csv
// @Param id path string true "数据集ID"
// @Param vehicle_types query string false "车辆类型过滤，逗号分隔"
// @Param priorities query string false "订单优先级过滤，逗号分隔"
// @Success 200 {string} string "CSV文件"
// @Failure 500 {object} APIResponse "流水线执行失败，响应携带错误分类码"
// @Router /datasets/{id}/export [get]
func (c *DashboardController) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	filter := parseDashboardFilter(r)

	data, filename, err := c.pipelineService.Export(r.Context(), id, filter)
	if err != nil {
		render.Render(w, r, PipelineErrorResponse("导出合并结果失败", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parseDashboardFilter 从查询参数解析过滤条件
func parseDashboardFilter(r *http.Request) *analytics.DashboardFilter {
	filter := &analytics.DashboardFilter{}

	if raw := r.URL.Query().Get("vehicle_types"); raw != "" {
		filter.VehicleTypes = splitCSVParam(raw)
	}
	if raw := r.URL.Query().Get("priorities"); raw != "" {
		filter.Priorities = splitCSVParam(raw)
	}

	return filter
}

// splitCSVParam 拆分逗号分隔的查询参数，忽略空段
func splitCSVParam(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
