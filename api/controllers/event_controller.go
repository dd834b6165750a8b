/*
 * @module api/controllers/event_controller
 * @description 事件控制器，提供流水线事件的SSE订阅和事件历史查询API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/greenroute_event_impl.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies greenroute-service/service, github.com/go-chi/render
 * @refs service/event/event_service.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"greenroute-service/service"
	"greenroute-service/service/event"
	"greenroute-service/service/models"
)

// EventController 事件控制器
type EventController struct {
	eventService *event.EventService
}

// NewEventController 创建事件控制器实例
func NewEventController() *EventController {
	return &EventController{
		eventService: service.GlobalEventService,
	}
}

// === SSE连接处理 ===

// HandleSSE 处理SSE连接
// @Summary 建立SSE连接
// @Description 建立SSE连接，接收运行状态、数据源变更和缓存失效的实时推送
// @Tags 事件管理
// @Success 200 {string} string "SSE事件流"
// @Router /sse [get]
func (c *EventController) HandleSSE(w http.ResponseWriter, r *http.Request) {
	// 设置SSE响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	// 生成连接ID
	connectionID := uuid.New().String()
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP = forwarded
	}

	// 添加SSE连接
	client := c.eventService.AddSSEConnection(connectionID, clientIP)
	defer c.eventService.RemoveSSEConnection(connectionID)

	// 发送连接成功事件
	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"connection_id\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		connectionID, time.Now().Format(time.RFC3339))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	// 处理事件推送
	for {
		select {
		case evt := <-client.Channel:
			fmt.Fprintf(w, "data: %s\n\n", toJSON(evt))

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-client.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// GetEventHistoryList 获取事件历史列表
// @Summary 获取事件历史列表
// @Description 分页获取流水线事件历史，支持数据集和事件类型过滤
// @Tags 事件管理
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param dataset_id query string false "数据集ID过滤"
// @Param event_type query string false "事件类型过滤" Enums(run_started, run_succeeded, run_failed, source_changed, cache_invalidated)
// @Success 200 {object} APIResponse{data=EventHistoryListResponse} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /events/history [get]
func (c *EventController) GetEventHistoryList(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)
	datasetID := r.URL.Query().Get("dataset_id")
	eventType := r.URL.Query().Get("event_type")

	events, total, err := c.eventService.ListEvents(page, size, datasetID, eventType)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取事件历史列表失败", err))
		return
	}

	response := EventHistoryListResponse{
		List:  events,
		Total: total,
		Page:  page,
		Size:  size,
	}

	render.Render(w, r, SuccessResponse("获取事件历史列表成功", response))
}

// GetConnectionStats 获取SSE连接统计
// @Summary 获取SSE连接统计
// @Description 返回当前活跃的SSE连接数
// @Tags 事件管理
// @Produce json
// @Success 200 {object} APIResponse
// @Router /events/connections [get]
func (c *EventController) GetConnectionStats(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, SuccessResponse("获取连接统计成功", map[string]interface{}{
		"active_connections": c.eventService.ConnectionCount(),
	}))
}

// === 响应结构体 ===

// EventHistoryListResponse 事件历史列表响应结构
type EventHistoryListResponse struct {
	List  []models.PipelineEvent `json:"list"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Size  int                    `json:"size"`
}

// toJSON 将对象转换为JSON字符串
func toJSON(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}
