/*
 * @module api/controllers/api_key_controller
 * @description API密钥管理控制器，密钥明文只在创建响应中出现一次
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies greenroute-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/api_key_service.go, api/middleware/api_key_auth.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"greenroute-service/service"
	"greenroute-service/service/models"
)

// ApiKeyController API密钥管理控制器
type ApiKeyController struct {
	apiKeyService *service.ApiKeyService
}

// NewApiKeyController 创建API密钥控制器实例
func NewApiKeyController() *ApiKeyController {
	return &ApiKeyController{
		apiKeyService: service.GlobalApiKeyService,
	}
}

// CreateApiKeyRequest 创建API密钥请求
type CreateApiKeyRequest struct {
	Name        string     `json:"name" example:"dashboard-client"`
	Description string     `json:"description"`
	Scopes      []string   `json:"scopes" example:"read"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// CreateApiKeyResponse 创建API密钥响应，Key字段只在此响应中出现
type CreateApiKeyResponse struct {
	ApiKey *models.ApiKey `json:"api_key"`
	Key    string         `json:"key" example:"f3a9c2..."`
}

// CreateApiKey 创建API密钥
// @Summary 创建API密钥
// @Description 创建新密钥，响应中的明文密钥只出现一次，请妥善保存
// @Tags 密钥管理
// @Accept json
// @Produce json
// @Param request body CreateApiKeyRequest true "创建密钥请求"
// @Success 200 {object} APIResponse{data=CreateApiKeyResponse}
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /api-keys [post]
func (c *ApiKeyController) CreateApiKey(w http.ResponseWriter, r *http.Request) {
	var req CreateApiKeyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "请求参数解析失败", err))
		return
	}

	apiKey, plainKey, err := c.apiKeyService.CreateApiKey(r.Context(), req.Name, req.Description, req.Scopes, req.ExpiresAt)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusBadRequest, "创建密钥失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("创建密钥成功", CreateApiKeyResponse{
		ApiKey: apiKey,
		Key:    plainKey,
	}))
}

// GetApiKeys 获取API密钥列表
// @Summary 获取API密钥列表
// @Description 分页获取密钥列表，不包含密钥明文和哈希
// @Tags 密钥管理
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param status query string false "状态过滤" Enums(active, revoked)
// @Success 200 {object} PaginatedResponse
// @Router /api-keys [get]
func (c *ApiKeyController) GetApiKeys(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)
	status := r.URL.Query().Get("status")

	keys, total, err := c.apiKeyService.GetApiKeys(r.Context(), page, size, status)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusInternalServerError, "获取密钥列表失败", err))
		return
	}

	render.Render(w, r, PaginatedSuccessResponse("获取密钥列表成功", keys, total, page, size))
}

// GetApiKey 获取API密钥详情
// @Summary 获取API密钥详情
// @Description 根据ID获取密钥信息，不包含密钥明文和哈希
// @Tags 密钥管理
// @Produce json
// @Param id path string true "密钥ID"
// @Success 200 {object} APIResponse{data=models.ApiKey}
// @Failure 404 {object} APIResponse "密钥不存在"
// @Router /api-keys/{id} [get]
func (c *ApiKeyController) GetApiKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	key, err := c.apiKeyService.GetApiKeyByID(r.Context(), id)
	if err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "获取密钥失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("获取密钥成功", key))
}

// RevokeApiKey 吊销API密钥
// @Summary 吊销API密钥
// @Description 吊销后的密钥立即失效且不可恢复
// @Tags 密钥管理
// @Produce json
// @Param id path string true "密钥ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse "密钥不存在"
// @Router /api-keys/{id}/revoke [post]
func (c *ApiKeyController) RevokeApiKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.apiKeyService.RevokeApiKey(r.Context(), id); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "吊销密钥失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("吊销密钥成功", map[string]interface{}{"id": id}))
}

// DeleteApiKey 删除API密钥
// @Summary 删除API密钥
// @Description 物理删除密钥记录
// @Tags 密钥管理
// @Produce json
// @Param id path string true "密钥ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse "密钥不存在"
// @Router /api-keys/{id} [delete]
func (c *ApiKeyController) DeleteApiKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.apiKeyService.DeleteApiKey(r.Context(), id); err != nil {
		render.Render(w, r, ErrorResponse(http.StatusNotFound, "删除密钥失败", err))
		return
	}

	render.Render(w, r, SuccessResponse("删除密钥成功", map[string]interface{}{"id": id}))
}
