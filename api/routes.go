/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers, api/middleware
 */

package api

import (
	"greenroute-service/api/controllers"
	apimiddleware "greenroute-service/api/middleware"
	"greenroute-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API密钥鉴权（AUTH_ENABLED=true时生效）
	authMiddleware := apimiddleware.NewApiKeyAuthMiddleware()
	r.Use(authMiddleware.Middleware)
	requireWrite := authMiddleware.RequireScope(models.ApiKeyScopeWrite)
	requireAdmin := authMiddleware.RequireScope(models.ApiKeyScopeAdmin)

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)
	r.Get("/health/detail", healthController.HealthDetail)

	// SSE事件订阅
	eventController := controllers.NewEventController()
	r.Get("/sse", eventController.HandleSSE)

	// 事件管理
	r.Route("/events", func(r chi.Router) {
		r.Get("/history", eventController.GetEventHistoryList)
		r.Get("/connections", eventController.GetConnectionStats)
	})

	// 数据集管理与合并流水线
	r.Route("/datasets", func(r chi.Router) {
		datasetController := controllers.NewDatasetController()
		pipelineController := controllers.NewPipelineController()
		dashboardController := controllers.NewDashboardController()

		// 基础CRUD操作
		r.With(requireWrite).Post("/", datasetController.CreateDataset)
		r.Get("/", datasetController.GetDatasets)
		r.Get("/overview", datasetController.GetDatasetOverviews)
		r.Get("/{id}", datasetController.GetDataset)
		r.With(requireWrite).Put("/{id}", datasetController.UpdateDataset)
		r.With(requireWrite).Delete("/{id}", datasetController.DeleteDataset)

		// 缓存失效
		r.Get("/{id}/sources/{kind}/preview", datasetController.PreviewSource)
		r.With(requireWrite).Post("/{id}/invalidate-cache", datasetController.InvalidateCache)

		// 合并运行控制
		r.With(requireWrite).Post("/{id}/run", pipelineController.TriggerRun)
		r.Get("/{id}/current", pipelineController.GetCurrentResult)
		r.Get("/{id}/preview", pipelineController.PreviewResult)
		r.Get("/{id}/run-stats", pipelineController.GetRunStats)

		// 分析仪表盘
		r.Get("/{id}/dashboard", dashboardController.GetDashboard)
		r.Get("/{id}/export", dashboardController.ExportCSV)
	})

	// 运行历史查询
	r.Route("/runs", func(r chi.Router) {
		pipelineController := controllers.NewPipelineController()
		r.Get("/", pipelineController.GetRuns)
		r.Get("/{id}", pipelineController.GetRun)
	})

	// API密钥管理
	r.Route("/api-keys", func(r chi.Router) {
		r.Use(requireAdmin)
		apiKeyController := controllers.NewApiKeyController()
		r.Post("/", apiKeyController.CreateApiKey)
		r.Get("/", apiKeyController.GetApiKeys)
		r.Get("/{id}", apiKeyController.GetApiKey)
		r.Post("/{id}/revoke", apiKeyController.RevokeApiKey)
		r.Delete("/{id}", apiKeyController.DeleteApiKey)
	})

	// 系统配置管理
	r.Route("/config", func(r chi.Router) {
		configController := controllers.NewConfigController()
		r.Get("/", configController.GetAllConfigs)
		r.Get("/{key}", configController.GetConfig)
		r.With(requireAdmin).Put("/{key}", configController.UpdateConfig)
		r.With(requireAdmin).Post("/batch", configController.BatchUpdateConfigs)
	})
}
