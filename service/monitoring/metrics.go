/*
 * @module service/monitoring/metrics
 * @description Prometheus指标定义，覆盖流水线运行、结果缓存、数据源刷新和SSE连接
 * @architecture 分层架构 - 监控层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第10节
 * @stateFlow 业务事件 -> 指标记录 -> /metrics暴露
 * @rules 指标注册在包加载时完成，记录操作不产生错误
 * @dependencies github.com/prometheus/client_golang/prometheus
 * @refs main.go, service/pipeline_service.go
 */

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pipelineRunsTotal 流水线运行计数，按数据集、触发方式和结果分类
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "greenroute",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "流水线运行总数",
		},
		[]string{"dataset", "trigger", "status"},
	)

	// pipelineRunDuration 流水线运行耗时分布
	pipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "greenroute",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "流水线运行耗时（秒）",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"dataset"},
	)

	// pipelineOutputRows 最近一次成功运行的输出行数
	pipelineOutputRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "greenroute",
			Subsystem: "pipeline",
			Name:      "output_rows",
			Help:      "最近一次成功运行的合并结果行数",
		},
		[]string{"dataset"},
	)

	// cacheRequestsTotal 结果缓存请求计数
	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "greenroute",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "结果缓存请求总数",
		},
		[]string{"outcome"},
	)

	// sourceChangesTotal 检测到的数据源变更计数
	sourceChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "greenroute",
			Subsystem: "refresh",
			Name:      "source_changes_total",
			Help:      "检测到的数据源文件变更总数",
		},
	)

	// sseConnections 当前SSE连接数
	sseConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "greenroute",
			Subsystem: "events",
			Name:      "sse_connections",
			Help:      "当前活跃SSE连接数",
		},
	)
)

// ObserveRunCompleted 记录一次流水线运行结果
func ObserveRunCompleted(dataset, trigger, status string, durationSeconds float64, outputRows int) {
	pipelineRunsTotal.WithLabelValues(dataset, trigger, status).Inc()
	pipelineRunDuration.WithLabelValues(dataset).Observe(durationSeconds)
	if outputRows >= 0 {
		pipelineOutputRows.WithLabelValues(dataset).Set(float64(outputRows))
	}
}

// RecordCacheHit 记录一次缓存命中
func RecordCacheHit() {
	cacheRequestsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss 记录一次缓存未命中
func RecordCacheMiss() {
	cacheRequestsTotal.WithLabelValues("miss").Inc()
}

// RecordSourceChange 记录一次数据源变更
func RecordSourceChange() {
	sourceChangesTotal.Inc()
}

// SetSSEConnections 更新当前SSE连接数
func SetSSEConnections(count int) {
	sseConnections.Set(float64(count))
}
