/*
 * @module service/database/views/dataset_overview_view
 * @description 数据集相关视图定义，聚合数据集基本信息与运行统计
 * @architecture 数据库视图层 - 基于PostgreSQL视图实现数据聚合
 * @documentReference docs/database_design.md
 * @stateFlow 数据集生命周期视图管理
 * @rules 遵循PostgreSQL视图设计规范，聚合统计来自pipeline_runs表
 * @dependencies PostgreSQL, GORM模型定义
 * @refs service/models/dataset.go
 */

package views

var DatasetViews = map[string]string{
	// 数据集总览视图 - 数据集基本信息加运行统计
	"dataset_overview": `
		DROP VIEW IF EXISTS dataset_overview;
		CREATE VIEW dataset_overview AS
		SELECT
			d.id,
			d.name,
			d.description,
			d.base_dir,
			d.status,
			d.last_fingerprint,
			d.last_run_at,
			d.created_at,
			d.updated_at,
			COUNT(r.id) AS run_count,
			COUNT(r.id) FILTER (WHERE r.status = 'succeeded') AS succeeded_count,
			COUNT(r.id) FILTER (WHERE r.status = 'failed') AS failed_count,
			MAX(r.finished_at) AS last_finished_at,
			COALESCE(AVG(r.duration_ms) FILTER (WHERE r.status = 'succeeded'), 0) AS avg_duration_ms
		FROM datasets d
		LEFT JOIN pipeline_runs r ON r.dataset_id = d.id
		GROUP BY d.id, d.name, d.description, d.base_dir, d.status,
			d.last_fingerprint, d.last_run_at, d.created_at, d.updated_at;
	`,
}
