package views

var RunViews = map[string]string{

	// 运行按日统计视图 - 按数据集和日期聚合运行结果
	"run_daily_stats": `
		DROP VIEW IF EXISTS run_daily_stats;
		CREATE VIEW run_daily_stats AS
		SELECT
			dataset_id,
			DATE(started_at) AS run_date,
			COUNT(*) AS total_runs,
			COUNT(*) FILTER (WHERE status = 'succeeded') AS succeeded_runs,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed_runs,
			COALESCE(AVG(duration_ms) FILTER (WHERE status = 'succeeded'), 0) AS avg_duration_ms,
			MAX(row_count) AS max_row_count
		FROM pipeline_runs
		GROUP BY dataset_id, DATE(started_at)
		ORDER BY dataset_id, run_date DESC;
	`,
}
