// Package metrics Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cscenter"

var (
	// JobsProcessed 按任务名统计成功执行次数
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Background jobs finished successfully.",
	}, []string{"job"})

	// JobsFailed 按任务名统计失败次数
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_failed_total",
		Help:      "Background jobs that returned an error or timed out.",
	}, []string{"job"})

	// JobDuration 任务耗时
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "job_duration_seconds",
		Help:      "Background job execution time.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
	}, []string{"job"})

	// ContestRowsUpdated 从榜单导入时更新的测试记录数
	ContestRowsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "admission",
		Name:      "contest_rows_updated_total",
		Help:      "Online test rows updated from contest standings.",
	})

	// GradebookConflicts 成绩单保存时检测到的并发冲突数
	GradebookConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "gradebook_conflicts_total",
		Help:      "Gradebook cells rejected because of a concurrent edit.",
	})
)

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
