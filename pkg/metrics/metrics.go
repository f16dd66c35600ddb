package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		LoopIterationsTotal, LoopRunsTotal,
		ActionDuration, ModelDuration,
		RetrievalResults,
		JobDuration, JobTotal, WorkerBusy,
		IngestArticlesTotal,
		HTTPRequestsTotal,
	)
}

// LoopIterationsTotal 决策循环 Thinking 步总数
var LoopIterationsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "analyst_loop_iterations_total",
		Help: "决策循环 Thinking 步总数",
	},
)

// LoopRunsTotal LoopRun 终态计数
var LoopRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analyst_loop_runs_total",
		Help: "LoopRun 总数（按终态）",
	},
	[]string{"status"}, // completed | failed
)

// ActionDuration 动作执行耗时（秒）
var ActionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "analyst_action_duration_seconds",
		Help:    "动作执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"action", "status"}, // status: ok | error
)

// ModelDuration 决策模型调用耗时（秒）
var ModelDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "analyst_model_duration_seconds",
		Help:    "决策模型调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"status"},
)

// RetrievalResults 每次检索返回的文档数
var RetrievalResults = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "analyst_retrieval_results",
		Help:    "每次检索返回的文档数",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	},
)

// JobDuration Job 执行耗时（秒）
var JobDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "analyst_job_duration_seconds",
		Help:    "Job 执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// JobTotal Job 总数（按状态）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analyst_job_total",
		Help: "Job 总数（按状态）",
	},
	[]string{"status"}, // completed | failed | retried
)

// WorkerBusy 当前正在执行的 Job 数
var WorkerBusy = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "analyst_worker_busy",
		Help: "当前正在执行的 Job 数",
	},
)

// IngestArticlesTotal 新闻抓取入库计数
var IngestArticlesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analyst_ingest_articles_total",
		Help: "新闻抓取条数（按结果）",
	},
	[]string{"result"}, // stored | skipped
)

// HTTPRequestsTotal HTTP 请求计数
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analyst_http_requests_total",
		Help: "HTTP 请求总数",
	},
	[]string{"method", "route", "code"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
