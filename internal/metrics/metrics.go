package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gaia"

// Metrics 收集优化任务的运行指标
type Metrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
	bestFitness *prometheus.GaugeVec
	generations *prometheus.CounterVec
	evaluations prometheus.Counter
	inProgress  prometheus.Gauge

	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "已结束的优化任务数",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "优化任务的耗时",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "当前阶段最佳个体的适应度",
		}, []string{"stage"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "已完成的迭代次数",
		}, []string{"stage"}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "同步评估的布局数",
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_progress",
			Help:      "正在运行的优化任务数",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API 请求的耗时，按路由模式统计",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.bestFitness,
		m.generations,
		m.evaluations,
		m.inProgress,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回暴露当前指标的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RunStarted() {
	m.inProgress.Inc()
}

func (m *Metrics) RunFinished(status domain.RunStatus, duration time.Duration) {
	m.inProgress.Dec()
	m.runsTotal.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// RunAborted 用于被中断、稍后会重新执行的运行
func (m *Metrics) RunAborted() {
	m.inProgress.Dec()
}

func (m *Metrics) ObserveGeneration(stage domain.RunStage, best float64) {
	m.generations.WithLabelValues(string(stage)).Inc()
	m.bestFitness.WithLabelValues(string(stage)).Set(best)
}

func (m *Metrics) LayoutEvaluated() {
	m.evaluations.Inc()
}

// ObserveRequest 记录一次 API 请求，route 是路由模式而不是实际路径，避免运行 ID 撑爆标签
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
