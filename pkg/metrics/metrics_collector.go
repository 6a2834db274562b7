package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 实时变更指标
	changesPublished    *prometheus.CounterVec
	changesDelivered    *prometheus.CounterVec
	changesDropped      *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge

	// 同步层指标
	refetchTotal *prometheus.CounterVec

	// 业务指标
	mutationsTotal *prometheus.CounterVec

	// 缓存指标
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	// 任务池指标
	tasksTotal *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器，注册到给定 Registerer（nil 时使用默认注册表）
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		changesPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_changes_published_total",
				Help: "Total number of change events published",
			},
			[]string{"table", "type"},
		),

		changesDelivered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_changes_delivered_total",
				Help: "Total number of change events delivered to subscribers",
			},
			[]string{"table"},
		),

		changesDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_changes_dropped_total",
				Help: "Change events dropped because a subscriber was too slow",
			},
			[]string{"table"},
		),

		activeSubscriptions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "realtime_active_subscriptions",
				Help: "Number of open change feed subscriptions",
			},
		),

		refetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datasource_refetch_total",
				Help: "Total number of collection snapshot fetches",
			},
			[]string{"collection", "status"},
		),

		mutationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "domain_mutations_total",
				Help: "Total number of domain mutations",
			},
			[]string{"domain", "action", "status"},
		),

		cacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_prefix"},
		),

		cacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_prefix"},
		),

		tasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_tasks_total",
				Help: "Total number of background tasks by outcome",
			},
			[]string{"task", "status"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, getStatusCategory(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordChangePublished 记录发布的变更
func (m *MetricsCollector) RecordChangePublished(table, changeType string) {
	m.changesPublished.WithLabelValues(table, changeType).Inc()
}

// RecordChangeDelivered 记录投递的变更
func (m *MetricsCollector) RecordChangeDelivered(table string) {
	m.changesDelivered.WithLabelValues(table).Inc()
}

// RecordChangeDropped 记录丢弃的变更
func (m *MetricsCollector) RecordChangeDropped(table string) {
	m.changesDropped.WithLabelValues(table).Inc()
}

// AddSubscriptions 调整活跃订阅数
func (m *MetricsCollector) AddSubscriptions(delta int) {
	m.activeSubscriptions.Add(float64(delta))
}

// RecordRefetch 记录快照拉取
func (m *MetricsCollector) RecordRefetch(collection string, success bool) {
	m.refetchTotal.WithLabelValues(collection, statusLabel(success)).Inc()
}

// RecordMutation 记录业务写操作
func (m *MetricsCollector) RecordMutation(domain, action string, err error) {
	m.mutationsTotal.WithLabelValues(domain, action, statusLabel(err == nil)).Inc()
}

// RecordCacheOperation 记录缓存命中情况
func (m *MetricsCollector) RecordCacheOperation(keyPrefix string, hit bool) {
	if hit {
		m.cacheHitsTotal.WithLabelValues(keyPrefix).Inc()
		return
	}
	m.cacheMissesTotal.WithLabelValues(keyPrefix).Inc()
}

// RecordTask 记录后台任务结果：success, retry, failed
func (m *MetricsCollector) RecordTask(task, status string) {
	m.tasksTotal.WithLabelValues(task, status).Inc()
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// getStatusCategory 获取状态分类
func getStatusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

var (
	globalCollector *MetricsCollector
	once            sync.Once
)

// GetGlobalCollector 获取全局指标收集器，promauto 重复注册会 panic，这里只初始化一次
func GetGlobalCollector() *MetricsCollector {
	once.Do(func() {
		globalCollector = NewMetricsCollector(nil)
	})
	return globalCollector
}
