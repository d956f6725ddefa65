package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 拉取指标
	FetchCyclesTotal   prometheus.Counter
	FetchFailuresTotal prometheus.Counter
	FetchDuration      prometheus.Histogram
	EmailsFetched      prometheus.Counter
	EmailsKept         prometheus.Gauge

	// 分类指标
	EmailsClassified *prometheus.CounterVec
	ClassifyDuration prometheus.Histogram

	// 驳回与打开指标
	EmailsDismissed        prometheus.Counter
	ConversationsDismissed prometheus.Counter
	EmailsOpened           prometheus.Counter

	// 用户指标
	UsersRegistered prometheus.Counter
	ClientsOnline   prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitHits   *prometheus.CounterVec
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outprio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outprio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outprio_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outprio_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 拉取指标
		FetchCyclesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_fetch_cycles_total",
				Help: "Total number of fetch cycles attempted",
			},
		),

		FetchFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_fetch_failures_total",
				Help: "Total number of failed fetch cycles",
			},
		),

		FetchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "outprio_fetch_duration_seconds",
				Help:    "Duration of a full fetch cycle in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),

		EmailsFetched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_emails_fetched_total",
				Help: "Total number of unread emails fetched from upstream",
			},
		),

		EmailsKept: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "outprio_emails_kept",
				Help: "Number of emails in the current snapshot",
			},
		),

		// 分类指标
		EmailsClassified: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outprio_emails_classified_total",
				Help: "Total number of emails classified, by importance tier",
			},
			[]string{"tier"},
		),

		ClassifyDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "outprio_classify_duration_seconds",
				Help:    "Duration of classifying one fetch batch in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		// 驳回与打开指标
		EmailsDismissed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_emails_dismissed_total",
				Help: "Total number of emails dismissed",
			},
		),

		ConversationsDismissed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_conversations_dismissed_total",
				Help: "Total number of conversations dismissed",
			},
		),

		EmailsOpened: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_emails_opened_total",
				Help: "Total number of emails opened in the mail client",
			},
		),

		// 用户指标
		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_users_registered_total",
				Help: "Total number of registered users",
			},
		),

		ClientsOnline: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "outprio_clients_online",
				Help: "Number of connected websocket clients",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outprio_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outprio_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		// 限流指标
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outprio_rate_limit_hits_total",
				Help: "Total number of rate limit checks",
			},
			[]string{"type"},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outprio_rate_limit_blocks_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordFetchCycle 记录一轮拉取
func (m *Metrics) RecordFetchCycle(duration time.Duration, fetched, kept int, err error) {
	m.FetchCyclesTotal.Inc()
	m.FetchDuration.Observe(duration.Seconds())
	if err != nil {
		m.FetchFailuresTotal.Inc()
		return
	}
	m.EmailsFetched.Add(float64(fetched))
	m.EmailsKept.Set(float64(kept))
}

// RecordClassified 按重要度等级记录分类结果
func (m *Metrics) RecordClassified(tier string) {
	m.EmailsClassified.WithLabelValues(tier).Inc()
}

// RecordEmailDismissed 记录单封驳回
func (m *Metrics) RecordEmailDismissed() {
	m.EmailsDismissed.Inc()
}

// RecordConversationDismissed 记录会话驳回
func (m *Metrics) RecordConversationDismissed() {
	m.ConversationsDismissed.Inc()
}

// RecordEmailOpened 记录邮件打开
func (m *Metrics) RecordEmailOpened() {
	m.EmailsOpened.Inc()
}

// RecordUserRegistered 记录用户注册
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// UpdateClientsOnline 更新在线客户端数
func (m *Metrics) UpdateClientsOnline(count int) {
	m.ClientsOnline.Set(float64(count))
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitHit 记录限流命中
func (m *Metrics) RecordRateLimitHit(limitType string) {
	m.RateLimitHits.WithLabelValues(limitType).Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
