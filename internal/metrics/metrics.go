// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアとハンドラーから利用する。
type MetricsCollector interface {
	RecordTokenIssued(version string)
	RecordTokenRejected(reason string)
	RecordRateLimited(route string)
	RecordCORSDecision(allowed bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	tokensIssued    *prometheus.CounterVec
	tokenRejections *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	corsDecisions   *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodebird_tokens_issued_total",
			Help: "APIバージョン別のトークン発行数",
		}, []string{"version"}),
		tokenRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodebird_token_rejections_total",
			Help: "理由別のトークン検証拒否数",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodebird_rate_limited_total",
			Help: "ルート別のレート制限超過数",
		}, []string{"route"}),
		corsDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodebird_cors_decisions_total",
			Help: "オリジン判定の結果別件数",
		}, []string{"allowed"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodebird_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nodebird_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.tokensIssued,
		c.tokenRejections,
		c.rateLimited,
		c.corsDecisions,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordTokenIssued はトークン発行を記録する。
func (c *Collector) RecordTokenIssued(version string) {
	c.tokensIssued.WithLabelValues(version).Inc()
}

// RecordTokenRejected はトークン検証の拒否を記録する。
// reasonは missing, expired, invalid のいずれか。
func (c *Collector) RecordTokenRejected(reason string) {
	c.tokenRejections.WithLabelValues(reason).Inc()
}

// RecordRateLimited はレート制限超過を記録する。
func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// RecordCORSDecision はオリジン判定の結果を記録する。
func (c *Collector) RecordCORSDecision(allowed bool) {
	c.corsDecisions.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
