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
// パイプライン、フォローアップ、ワーカーから利用する。
type MetricsCollector interface {
	RecordSendSuccess()
	RecordSendFailure(reason string)
	RecordAuthorizationRequired(purpose string)
	RecordGatewayStatus(statusCode int)
	RecordSendLatency(duration time.Duration)
	RecordFollowUpsScheduled(count int)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sendSuccess       prometheus.Counter
	sendFail          *prometheus.CounterVec
	authRequired      *prometheus.CounterVec
	gatewayStatus     *prometheus.CounterVec
	sendLatency       prometheus.Histogram
	followUpsSchedule prometheus.Counter
	sessionsCleaned   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sendSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reapply_send_success_total",
			Help: "応募メール送信成功の合計数",
		}),
		sendFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reapply_send_fail_total",
			Help: "応募メール送信失敗の合計数（理由別）",
		}, []string{"reason"}),
		authRequired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reapply_authorization_required_total",
			Help: "認証情報が利用できず認可フローへ誘導した回数",
		}, []string{"purpose"}),
		gatewayStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reapply_gateway_status_total",
			Help: "メール送信APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reapply_send_latency_seconds",
			Help:    "メール送信APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		followUpsSchedule: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reapply_followups_scheduled_total",
			Help: "登録されたフォローアップの合計数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reapply_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.sendSuccess,
		c.sendFail,
		c.authRequired,
		c.gatewayStatus,
		c.sendLatency,
		c.followUpsSchedule,
		c.sessionsCleaned,
	)

	return c
}

// RecordSendSuccess は送信成功を記録する。
func (c *Collector) RecordSendSuccess() {
	c.sendSuccess.Inc()
}

// RecordSendFailure は送信失敗を理由別に記録する。
func (c *Collector) RecordSendFailure(reason string) {
	c.sendFail.WithLabelValues(reason).Inc()
}

// RecordAuthorizationRequired は認可フローへの誘導を記録する。
func (c *Collector) RecordAuthorizationRequired(purpose string) {
	c.authRequired.WithLabelValues(purpose).Inc()
}

// RecordGatewayStatus はメール送信APIのHTTPステータスコードを記録する。
func (c *Collector) RecordGatewayStatus(statusCode int) {
	c.gatewayStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSendLatency は送信のレイテンシを記録する。
func (c *Collector) RecordSendLatency(duration time.Duration) {
	c.sendLatency.Observe(duration.Seconds())
}

// RecordFollowUpsScheduled は登録されたフォローアップ数を記録する。
func (c *Collector) RecordFollowUpsScheduled(count int) {
	c.followUpsSchedule.Add(float64(count))
}

// RecordSessionsCleaned は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var _ MetricsCollector = (*Collector)(nil)

// NopCollector は何も記録しないMetricsCollectorの実装。
// メトリクスを必要としないテストやコマンドで使用する。
type NopCollector struct{}

func (NopCollector) RecordSendSuccess()                 {}
func (NopCollector) RecordSendFailure(string)           {}
func (NopCollector) RecordAuthorizationRequired(string) {}
func (NopCollector) RecordGatewayStatus(int)            {}
func (NopCollector) RecordSendLatency(time.Duration)    {}
func (NopCollector) RecordFollowUpsScheduled(int)       {}
func (NopCollector) RecordSessionsCleaned(int64)        {}

var _ MetricsCollector = NopCollector{}
