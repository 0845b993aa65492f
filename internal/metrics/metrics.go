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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordDosesGenerated(count int)
	RecordDoseConfirmed()
	RecordSweepClaimed(count int)
	RecordNotification(channel, outcome string)
	RecordHTTPStatus(statusCode int)
	RecordSweepLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	dosesGenerated prometheus.Counter
	dosesConfirmed prometheus.Counter
	sweepClaimed   prometheus.Counter
	notifications  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	sweepLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		dosesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_doses_generated_total",
			Help: "生成された服薬記録の合計数",
		}),
		dosesConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_doses_confirmed_total",
			Help: "服薬確認（TAKEN遷移）の合計数",
		}),
		sweepClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_sweep_claimed_total",
			Help: "スイープがMISSEDに遷移させた服薬記録の合計数",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medreminder_notifications_total",
			Help: "チャネル・結果別の通知送信数",
		}, []string{"channel", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medreminder_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medreminder_sweep_latency_seconds",
			Help:    "服用忘れスイープのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.dosesGenerated,
		c.dosesConfirmed,
		c.sweepClaimed,
		c.notifications,
		c.httpStatus,
		c.sweepLatency,
	)

	return c
}

// RecordDosesGenerated は生成された服薬記録数を記録する。
func (c *Collector) RecordDosesGenerated(count int) {
	c.dosesGenerated.Add(float64(count))
}

// RecordDoseConfirmed は服薬確認を記録する。
func (c *Collector) RecordDoseConfirmed() {
	c.dosesConfirmed.Inc()
}

// RecordSweepClaimed はスイープがMISSEDに遷移させた記録数を記録する。
func (c *Collector) RecordSweepClaimed(count int) {
	c.sweepClaimed.Add(float64(count))
}

// RecordNotification は通知送信の結果を記録する。
func (c *Collector) RecordNotification(channel, outcome string) {
	c.notifications.WithLabelValues(channel, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSweepLatency はスイープのレイテンシを記録する。
func (c *Collector) RecordSweepLatency(duration time.Duration) {
	c.sweepLatency.Observe(duration.Seconds())
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
