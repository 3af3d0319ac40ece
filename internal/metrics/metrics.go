// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// 認証サービス、チャットサービス、セッションスイーパーから利用する。
type Recorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordSessionsSwept(count int)
	SetActiveSessions(count int)
	RecordChatLatency(duration time.Duration)
	RecordChatFailure(code string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginsTotal    *prometheus.CounterVec
	sessionsSwept  prometheus.Counter
	activeSessions prometheus.Gauge
	chatLatency    prometheus.Histogram
	chatFailures   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_logins_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_sessions_swept_total",
			Help: "スイープで削除された期限切れセッションの合計数",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_active_sessions",
			Help: "現在メモリ上に保持しているセッション数",
		}),
		chatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatrelay_chat_duration_seconds",
			Help:    "チャット応答生成のレイテンシ（秒）",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		chatFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_chat_failures_total",
			Help: "チャット応答生成失敗のエラーコード別合計数",
		}, []string{"code"}),
	}

	reg.MustRegister(
		c.loginsTotal,
		c.sessionsSwept,
		c.activeSessions,
		c.chatLatency,
		c.chatFailures,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginsTotal.WithLabelValues("success").Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginsTotal.WithLabelValues("failure").Inc()
}

// RecordSessionsSwept はスイープで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int) {
	c.sessionsSwept.Add(float64(count))
}

// SetActiveSessions は現在のセッション数を記録する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// RecordChatLatency はチャット応答生成のレイテンシを記録する。
func (c *Collector) RecordChatLatency(duration time.Duration) {
	c.chatLatency.Observe(duration.Seconds())
}

// RecordChatFailure はチャット応答生成の失敗を記録する。
func (c *Collector) RecordChatFailure(code string) {
	c.chatFailures.WithLabelValues(code).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)
