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
// APIクライアント、セッションストア、エディタから利用する。
type MetricsCollector interface {
	RecordBackendRequest(method string, statusCode int, duration time.Duration)
	RecordTokenRefresh(success bool)
	RecordSessionTransition(status string)
	RecordLinkOperation(op string)
	RecordSave(success bool)
	RecordPreview(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendRequests   *prometheus.CounterVec
	backendLatency    prometheus.Histogram
	tokenRefresh      *prometheus.CounterVec
	sessionTransition *prometheus.CounterVec
	linkOperations    *prometheus.CounterVec
	saves             *prometheus.CounterVec
	previews          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbio_backend_requests_total",
			Help: "バックエンドへのリクエスト数（メソッド・ステータスコード別、0は通信失敗）",
		}, []string{"method", "status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkbio_backend_request_duration_seconds",
			Help:    "バックエンドへのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbio_token_refresh_total",
			Help: "トークンリフレッシュの試行数（結果別）",
		}, []string{"result"}),
		sessionTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbio_session_transitions_total",
			Help: "セッション状態の遷移数（遷移先別）",
		}, []string{"status"}),
		linkOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbio_link_operations_total",
			Help: "保存時に発行したリンク操作の数（種別別）",
		}, []string{"op"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbio_page_saves_total",
			Help: "ページ保存の実行数（結果別）",
		}, []string{"result"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbio_link_previews_total",
			Help: "リンクプレビュー取得の実行数（結果別）",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.backendRequests,
		c.backendLatency,
		c.tokenRefresh,
		c.sessionTransition,
		c.linkOperations,
		c.saves,
		c.previews,
	)

	return c
}

// RecordBackendRequest はバックエンドへのリクエスト1件を記録する。
func (c *Collector) RecordBackendRequest(method string, statusCode int, duration time.Duration) {
	c.backendRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.backendLatency.Observe(duration.Seconds())
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	c.tokenRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordSessionTransition はセッション状態の遷移を記録する。
func (c *Collector) RecordSessionTransition(status string) {
	c.sessionTransition.WithLabelValues(status).Inc()
}

// RecordLinkOperation は発行したリンク操作（create/update/delete）を記録する。
func (c *Collector) RecordLinkOperation(op string) {
	c.linkOperations.WithLabelValues(op).Inc()
}

// RecordSave はページ保存の結果を記録する。
func (c *Collector) RecordSave(success bool) {
	c.saves.WithLabelValues(resultLabel(success)).Inc()
}

// RecordPreview はリンクプレビュー取得の結果を記録する。
func (c *Collector) RecordPreview(success bool) {
	c.previews.WithLabelValues(resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。
// メトリクスが不要なテストやツールで使用する。
type Nop struct{}

func (Nop) RecordBackendRequest(string, int, time.Duration) {}
func (Nop) RecordTokenRefresh(bool)                        {}
func (Nop) RecordSessionTransition(string)                 {}
func (Nop) RecordLinkOperation(string)                     {}
func (Nop) RecordSave(bool)                                {}
func (Nop) RecordPreview(bool)                             {}
