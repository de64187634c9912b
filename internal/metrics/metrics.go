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
// サービス層、シードジョブ、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordSwipe(direction string)
	RecordSwipePersistFailure(kind string)
	RecordCatalogLoadFailure()
	RecordComparisonSave(result string)
	RecordSeedRecord(job, outcome string)
	RecordImageSearchLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	swipes             *prometheus.CounterVec
	swipePersistFail   *prometheus.CounterVec
	catalogLoadFail    prometheus.Counter
	comparisonSaves    *prometheus.CounterVec
	seedRecords        *prometheus.CounterVec
	imageSearchLatency prometheus.Histogram
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		swipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniswipe_swipes_total",
			Help: "方向別のスワイプ数",
		}, []string{"direction"}),
		swipePersistFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniswipe_swipe_persist_failures_total",
			Help: "スワイプ記録の永続化失敗数（kind: event, favorite, lookup）",
		}, []string{"kind"}),
		catalogLoadFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uniswipe_catalog_load_failures_total",
			Help: "大学カタログの読み込み失敗数",
		}),
		comparisonSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniswipe_comparison_saves_total",
			Help: "比較画面の評価・メモ保存数（result: saved, save_error）",
		}, []string{"result"}),
		seedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniswipe_seed_records_total",
			Help: "シードジョブで処理したレコード数",
		}, []string{"job", "outcome"}),
		imageSearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uniswipe_image_search_latency_seconds",
			Help:    "画像検索APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniswipe_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.swipes,
		c.swipePersistFail,
		c.catalogLoadFail,
		c.comparisonSaves,
		c.seedRecords,
		c.imageSearchLatency,
		c.httpStatus,
	)

	return c
}

// RecordSwipe はスワイプを方向別に記録する。
func (c *Collector) RecordSwipe(direction string) {
	c.swipes.WithLabelValues(direction).Inc()
}

// RecordSwipePersistFailure はスワイプ記録の永続化失敗を記録する。
func (c *Collector) RecordSwipePersistFailure(kind string) {
	c.swipePersistFail.WithLabelValues(kind).Inc()
}

// RecordCatalogLoadFailure はカタログ読み込み失敗を記録する。
func (c *Collector) RecordCatalogLoadFailure() {
	c.catalogLoadFail.Inc()
}

// RecordComparisonSave は評価・メモ保存の結果を記録する。
func (c *Collector) RecordComparisonSave(result string) {
	c.comparisonSaves.WithLabelValues(result).Inc()
}

// RecordSeedRecord はシードジョブの1レコード分の結果を記録する。
func (c *Collector) RecordSeedRecord(job, outcome string) {
	c.seedRecords.WithLabelValues(job, outcome).Inc()
}

// RecordImageSearchLatency は画像検索のレイテンシを記録する。
func (c *Collector) RecordImageSearchLatency(duration time.Duration) {
	c.imageSearchLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
