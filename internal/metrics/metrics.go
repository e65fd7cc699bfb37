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
// フェッチ/パース/ライターの各ワーカーから利用する。
type MetricsCollector interface {
	RecordFetchSuccess()
	RecordFetchNotModified()
	RecordFetchFailure()
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordParseFailure()
	RecordEntriesKept(count int)
	RecordFeedsWritten(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess     prometheus.Counter
	fetchNotModified prometheus.Counter
	fetchFail        prometheus.Counter
	httpStatus       *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	parseFail        prometheus.Counter
	entriesKept      prometheus.Counter
	feedsWritten     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedmill_fetch_success_total",
			Help: "フィードフェッチ成功（200）の合計数",
		}),
		fetchNotModified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedmill_fetch_not_modified_total",
			Help: "未変更レスポンス（304）の合計数",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedmill_fetch_fail_total",
			Help: "フィードフェッチ失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedmill_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedmill_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedmill_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		entriesKept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedmill_entries_kept_total",
			Help: "フィルタを通過したエントリの合計数",
		}),
		feedsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedmill_feeds_written_total",
			Help: "書き出された出力ファイルの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchNotModified,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.parseFail,
		c.entriesKept,
		c.feedsWritten,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() { c.fetchSuccess.Inc() }

// RecordFetchNotModified は304レスポンスを記録する。
func (c *Collector) RecordFetchNotModified() { c.fetchNotModified.Inc() }

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure() { c.fetchFail.Inc() }

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure() { c.parseFail.Inc() }

// RecordEntriesKept はフィルタを通過したエントリ数を記録する。
func (c *Collector) RecordEntriesKept(count int) { c.entriesKept.Add(float64(count)) }

// RecordFeedsWritten は書き出された出力ファイル数を記録する。
func (c *Collector) RecordFeedsWritten(count int) { c.feedsWritten.Add(float64(count)) }

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop はメトリクスを破棄するMetricsCollector。ワンショット実行やテストで使用する。
type Nop struct{}

// RecordFetchSuccess は何もしない。
func (Nop) RecordFetchSuccess() {}

// RecordFetchNotModified は何もしない。
func (Nop) RecordFetchNotModified() {}

// RecordFetchFailure は何もしない。
func (Nop) RecordFetchFailure() {}

// RecordHTTPStatus は何もしない。
func (Nop) RecordHTTPStatus(int) {}

// RecordFetchLatency は何もしない。
func (Nop) RecordFetchLatency(time.Duration) {}

// RecordParseFailure は何もしない。
func (Nop) RecordParseFailure() {}

// RecordEntriesKept は何もしない。
func (Nop) RecordEntriesKept(int) {}

// RecordFeedsWritten は何もしない。
func (Nop) RecordFeedsWritten(int) {}
