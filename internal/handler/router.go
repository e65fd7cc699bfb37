// Package handler は運用エンドポイント（ヘルスチェック・メトリクス）のルーティングを提供する。
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedmill/internal/metrics"
)

// NewOpsRouter は運用エンドポイントのルーターを生成する。
// スケジューラーモードで長時間稼働する場合にのみ起動され、
// ヘルスチェックとPrometheusスクレイプに応答する。
func NewOpsRouter(gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", metrics.Handler(gatherer))

	return r
}
