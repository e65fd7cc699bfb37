// Package pipeline はフェッチ・パース・集約・書き出しの1実行を編成する。
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/feedmill/internal/aggregate"
	"github.com/hitoshi/feedmill/internal/config"
	"github.com/hitoshi/feedmill/internal/metrics"
	"github.com/hitoshi/feedmill/internal/model"
	"github.com/hitoshi/feedmill/internal/repository"
	"github.com/hitoshi/feedmill/internal/worker/fetch"
	"github.com/hitoshi/feedmill/internal/worker/parse"
	"github.com/hitoshi/feedmill/internal/writer"
)

// Pipeline は1回の集約実行を駆動する。
// 各段は独立しており、URL単位の失敗は実行全体を止めない。
type Pipeline struct {
	fetcher *fetch.Fetcher
	parser  *parse.Parser
	writer  *writer.Writer
	logger  *slog.Logger
}

// RunOptions は1実行のパラメータ。
type RunOptions struct {
	// Groups は処理対象のフィードグループ（設定ファイル順）。
	Groups []model.FeedGroup
	// Folder は出力ディレクトリ配下のサブフォルダ名。
	Folder string
	// Caching は条件付きGETとlast_seen_idフィルタを有効にする。
	Caching bool
	// FullDoc は完全なAtomドキュメントを出力する。
	FullDoc bool
}

// New は設定と依存からPipelineを構築する。
func New(
	cfg *config.Config,
	cacheRepo repository.CacheRepository,
	guard fetch.SSRFValidator,
	sanitizer parse.Sanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Pipeline {
	fetcher := fetch.NewFetcher(cacheRepo, guard, collector, logger, fetch.Options{
		Timeout:       cfg.FetchTimeout,
		MaxBodySize:   cfg.FetchMaxSize,
		MaxConcurrent: cfg.FetchMaxConcurrent,
		RatePerHost:   cfg.RateLimitPerHost,
	})
	parser := parse.NewParser(cacheRepo, sanitizer, collector, logger, cfg.ParseWorkers)
	w := writer.NewWriter(cfg.OutputDir, collector, logger)

	return &Pipeline{
		fetcher: fetcher,
		parser:  parser,
		writer:  w,
		logger:  logger,
	}
}

// Run は1回の実行を行う。フェッチ層が全URLを並列に取得し、
// パース層がワーカープールで正規化し、スラグ単位に集約して書き出す。
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) error {
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))
	start := time.Now()

	logger.Info("パイプライン実行を開始します",
		slog.Int("groups", len(opts.Groups)),
		slog.Bool("caching", opts.Caching),
		slog.Bool("full_doc", opts.FullDoc),
		slog.String("folder", opts.Folder),
	)

	results := p.fetcher.FetchAll(ctx, opts.Groups, opts.Caching)
	parsed := p.parser.ParseAll(ctx, results, opts.Caching)
	aggregates := aggregate.Aggregate(opts.Groups, results, parsed)

	if err := p.writer.WriteAll(aggregates, opts.Folder, opts.Caching, opts.FullDoc); err != nil {
		logger.Error("書き出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	logger.Info("パイプライン実行が完了しました",
		slog.Int("slugs", len(aggregates)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
