// Package writer はスラグ集約のXMLファイル出力を提供する。
package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/hitoshi/feedmill/internal/atom"
	"github.com/hitoshi/feedmill/internal/metrics"
	"github.com/hitoshi/feedmill/internal/model"
)

// Writer はスラグごとの出力ファイルを並列に書き出す。
// 出力パスは <outputDir>/<folder>/<slug>_feed.xml。
// スラグ間で共有状態はないため、1スラグ1ゴルーチンで走らせる。
type Writer struct {
	collector metrics.MetricsCollector
	logger    *slog.Logger
	outputDir string
}

// NewWriter はWriterの新しいインスタンスを生成する。
func NewWriter(outputDir string, collector metrics.MetricsCollector, logger *slog.Logger) *Writer {
	return &Writer{
		collector: collector,
		logger:    logger,
		outputDir: outputDir,
	}
}

// WriteAll は全集約を出力する。
// エントリが空のスラグは、キャッシュ有効時は書き込みをスキップし、
// 無効時は空ファイルを書き出す。キャッシュ有効時に既存ファイルが
// あればマージする。
func (w *Writer) WriteAll(aggregates []model.GroupAggregate, folder string, caching, fullDoc bool) error {
	dir := filepath.Join(w.outputDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	var (
		mu     sync.Mutex
		merged *multierror.Error
		wg     sync.WaitGroup
	)
	written := 0

	for i := range aggregates {
		wg.Add(1)
		go func(agg *model.GroupAggregate) {
			defer wg.Done()
			ok, err := w.writeOne(agg, dir, caching, fullDoc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				merged = multierror.Append(merged, err)
				return
			}
			if ok {
				written++
			}
		}(&aggregates[i])
	}
	wg.Wait()

	w.collector.RecordFeedsWritten(written)
	return merged.ErrorOrNil()
}

// writeOne は1スラグの出力ファイルを書き出す。
// ファイルを書いた場合はtrueを返す。
func (w *Writer) writeOne(agg *model.GroupAggregate, dir string, caching, fullDoc bool) (bool, error) {
	path := filepath.Join(dir, agg.Slug+"_feed.xml")

	if len(agg.Entries) == 0 || agg.FeedType == "" {
		if caching {
			w.logger.Info("新着エントリがないため書き込みをスキップします",
				slog.String("slug", agg.Slug),
			)
			return false, nil
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return false, fmt.Errorf("空ファイルの書き込みに失敗 (%s): %w", agg.Slug, err)
		}
		return true, nil
	}

	renderer := atom.NewRenderer(agg, fullDoc, w.logger)
	renderer.ProcessAll()

	if caching {
		existing, err := os.ReadFile(path)
		if err == nil {
			renderer.MergeExisting(existing)
		} else if !os.IsNotExist(err) {
			w.logger.Error("既存ファイルの読み取りに失敗しました",
				slog.String("slug", agg.Slug),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := os.WriteFile(path, []byte(renderer.XML()), 0o644); err != nil {
		return false, fmt.Errorf("出力ファイルの書き込みに失敗 (%s): %w", agg.Slug, err)
	}

	w.logger.Info("出力ファイルを書き出しました",
		slog.String("slug", agg.Slug),
		slog.String("path", path),
		slog.Int("entries", len(agg.Entries)),
	)
	return true, nil
}
