// Package fetch はフィードURLの並列フェッチを提供する。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// ホスト単位のレートリミットを実行する。
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/feedmill/internal/metrics"
	"github.com/hitoshi/feedmill/internal/model"
	"github.com/hitoshi/feedmill/internal/repository"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Options はFetcherの動作パラメータ。
type Options struct {
	Timeout       time.Duration
	MaxBodySize   int64
	MaxConcurrent int
	RatePerHost   float64
}

// Fetcher は設定済みの全(グループ, URL)ペアを並列にフェッチする。
// 同時実行数はセマフォで制限し、同一ホストへのリクエストは
// トークンバケットでレート制限する。
type Fetcher struct {
	cacheRepo repository.CacheRepository
	ssrfGuard SSRFValidator
	collector metrics.MetricsCollector
	logger    *slog.Logger
	client    *http.Client
	opts      Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	cacheRepo repository.CacheRepository,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Fetcher {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.RatePerHost <= 0 {
		opts.RatePerHost = 1
	}
	return &Fetcher{
		cacheRepo: cacheRepo,
		ssrfGuard: ssrfGuard,
		collector: collector,
		logger:    logger,
		client:    ssrfGuard.NewSafeClient(opts.Timeout),
		opts:      opts,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// FetchAll は全グループの全URLをフェッチし、ペアごとの結果を返す。
// 結果の順序は入力順（グループ順、グループ内はURL順）を保持する。
// cachingがtrueの場合のみ条件付きGETヘッダーを付与し、200レスポンスの
// バリデータを即座にキャッシュへ書き込む。
func (f *Fetcher) FetchAll(ctx context.Context, groups []model.FeedGroup, caching bool) []model.FetchResult {
	type pair struct {
		group *model.FeedGroup
		url   string
	}

	var pairs []pair
	for i := range groups {
		for _, u := range groups[i].URLs {
			pairs = append(pairs, pair{group: &groups[i], url: u})
		}
	}

	results := make([]model.FetchResult, len(pairs))
	sem := make(chan struct{}, f.opts.MaxConcurrent)
	var wg sync.WaitGroup

	for i, p := range pairs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, group *model.FeedGroup, rawURL string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = f.fetchOne(ctx, group, rawURL, caching)
		}(i, p.group, p.url)
	}
	wg.Wait()

	var ok, notModified, failed int
	for i := range results {
		switch results[i].State {
		case model.FetchOK:
			ok++
		case model.FetchNotModified:
			notModified++
		default:
			failed++
		}
	}
	f.logger.Info("全フィードのフェッチが完了しました",
		slog.Int("total", len(results)),
		slog.Int("ok", ok),
		slog.Int("not_modified", notModified),
		slog.Int("failed", failed),
	)

	return results
}

// fetchOne は1つの(グループ, URL)ペアをフェッチする。
func (f *Fetcher) fetchOne(ctx context.Context, group *model.FeedGroup, rawURL string, caching bool) model.FetchResult {
	result := model.FetchResult{
		State: model.FetchFailed,
		Group: group,
		URL:   rawURL,
	}

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("slug", group.Slug),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.logger.Error("リクエスト作成に失敗しました",
			slog.String("slug", group.Slug),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return result
	}

	req.Header.Set("User-Agent", "Feedmill/1.0 RSS Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	slugURL := model.CacheKey(group.Slug, rawURL)

	// 条件付きGET: キャッシュ有効時のみバリデータを送信する
	if caching {
		entry, err := f.cacheRepo.Fetch(ctx, slugURL)
		if err != nil {
			f.logger.Error("キャッシュの取得に失敗しました",
				slog.String("slug_url", slugURL),
				slog.String("error", err.Error()),
			)
		} else if entry != nil {
			result.Cache = entry
			if entry.ETag != "" {
				req.Header.Set("If-None-Match", entry.ETag)
			}
			if entry.LastModified != "" {
				req.Header.Set("If-Modified-Since", entry.LastModified)
			}
		}
	}

	if err := f.limiterFor(req.URL).Wait(ctx); err != nil {
		f.logger.Error("レートリミット待機が中断されました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return result
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("slug", group.Slug),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return result
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	f.collector.RecordHTTPStatus(resp.StatusCode)
	f.collector.RecordFetchLatency(duration)
	result.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusNotModified:
		// 304: コンテンツ未変更 - キャッシュには触れない
		f.logger.Info("フィードは未変更です（304）",
			slog.String("slug", group.Slug),
			slog.String("url", rawURL),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		f.collector.RecordFetchNotModified()
		result.State = model.FetchNotModified
		return result

	case resp.StatusCode == http.StatusOK:
		// 200: 以下で処理を続行

	default:
		f.logger.Error("フィードフェッチに失敗しました",
			slog.String("slug", group.Slug),
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
		)
		f.collector.RecordFetchFailure()
		return result
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodySize))
	if err != nil {
		f.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("slug", group.Slug),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		f.collector.RecordFetchFailure()
		return result
	}

	// バリデータはパース結果を待たずにこの時点で保存する。
	// last_seen_idの更新はパース側がエントリを確定してから行う。
	if caching {
		etag := resp.Header.Get("ETag")
		lastMod := resp.Header.Get("Last-Modified")
		if err := f.cacheRepo.UpdateValidators(ctx, slugURL, etag, lastMod); err != nil {
			f.logger.Error("キャッシュバリデータの保存に失敗しました",
				slog.String("slug_url", slugURL),
				slog.String("error", err.Error()),
			)
		}
	}

	f.logger.Info("フィードフェッチが完了しました",
		slog.String("slug", group.Slug),
		slog.String("url", rawURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("body_bytes", len(body)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	f.collector.RecordFetchSuccess()

	result.State = model.FetchOK
	result.Body = body
	return result
}

// limiterFor はホスト単位のレートリミッターを返す。初回アクセス時に生成する。
func (f *Fetcher) limiterFor(u *url.URL) *rate.Limiter {
	host := u.Hostname()

	f.mu.Lock()
	defer f.mu.Unlock()

	limiter, ok := f.limiters[host]
	if !ok {
		burst := int(f.opts.RatePerHost)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(f.opts.RatePerHost), burst)
		f.limiters[host] = limiter
	}
	return limiter
}
