// Package parse はフェッチ済みボディのパースと正規化を提供する。
// RSS/Atomの方言を寛容に受け付け、キーワードフィルタと
// last_seen_idによる新着判定を適用したエントリ列を生成する。
package parse

import (
	"bytes"
	"context"
	"encoding/xml"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"

	"github.com/hitoshi/feedmill/internal/metrics"
	"github.com/hitoshi/feedmill/internal/model"
	"github.com/hitoshi/feedmill/internal/repository"
)

// Sanitizer はHTMLサマリのサニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// encodingPattern はXML宣言のencoding擬似属性を抽出する。
var encodingPattern = regexp.MustCompile(`(?i)<\?xml[^>]*\bencoding=["']([^"']+)["']`)

// Parser はフェッチ結果をワーカープールで並列にパースする。
type Parser struct {
	cacheRepo repository.CacheRepository
	sanitizer Sanitizer
	collector metrics.MetricsCollector
	logger    *slog.Logger
	workers   int
	now       func() time.Time
}

// NewParser はParserの新しいインスタンスを生成する。
// workersが0以下の場合はGOMAXPROCSを使用する。
func NewParser(
	cacheRepo repository.CacheRepository,
	sanitizer Sanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	workers int,
) *Parser {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Parser{
		cacheRepo: cacheRepo,
		sanitizer: sanitizer,
		collector: collector,
		logger:    logger,
		workers:   workers,
		now:       time.Now,
	}
}

// ParseAll は全フェッチ結果をパースし、入力と同順のパース結果を返す。
// フェッチ失敗・304のペアはOK=falseの結果になる。
func (p *Parser) ParseAll(ctx context.Context, results []model.FetchResult, caching bool) []model.ParsedFeed {
	parsed := make([]model.ParsedFeed, len(results))

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				parsed[i] = p.parseOne(ctx, &results[i], caching)
			}
		}()
	}

	for i := range results {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return parsed
}

// parseOne は1つのフェッチ結果をパースして正規化する。
func (p *Parser) parseOne(ctx context.Context, res *model.FetchResult, caching bool) model.ParsedFeed {
	if res.State != model.FetchOK {
		return model.ParsedFeed{OK: false}
	}

	feedType := gofeed.DetectFeedType(bytes.NewReader(res.Body))

	var (
		result model.ParsedFeed
		err    error
	)
	switch feedType {
	case gofeed.FeedTypeRSS:
		result, err = p.parseRSS(res)
	case gofeed.FeedTypeAtom:
		result, err = p.parseAtom(res)
	default:
		p.logger.Warn("未対応のフィード形式です",
			slog.String("slug", res.Group.Slug),
			slog.String("url", res.URL),
		)
		p.collector.RecordParseFailure()
		return model.ParsedFeed{OK: false}
	}
	if err != nil {
		p.logger.Error("フィードのパースに失敗しました",
			slog.String("slug", res.Group.Slug),
			slog.String("url", res.URL),
			slog.String("error", err.Error()),
		)
		p.collector.RecordParseFailure()
		return model.ParsedFeed{OK: false}
	}

	result.Metadata.Encoding = detectEncoding(res.Body)
	// 出力フィードのタイトルは集約フィードとしての固定名を使う
	result.Metadata.Title = "Latest Updates"
	if result.Metadata.ID == "" {
		result.Metadata.ID = res.URL
	}
	if result.Metadata.Updated == "" {
		result.Metadata.Updated = p.now().UTC().Format("2006-01-02T15:04:05Z")
	}
	if result.Metadata.Author == "" {
		result.Metadata.Author = "Anonymous"
	}

	// キャッシュ有効時はlast_seen_idを最新エントリに進める。
	// バリデータと違い、ここはエントリが確定した後でなければ書けない。
	if caching && len(result.Entries) > 0 {
		slugURL := model.CacheKey(res.Group.Slug, res.URL)
		newest := result.Entries[0].Identity()
		if newest != "" {
			if err := p.cacheRepo.UpdateLastSeen(ctx, slugURL, newest); err != nil {
				p.logger.Error("last_seen_idの更新に失敗しました",
					slog.String("slug_url", slugURL),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	// フィルタと打ち切りは全エントリの正規化後に適用する
	result.Entries = p.selectEntries(res, result.Entries, caching)
	p.collector.RecordEntriesKept(len(result.Entries))

	p.logger.Info("フィードのパースが完了しました",
		slog.String("slug", res.Group.Slug),
		slog.String("url", res.URL),
		slog.String("feed_type", string(result.FeedType)),
		slog.Int("entries_kept", len(result.Entries)),
	)

	result.OK = true
	return result
}

// selectEntries はlast_seen_idによる打ち切りとキーワードフィルタを適用する。
// ソース順を保持する。
func (p *Parser) selectEntries(res *model.FetchResult, entries []model.Entry, caching bool) []model.Entry {
	lastSeen := ""
	if caching && res.Cache != nil {
		lastSeen = res.Cache.LastSeenID
	}

	kept := make([]model.Entry, 0, len(entries))
	for i := range entries {
		if lastSeen != "" && entries[i].Identity() == lastSeen {
			break
		}
		if matchesGroup(res.Group, &entries[i]) {
			kept = append(kept, entries[i])
		}
	}
	return kept
}

// matchesGroup はグループのmatch/excludeキーワードをエントリに適用する。
// matchが空の場合は全エントリが対象。excludeはmatchより優先される。
func matchesGroup(group *model.FeedGroup, e *model.Entry) bool {
	projection := e.Projection()

	for _, term := range group.Exclude {
		if term == "" {
			continue
		}
		if strings.Contains(projection, strings.ToLower(term)) {
			return false
		}
	}

	if len(group.Match) == 0 {
		return true
	}
	for _, term := range group.Match {
		if term == "" {
			continue
		}
		if strings.Contains(projection, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// parseAtom はAtomフィードを正規化する。
// 汎用パーサーはフィードid、linkのrel/type、カテゴリのscheme/labelを
// 落とすため方言パーサーを直接使う。
func (p *Parser) parseAtom(res *model.FetchResult) (model.ParsedFeed, error) {
	parser := &atom.Parser{}
	feed, err := parser.Parse(bytes.NewReader(res.Body))
	if err != nil {
		return model.ParsedFeed{}, err
	}

	result := model.ParsedFeed{
		FeedType: model.FeedTypeAtom,
		Metadata: model.FeedMetadata{
			ID:      feed.ID,
			Updated: feed.Updated,
		},
	}
	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		result.Metadata.Author = feed.Authors[0].Name
	}

	for _, entry := range feed.Entries {
		if entry == nil {
			continue
		}
		result.Entries = append(result.Entries, p.normalizeAtomEntry(entry))
	}
	return result, nil
}

func (p *Parser) normalizeAtomEntry(entry *atom.Entry) model.Entry {
	e := model.Entry{
		Title:     entry.Title,
		ID:        entry.ID,
		Published: entry.Published,
		Updated:   entry.Updated,
	}

	for _, link := range entry.Links {
		if link == nil {
			continue
		}
		if link.Rel == "enclosure" {
			e.Enclosures = append(e.Enclosures, model.Enclosure{
				Href:   link.Href,
				Type:   link.Type,
				Length: link.Length,
			})
			continue
		}
		e.Links = append(e.Links, model.Link{
			Href: link.Href,
			Rel:  link.Rel,
			Type: link.Type,
		})
		if e.Link == "" && (link.Rel == "" || link.Rel == "alternate") {
			e.Link = link.Href
		}
	}

	for _, cat := range entry.Categories {
		if cat == nil {
			continue
		}
		e.Tags = append(e.Tags, model.Tag{
			Scheme: cat.Scheme,
			Label:  cat.Label,
			Term:   cat.Term,
		})
	}

	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		e.Author = entry.Authors[0].Name
	}

	e.Summary = entry.Summary
	e.SummaryType = "text/plain"
	if e.Summary == "" && entry.Content != nil {
		e.Summary = entry.Content.Value
		e.SummaryType = contentTypeToMIME(entry.Content.Type)
	}
	if e.SummaryType == "text/html" {
		e.Summary = p.sanitizer.Sanitize(e.Summary)
	}

	return e
}

// parseRSS はRSSフィードを正規化する。
// guidのisPermaLink属性とカテゴリのdomain属性を保持するため
// 方言パーサーを直接使う。
func (p *Parser) parseRSS(res *model.FetchResult) (model.ParsedFeed, error) {
	parser := &rss.Parser{}
	feed, err := parser.Parse(bytes.NewReader(res.Body))
	if err != nil {
		return model.ParsedFeed{}, err
	}

	result := model.ParsedFeed{
		FeedType: model.FeedTypeRSS,
		Metadata: model.FeedMetadata{
			Updated: feed.LastBuildDate,
			Author:  feed.ManagingEditor,
		},
	}
	if result.Metadata.Updated == "" {
		result.Metadata.Updated = feed.PubDate
	}

	permaLinks := scanGUIDPermaLinks(res.Body)
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		result.Entries = append(result.Entries, p.normalizeRSSItem(item, permaLinks))
	}
	return result, nil
}

// scanGUIDPermaLinks はguid値からisPermaLink属性値へのマップを作る。
// gofeedのRSSパーサーは属性名を「isPermalink」の完全一致で引くため、
// RSS 2.0の正書法「isPermaLink」で書かれた属性が失われる。
func scanGUIDPermaLinks(body []byte) map[string]string {
	var doc struct {
		GUIDs []struct {
			IsPermaLink string `xml:"isPermaLink,attr"`
			Value       string `xml:",chardata"`
		} `xml:"channel>item>guid"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}

	attrs := make(map[string]string, len(doc.GUIDs))
	for _, g := range doc.GUIDs {
		if g.IsPermaLink != "" {
			attrs[strings.TrimSpace(g.Value)] = g.IsPermaLink
		}
	}
	return attrs
}

func (p *Parser) normalizeRSSItem(item *rss.Item, permaLinks map[string]string) model.Entry {
	e := model.Entry{
		Title:     item.Title,
		Link:      item.Link,
		Published: item.PubDate,
		Author:    item.Author,
	}

	if item.GUID != nil {
		e.ID = item.GUID.Value
		attr := item.GUID.IsPermalink
		if attr == "" {
			attr = permaLinks[strings.TrimSpace(item.GUID.Value)]
		}
		// isPermaLink属性の既定値はtrue
		e.GUIDIsPermaLink = !strings.EqualFold(attr, "false")
	}

	if item.Link != "" {
		e.Links = append(e.Links, model.Link{Href: item.Link})
	}

	for _, cat := range item.Categories {
		if cat == nil {
			continue
		}
		e.Tags = append(e.Tags, model.Tag{
			Scheme: cat.Domain,
			Term:   cat.Value,
		})
	}

	if item.Enclosure != nil {
		e.Enclosures = append(e.Enclosures, model.Enclosure{
			Href:   item.Enclosure.URL,
			Type:   item.Enclosure.Type,
			Length: item.Enclosure.Length,
		})
	}

	// RSSのdescriptionはHTMLとして扱う
	e.Summary = p.sanitizer.Sanitize(item.Description)
	e.SummaryType = "text/html"

	return e
}

// contentTypeToMIME はAtomのcontent type属性をMIME形式に正規化する。
func contentTypeToMIME(contentType string) string {
	switch contentType {
	case "", "text":
		return "text/plain"
	case "html":
		return "text/html"
	case "xhtml":
		return "application/xhtml+xml"
	default:
		return contentType
	}
}

// detectEncoding はXML宣言からencodingを抽出する。宣言がない場合はutf-8。
func detectEncoding(body []byte) string {
	m := encodingPattern.FindSubmatch(body)
	if m == nil {
		return "utf-8"
	}
	return strings.ToLower(string(m[1]))
}
