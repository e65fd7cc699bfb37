package atom

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/feedmill/internal/model"
)

// EntriesRenderer はラッパー要素なしのエントリ列のみを生成する。
// ソースがRSSの場合は<item>、Atomの場合は<entry>をエントリの
// ラッパータグとして使う。Atomブランチには完全な正規化を適用し、
// RSSブランチはソースの値を概ねそのまま書き出す。
type EntriesRenderer struct {
	agg      *model.GroupAggregate
	logger   *slog.Logger
	now      func() time.Time
	feedAtom bool
	wrapper  string

	lines []string
}

// NewEntriesRenderer はEntriesRendererの新しいインスタンスを生成する。
func NewEntriesRenderer(agg *model.GroupAggregate, logger *slog.Logger) *EntriesRenderer {
	r := &EntriesRenderer{
		agg:     agg,
		logger:  logger,
		now:     time.Now,
		wrapper: "entry",
	}
	if agg.FeedType == model.FeedTypeRSS {
		r.wrapper = "item"
	} else {
		r.feedAtom = true
	}
	return r
}

// ProcessAll は集約の全エントリを行のリストにレンダリングする。
func (r *EntriesRenderer) ProcessAll() {
	for i := range r.agg.Entries {
		r.lines = append(r.lines, fmt.Sprintf("<%s>", r.wrapper))
		r.renderEntry(&r.agg.Entries[i])
		r.lines = append(r.lines, fmt.Sprintf("</%s>", r.wrapper))
	}
}

func (r *EntriesRenderer) renderEntry(e *model.Entry) {
	r.renderTitle(e)
	r.renderPublished(e)
	r.renderUpdated(e)
	r.renderID(e)
	r.renderSummary(e)
	r.renderEnclosures(e)
	r.renderTags(e)
	r.renderLinks(e)
	r.renderAuthor(e)
}

func (r *EntriesRenderer) renderTitle(e *model.Entry) {
	title := e.Title
	if title == "" {
		title = "No title"
	}
	r.lines = append(r.lines, fmt.Sprintf("  <title>%s</title>", escapeXML(title)))
}

func (r *EntriesRenderer) renderPublished(e *model.Entry) {
	if e.Published == "" {
		return
	}
	if r.feedAtom {
		r.lines = append(r.lines, fmt.Sprintf("  <published>%s</published>",
			CoerceTimestamp(e.Published, r.now, r.logger)))
		return
	}
	// RSSブランチはpubDateをソースの形式のまま書き出す
	r.lines = append(r.lines, fmt.Sprintf("  <pubDate>%s</pubDate>", e.Published))
}

func (r *EntriesRenderer) renderUpdated(e *model.Entry) {
	if !r.feedAtom {
		return
	}
	updated := e.Updated
	if updated == "" {
		updated = r.agg.Metadata.Updated
	}
	r.lines = append(r.lines, fmt.Sprintf("  <updated>%s</updated>",
		CoerceTimestamp(updated, r.now, r.logger)))
}

func (r *EntriesRenderer) renderID(e *model.Entry) {
	if r.feedAtom {
		r.lines = append(r.lines, fmt.Sprintf("  <id>%s</id>", escapeXML(NormalizeID(e.ID))))
		return
	}
	if e.ID == "" {
		return
	}
	r.lines = append(r.lines, fmt.Sprintf("  <guid isPermaLink=\"%t\">%s</guid>",
		e.GUIDIsPermaLink, escapeXML(e.ID)))
}

func (r *EntriesRenderer) renderSummary(e *model.Entry) {
	if e.Summary == "" {
		return
	}
	if r.feedAtom {
		summaryType := SummaryTypeAttr(e.SummaryType)
		summary := e.Summary
		if summaryType == "html" {
			summary = escapeXML(summary)
		}
		r.lines = append(r.lines, fmt.Sprintf("  <summary type=\"%s\">%s</summary>",
			summaryType, summary))
		return
	}
	r.lines = append(r.lines, fmt.Sprintf("  <description>%s</description>", escapeXML(e.Summary)))
}

func (r *EntriesRenderer) renderEnclosures(e *model.Entry) {
	for _, enc := range e.Enclosures {
		if r.feedAtom {
			r.lines = append(r.lines, fmt.Sprintf(
				"  <link rel=\"enclosure\" type=\"%s\" length=\"%s\" href=\"%s\"/>",
				escapeXML(enc.Type), escapeXML(enc.Length), escapeXML(enc.Href)))
			continue
		}
		r.lines = append(r.lines, fmt.Sprintf(
			"  <enclosure url=\"%s\" type=\"%s\" length=\"%s\"/>",
			escapeXML(enc.Href), escapeXML(enc.Type), escapeXML(enc.Length)))
	}
}

func (r *EntriesRenderer) renderTags(e *model.Entry) {
	for _, tag := range e.Tags {
		switch {
		case r.feedAtom:
			r.lines = append(r.lines, fmt.Sprintf(
				"  <category scheme=\"%s\" label=\"%s\" term=\"%s\"/>",
				escapeXML(tag.Scheme), escapeXML(tag.Label), escapeXML(tag.Term)))
		case tag.Scheme != "":
			r.lines = append(r.lines, fmt.Sprintf(
				"  <category domain=\"%s\">%s</category>",
				escapeXML(tag.Scheme), escapeXML(tag.Term)))
		default:
			r.lines = append(r.lines, fmt.Sprintf("  <category>%s</category>", escapeXML(tag.Term)))
		}
	}
}

func (r *EntriesRenderer) renderLinks(e *model.Entry) {
	for _, link := range e.Links {
		if link.Rel == "enclosure" {
			continue
		}
		if r.feedAtom {
			rel := link.Rel
			if rel == "" {
				rel = "alternate"
			}
			linkType := link.Type
			if linkType == "" {
				linkType = "text/html"
			}
			r.lines = append(r.lines, fmt.Sprintf(
				"  <link rel=\"%s\" type=\"%s\" href=\"%s\"/>",
				escapeXML(rel), escapeXML(linkType), escapeXML(link.Href)))
			continue
		}
		r.lines = append(r.lines, fmt.Sprintf("  <link>%s</link>", escapeXML(link.Href)))
	}
}

func (r *EntriesRenderer) renderAuthor(e *model.Entry) {
	author := e.Author
	if author == "" {
		author = "Anonymous"
	}
	r.lines = append(r.lines, fmt.Sprintf("  <author><name>%s</name></author>", escapeXML(author)))
}

// MergeExisting は既存ファイルの行をそのまま新しい出力の後ろに追加する。
func (r *EntriesRenderer) MergeExisting(existing []byte) {
	content := strings.TrimRight(string(existing), "\n")
	if content == "" {
		return
	}
	r.logger.Info("既存ファイルの内容を引き継ぎます",
		slog.String("slug", r.agg.Slug),
	)
	r.lines = append(r.lines, strings.Split(content, "\n")...)
}

// XML はエントリ列の出力文字列を返す。
func (r *EntriesRenderer) XML() string {
	return strings.Join(r.lines, "\n") + "\n\n"
}
