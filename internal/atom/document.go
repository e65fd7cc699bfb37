package atom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/feedmill/internal/model"
)

// DocumentRenderer は完全なAtomドキュメントを生成する。
// 全エントリにid検証とRFC-3339正規化を適用する。
type DocumentRenderer struct {
	agg    *model.GroupAggregate
	logger *slog.Logger
	now    func() time.Time

	// blocks はレンダリング済みのentry要素ブロック。
	blocks []string
}

// NewDocumentRenderer はDocumentRendererの新しいインスタンスを生成する。
func NewDocumentRenderer(agg *model.GroupAggregate, logger *slog.Logger) *DocumentRenderer {
	return &DocumentRenderer{
		agg:    agg,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessAll は集約の全エントリをentryブロックにレンダリングする。
func (r *DocumentRenderer) ProcessAll() {
	for i := range r.agg.Entries {
		r.blocks = append(r.blocks, r.renderEntry(&r.agg.Entries[i]))
	}
}

// renderEntry は1エントリを固定の要素順でレンダリングする。
// 順序: title, published, updated, id, summary, enclosures, tags, links, author。
func (r *DocumentRenderer) renderEntry(e *model.Entry) string {
	var b strings.Builder
	b.WriteString("  <entry>\n")

	title := e.Title
	if title == "" {
		title = "No title"
	}
	fmt.Fprintf(&b, "    <title>%s</title>\n", escapeXML(title))

	published := e.Published
	if published == "" {
		published = r.agg.Metadata.Updated
	}
	fmt.Fprintf(&b, "    <published>%s</published>\n",
		CoerceTimestamp(published, r.now, r.logger))

	updated := e.Updated
	if updated == "" {
		updated = r.agg.Metadata.Updated
	}
	fmt.Fprintf(&b, "    <updated>%s</updated>\n",
		CoerceTimestamp(updated, r.now, r.logger))

	fmt.Fprintf(&b, "    <id>%s</id>\n", escapeXML(NormalizeID(e.ID)))

	if e.Summary != "" {
		fmt.Fprintf(&b, "    <summary type=\"%s\">%s</summary>\n",
			SummaryTypeAttr(e.SummaryType), escapeXML(e.Summary))
	}

	for _, enc := range e.Enclosures {
		encType := enc.Type
		if encType == "" {
			encType = "text/html"
		}
		fmt.Fprintf(&b, "    <link rel=\"enclosure\" type=\"%s\" length=\"%s\" href=\"%s\"/>\n",
			escapeXML(encType), escapeXML(enc.Length), escapeXML(enc.Href))
	}

	for _, tag := range e.Tags {
		fmt.Fprintf(&b, "    <category scheme=\"%s\" label=\"%s\" term=\"%s\"/>\n",
			escapeXML(tag.Scheme), escapeXML(tag.Label), escapeXML(tag.Term))
	}

	for _, link := range e.Links {
		rel := link.Rel
		if rel == "" {
			rel = "alternate"
		}
		linkType := link.Type
		if linkType == "" {
			linkType = "text/html"
		}
		href := link.Href
		if href == "" {
			href = r.agg.Metadata.ID
		}
		fmt.Fprintf(&b, "    <link rel=\"%s\" type=\"%s\" href=\"%s\"/>\n",
			escapeXML(rel), escapeXML(linkType), escapeXML(href))
	}

	author := e.Author
	if author == "" {
		author = "Anonymous"
	}
	fmt.Fprintf(&b, "    <author>\n      <name>%s</name>\n    </author>\n", escapeXML(author))

	b.WriteString("  </entry>")
	return b.String()
}

// existingDocument は既存出力ファイルのentry要素を生のまま取り出す。
type existingDocument struct {
	XMLName xml.Name        `xml:"feed"`
	Entries []existingEntry `xml:"entry"`
}

type existingEntry struct {
	Inner string `xml:",innerxml"`
}

// MergeExisting は既存ドキュメントのentry要素を新しい出力の後ろに追加する。
// 既存ファイルがパース不能な場合は警告を記録して上書きする。
func (r *DocumentRenderer) MergeExisting(existing []byte) {
	var doc existingDocument
	if err := xml.Unmarshal(bytes.TrimSpace(existing), &doc); err != nil {
		r.logger.Warn("既存ファイルをパースできないため上書きします",
			slog.String("slug", r.agg.Slug),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("既存ファイルとマージします",
		slog.String("slug", r.agg.Slug),
		slog.Int("existing_entries", len(doc.Entries)),
	)

	for _, entry := range doc.Entries {
		r.blocks = append(r.blocks, "  <entry>"+entry.Inner+"</entry>")
	}
}

// XML は完全なAtomドキュメントを返す。
func (r *DocumentRenderer) XML() string {
	encoding := r.agg.Metadata.Encoding
	if encoding == "" {
		encoding = "utf-8"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<?xml version=\"1.0\" encoding=\"%s\"?>\n", encoding)
	b.WriteString("<feed xmlns=\"http://www.w3.org/2005/Atom\">\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", escapeXML(r.agg.Metadata.Title))
	fmt.Fprintf(&b, "  <id>%s</id>\n", escapeXML(r.agg.Metadata.ID))
	fmt.Fprintf(&b, "  <updated>%s</updated>\n", escapeXML(r.agg.Metadata.Updated))
	for _, block := range r.blocks {
		b.WriteString(block)
		b.WriteByte('\n')
	}
	b.WriteString("</feed>\n")
	return b.String()
}
