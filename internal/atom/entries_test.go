package atom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hitoshi/feedmill/internal/model"
)

func TestEntriesRenderer_RSSBranch(t *testing.T) {
	var buf bytes.Buffer
	agg := &model.GroupAggregate{
		Slug:     "tech",
		FeedType: model.FeedTypeRSS,
		Metadata: model.FeedMetadata{Updated: "2024-01-01T00:00:00Z"},
		Entries: []model.Entry{{
			Title:           "Article <1>",
			ID:              "guid-1",
			GUIDIsPermaLink: false,
			Published:       "Mon, 06 Sep 2021 16:45:00 +0000",
			Summary:         "Summary & more",
			SummaryType:     "text/html",
			Author:          "Bob",
			Links:           []model.Link{{Href: "https://example.com/1"}},
			Tags:            []model.Tag{{Scheme: "https://example.com/tags", Term: "go"}},
			Enclosures:      []model.Enclosure{{Href: "https://example.com/1.mp3", Type: "audio/mpeg", Length: "1024"}},
		}},
	}

	r := NewEntriesRenderer(agg, newTestLogger(&buf))
	r.ProcessAll()
	out := r.XML()

	for _, want := range []string{
		"<item>",
		"</item>",
		"<title>Article &lt;1&gt;</title>",
		// pubDateはソースの形式のまま
		"<pubDate>Mon, 06 Sep 2021 16:45:00 +0000</pubDate>",
		`<guid isPermaLink="false">guid-1</guid>`,
		"<description>Summary &amp; more</description>",
		`<enclosure url="https://example.com/1.mp3" type="audio/mpeg" length="1024"/>`,
		`<category domain="https://example.com/tags">go</category>`,
		"<link>https://example.com/1</link>",
		"<author><name>Bob</name></author>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("出力に %q が含まれるべき。出力:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<entry>") {
		t.Error("RSSソースのラッパーはitemであるべき")
	}
	if strings.Contains(out, "<updated>") {
		t.Error("RSSブランチはupdatedを出力しない")
	}
}

func TestEntriesRenderer_AtomBranch(t *testing.T) {
	var buf bytes.Buffer
	agg := &model.GroupAggregate{
		Slug:     "tech",
		FeedType: model.FeedTypeAtom,
		Metadata: model.FeedMetadata{Updated: "2024-01-01T00:00:00Z"},
		Entries: []model.Entry{{
			Title:       "Entry 1",
			ID:          "not-a-uri",
			Published:   "Mon, 01 Jan 2024 12:00:00 UT",
			Summary:     "plain body",
			SummaryType: "text/plain",
			Links:       []model.Link{{Href: "https://example.com/e1", Rel: "alternate", Type: "text/html"}},
		}},
	}

	r := NewEntriesRenderer(agg, newTestLogger(&buf))
	r.ProcessAll()
	out := r.XML()

	for _, want := range []string{
		"<entry>",
		"</entry>",
		// Atomブランチは完全な正規化を適用する
		"<published>2024-01-01T12:00:00+00:00</published>",
		"<updated>2024-01-01T00:00:00Z</updated>",
		"<id>urn:tag:not-a-uri</id>",
		`<summary type="text">plain body</summary>`,
		`<link rel="alternate" type="text/html" href="https://example.com/e1"/>`,
		"<author><name>Anonymous</name></author>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("出力に %q が含まれるべき。出力:\n%s", want, out)
		}
	}
}

func TestEntriesRenderer_CategoryWithoutScheme(t *testing.T) {
	var buf bytes.Buffer
	agg := &model.GroupAggregate{
		FeedType: model.FeedTypeRSS,
		Entries:  []model.Entry{{Title: "E", Tags: []model.Tag{{Term: "go"}}}},
	}

	r := NewEntriesRenderer(agg, newTestLogger(&buf))
	r.ProcessAll()

	if !strings.Contains(r.XML(), "<category>go</category>") {
		t.Errorf("scheme欠落時は属性なしのcategoryになるべき。出力:\n%s", r.XML())
	}
}

func TestEntriesRenderer_MergeExistingVerbatim(t *testing.T) {
	var buf bytes.Buffer
	agg := &model.GroupAggregate{
		FeedType: model.FeedTypeRSS,
		Entries:  []model.Entry{{Title: "New"}},
	}

	existing := "<item>\n  <title>Old</title>\n</item>\n"

	r := NewEntriesRenderer(agg, newTestLogger(&buf))
	r.ProcessAll()
	r.MergeExisting([]byte(existing))
	out := r.XML()

	newIdx := strings.Index(out, "<title>New</title>")
	oldIdx := strings.Index(out, "<title>Old</title>")
	if newIdx < 0 || oldIdx < 0 {
		t.Fatalf("新旧両方のエントリが含まれるべき。出力:\n%s", out)
	}
	if oldIdx < newIdx {
		t.Error("既存の行は新しい出力の後ろにそのまま追加されるべき")
	}
}

func TestEntriesRenderer_TrailingNewlines(t *testing.T) {
	var buf bytes.Buffer
	agg := &model.GroupAggregate{
		FeedType: model.FeedTypeRSS,
		Entries:  []model.Entry{{Title: "E"}},
	}

	r := NewEntriesRenderer(agg, newTestLogger(&buf))
	r.ProcessAll()

	if !strings.HasSuffix(r.XML(), "\n\n") {
		t.Error("エントリ列の出力は空行で終わるべき")
	}
}
