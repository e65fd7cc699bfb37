// Package model はドメインモデルを定義する。
package model

import "strings"

// FeedGroup は集約の宣言単位を表す。
// YAML設定ファイルの1レコードに対応し、slugは出力ファイル名の語幹になる。
type FeedGroup struct {
	Name    string   `yaml:"name" json:"name"`
	Slug    string   `yaml:"slug" json:"slug"`
	URLs    []string `yaml:"urls" json:"urls"`
	Match   []string `yaml:"match,omitempty" json:"match,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Validate は必須フィールド（name、slug、urls）の存在を検証する。
// 欠落フィールドの名前のリストを返す。空のリストは妥当なレコードを意味する。
func (g *FeedGroup) Validate() []string {
	var missing []string
	if g.Name == "" {
		missing = append(missing, "name")
	}
	if g.Slug == "" {
		missing = append(missing, "slug")
	}
	if len(g.URLs) == 0 {
		missing = append(missing, "urls")
	}
	return missing
}

// FeedType はソースフィードの形式を表す。
type FeedType string

const (
	// FeedTypeRSS はRSS形式のフィード。
	FeedTypeRSS FeedType = "rss"
	// FeedTypeAtom はAtom形式のフィード。
	FeedTypeAtom FeedType = "atom"
)

// FeedMetadata はフィードレベルのメタデータを表す。
// 欠落フィールドにはパーサーがデフォルト値を適用する:
// encoding=utf-8、title="Latest Updates"、id=フィードURL、
// updated=現在時刻（UTC、RFC-3339）、author="Anonymous"。
type FeedMetadata struct {
	Encoding string
	Title    string
	ID       string
	Updated  string
	Author   string
}

// Link はエントリ内のリンク要素を表す。
type Link struct {
	Href string
	Rel  string
	Type string
}

// Tag はエントリのカテゴリを表す。
type Tag struct {
	Scheme string
	Label  string
	Term   string
}

// Enclosure はエントリの添付メディアを表す。
type Enclosure struct {
	Href   string
	Type   string
	Length string
}

// Entry は寛容なエントリレコード。すべてのフィールドは任意存在で、
// RSS/Atom両方のソースから正規化される。日時フィールドはソースの
// 文字列表現のまま保持し、整形はライター側で行う。
type Entry struct {
	Title       string
	ID          string
	Link        string
	Links       []Link
	Published   string
	Updated     string
	Summary     string
	SummaryType string // MIME形式（text/plain、text/html、application/xhtml+xml）
	Author      string
	Tags        []Tag
	Enclosures  []Enclosure
	// GUIDIsPermaLink はRSSソースのguid要素のisPermaLink属性。
	GUIDIsPermaLink bool
}

// Identity はlast_seen_id比較に使うエントリの同一性キーを返す。
// idが存在すればid、なければlinkを使う。
func (e *Entry) Identity() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Link
}

// Projection はキーワード照合用にエントリ全体を小文字のテキストに射影する。
// タイトル、id、リンク、本文、著者、タグ、添付、日時のすべてを連結する。
func (e *Entry) Projection() string {
	var b strings.Builder
	fields := []string{
		e.Title, e.ID, e.Link, e.Published, e.Updated,
		e.Summary, e.SummaryType, e.Author,
	}
	for _, f := range fields {
		b.WriteString(f)
		b.WriteByte(' ')
	}
	for _, l := range e.Links {
		b.WriteString(l.Href)
		b.WriteByte(' ')
	}
	for _, t := range e.Tags {
		b.WriteString(t.Scheme)
		b.WriteByte(' ')
		b.WriteString(t.Label)
		b.WriteByte(' ')
		b.WriteString(t.Term)
		b.WriteByte(' ')
	}
	for _, enc := range e.Enclosures {
		b.WriteString(enc.Href)
		b.WriteByte(' ')
	}
	return strings.ToLower(b.String())
}

// ParsedFeed は1つのURLのパース結果を表す。
type ParsedFeed struct {
	FeedType FeedType
	Metadata FeedMetadata
	// Entries はキーワードフィルタを通過した新着エントリ（ソース順、新しい順）。
	Entries []Entry
	// OK はパースが成功しメタデータが有効であることを示す。
	// フェッチ失敗・304・パース失敗の場合はfalse。
	OK bool
}

// GroupAggregate はスラグ単位の集約結果を表す。
// メタデータとフィード形式は最初にパースに成功したURLのもの。
type GroupAggregate struct {
	Slug     string
	FeedType FeedType
	Metadata FeedMetadata
	Entries  []Entry
}
