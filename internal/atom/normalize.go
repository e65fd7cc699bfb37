package atom

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

var (
	// uriPattern はAtom idとして有効なURI形式。
	uriPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://.*$`)
	// urnPattern はAtom idとして有効なURN形式。
	urnPattern = regexp.MustCompile(`^urn:[A-Za-z0-9][A-Za-z0-9-]{0,31}:.*$`)
)

// atomTimeLayouts はRFC-3339としてそのまま受理する形式。
var atomTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// tolerantTimeLayouts はRSSで一般的な日時形式。
// タイムゾーン略称は壁時計の値を保持したままUTCとして扱う。
var tolerantTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// IsAtomTime はRFC-3339のdate-timeとして受理できるかを返す。
func IsAtomTime(value string) bool {
	for _, layout := range atomTimeLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// CoerceTimestamp は日時文字列をRFC-3339に正規化する。
// RFC-3339として有効ならそのまま返す。それ以外は寛容にパースし、
// 壁時計の値を保持したまま+00:00オフセットで再整形する。
// 「UT」トークンはUTCとして解釈される。パース不能な場合は現在時刻で
// 代替して警告を記録する。
func CoerceTimestamp(value string, now func() time.Time, logger *slog.Logger) string {
	if IsAtomTime(value) {
		return value
	}

	normalized := strings.TrimSpace(value)
	// time.Parseは2文字のゾーン略称を受理しないため「UT」はUTCに読み替える
	if strings.HasSuffix(normalized, " UT") {
		normalized += "C"
	}
	for _, layout := range tolerantTimeLayouts {
		t, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		return t.Format("2006-01-02T15:04:05") + "+00:00"
	}

	logger.Warn("日時のパースに失敗したため現在時刻を使用します",
		slog.String("value", value),
	)
	return now().UTC().Format("2006-01-02T15:04:05") + "+00:00"
}

// NormalizeID はAtom idを正規化する。
// 空の場合は固定値、URI/URNとして不正な場合はurn:tag:接頭辞を付ける。
func NormalizeID(id string) string {
	if id == "" {
		return "hardcoded-id:0000"
	}
	if uriPattern.MatchString(id) || urnPattern.MatchString(id) {
		return id
	}
	return "urn:tag:" + id
}

// SummaryTypeAttr はサマリのMIME形式をAtomのtype属性値に変換する。
func SummaryTypeAttr(mime string) string {
	switch mime {
	case "text/plain":
		return "text"
	case "text/html":
		return "html"
	case "application/xhtml+xml":
		return "xhtml"
	default:
		return "text"
	}
}

// xmlEscaper はXMLテキストと属性値のエスケープ。
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
