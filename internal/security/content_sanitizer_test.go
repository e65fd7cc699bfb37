package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags はフィードサマリで使う許可タグが通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>記事の要約</p>",
			wantContains: []string{"<p>記事の要約</p>"},
		},
		{
			name:         "aタグが許可される",
			input:        `<a href="https://example.com">続きを読む</a>`,
			wantContains: []string{"<a", "https://example.com", "続きを読む"},
		},
		{
			name:         "リストタグが許可される",
			input:        "<ul><li>項目1</li><li>項目2</li></ul>",
			wantContains: []string{"<ul>", "<li>項目1</li>", "<li>項目2</li>", "</ul>"},
		},
		{
			name:         "preタグとcodeタグが許可される",
			input:        "<pre><code>fmt.Println</code></pre>",
			wantContains: []string{"<pre>", "<code>", "fmt.Println"},
		},
		{
			name:         "strongタグとemタグが許可される",
			input:        "<strong>重要</strong><em>強調</em>",
			wantContains: []string{"<strong>重要</strong>", "<em>強調</em>"},
		},
		{
			name:         "imgタグがhttps srcで許可される",
			input:        `<img src="https://example.com/image.png" alt="画像">`,
			wantContains: []string{"<img", "https://example.com/image.png", `alt="画像"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenContent は危険な要素と属性が除去されることを検証する。
func TestSanitize_ForbiddenContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{
			name:       "scriptタグが除去される",
			input:      `<p>要約</p><script>alert('xss')</script>`,
			wantAbsent: []string{"<script", "alert"},
		},
		{
			name:       "iframeタグが除去される",
			input:      `<p>要約</p><iframe src="https://evil.com"></iframe>`,
			wantAbsent: []string{"<iframe", "evil.com"},
		},
		{
			name:       "styleタグが除去される",
			input:      `<style>body{display:none}</style><p>要約</p>`,
			wantAbsent: []string{"<style", "display:none"},
		},
		{
			name:       "onclickが除去される",
			input:      `<p onclick="alert('xss')">要約</p>`,
			wantAbsent: []string{"onclick", "alert"},
		},
		{
			name:       "img onerrorが除去される",
			input:      `<img src="https://example.com/img.png" onerror="alert('xss')">`,
			wantAbsent: []string{"onerror", "alert"},
		},
		{
			name:       "javascript URIが除去される",
			input:      `<a href="javascript:alert('xss')">クリック</a>`,
			wantAbsent: []string{"javascript:"},
		},
		{
			name:       "http imgが拒否される",
			input:      `<img src="http://example.com/image.png" alt="非https">`,
			wantAbsent: []string{"http://example.com/image.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitize_AnchorAttributes はaタグにtarget="_blank"とrel属性が付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com">リンク</a>`)
	for _, want := range []string{`target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("結果に %q が含まれていない: %q", want, got)
		}
	}
}

// TestSanitize_EmptyInput は空文字列の入力を安全に処理できることを検証する。
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}
}

// TestSanitize_PlainText はプレーンテキストがそのまま通過することを検証する。
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "HTMLタグを含まないプレーンテキストの要約。"
	if got := sanitizer.Sanitize(input); got != input {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", input, got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力（冪等性）を検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>要約<strong>太字</strong></p><a href="https://example.com">リンク</a>`
	result1 := sanitizer.Sanitize(input)
	result2 := sanitizer.Sanitize(result1)

	if result1 != result2 {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 二重=%q", result1, result2)
	}
}

// TestContentSanitizerInterface はContentSanitizerServiceインターフェースの適合を検証する。
func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
