package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/feedmill/internal/config"
	"github.com/hitoshi/feedmill/internal/metrics"
	"github.com/hitoshi/feedmill/internal/model"
	"github.com/hitoshi/feedmill/internal/repository"
)

func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

type mockSSRFGuard struct{}

func (mockSSRFGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (mockSSRFGuard) ValidateURL(_ string) error { return nil }

type passSanitizer struct{}

func (passSanitizer) Sanitize(rawHTML string) string { return rawHTML }

func newTestPipeline(t *testing.T, cacheRepo repository.CacheRepository) (*Pipeline, string) {
	t.Helper()
	var buf bytes.Buffer
	cfg := config.Load()
	cfg.OutputDir = t.TempDir()
	cfg.FetchTimeout = 10 * time.Second
	cfg.RateLimitPerHost = 100

	p := New(cfg, cacheRepo, mockSSRFGuard{}, passSanitizer{}, metrics.Nop{}, newTestLogger(&buf))
	return p, cfg.OutputDir
}

const atomTwoEntries = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Source</title>
  <id>urn:uuid:feed-1</id>
  <updated>2024-01-02T00:00:00Z</updated>
  <entry>
    <title>x-new</title>
    <id>urn:uuid:e1</id>
    <updated>2024-01-02T00:00:00Z</updated>
    <link rel="alternate" href="https://example.com/e1"/>
  </entry>
  <entry>
    <title>y-old</title>
    <id>urn:uuid:e2</id>
    <updated>2024-01-01T00:00:00Z</updated>
    <link rel="alternate" href="https://example.com/e2"/>
  </entry>
</feed>`

func TestPipeline_FilterAndCacheAdvance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 00:00:00 GMT")
		fmt.Fprint(w, atomTwoEntries)
	}))
	defer server.Close()

	cacheRepo := repository.NewMemoryCacheRepo()
	p, outDir := newTestPipeline(t, cacheRepo)

	groups := []model.FeedGroup{{
		Name: "a", Slug: "a", URLs: []string{server.URL}, Match: []string{"x-new"},
	}}

	err := p.Run(context.Background(), RunOptions{
		Groups: groups, Folder: "run_1", Caching: true, FullDoc: true,
	})
	if err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(outDir, "run_1", "a_feed.xml"))
	if err != nil {
		t.Fatalf("出力ファイルが読めない: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "<title>x-new</title>") {
		t.Error("matchキーワードに一致するエントリが出力されるべき")
	}
	if strings.Contains(text, "<title>y-old</title>") {
		t.Error("matchキーワードに一致しないエントリは除外されるべき")
	}

	// キャッシュ: last_seen_idは最新エントリ、バリデータはレスポンスヘッダー
	entry, _ := cacheRepo.Fetch(context.Background(), model.CacheKey("a", server.URL))
	if entry == nil {
		t.Fatal("キャッシュ行が作成されるべき")
	}
	if entry.LastSeenID != "urn:uuid:e1" {
		t.Errorf("LastSeenID = %q, want urn:uuid:e1", entry.LastSeenID)
	}
	if entry.ETag != `"v1"` {
		t.Errorf("ETag = %q, want %q", entry.ETag, `"v1"`)
	}
	if entry.LastModified != "Tue, 02 Jan 2024 00:00:00 GMT" {
		t.Errorf("LastModified = %q", entry.LastModified)
	}
}

func TestPipeline_RerunWith304LeavesEverythingUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, atomTwoEntries)
	}))
	defer server.Close()

	cacheRepo := repository.NewMemoryCacheRepo()
	p, outDir := newTestPipeline(t, cacheRepo)

	groups := []model.FeedGroup{{Name: "a", Slug: "a", URLs: []string{server.URL}}}
	opts := RunOptions{Groups: groups, Folder: "run_1", Caching: true, FullDoc: true}

	if err := p.Run(context.Background(), opts); err != nil {
		t.Fatalf("1回目のRun: %v", err)
	}
	path := filepath.Join(outDir, "run_1", "a_feed.xml")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("1回目の出力が読めない: %v", err)
	}
	cacheBefore, _ := cacheRepo.Fetch(context.Background(), model.CacheKey("a", server.URL))

	// 2回目: サーバーは304を返す
	if err := p.Run(context.Background(), opts); err != nil {
		t.Fatalf("2回目のRun: %v", err)
	}

	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("304の場合、出力ファイルは変更されないべき")
	}
	cacheAfter, _ := cacheRepo.Fetch(context.Background(), model.CacheKey("a", server.URL))
	if *cacheBefore != *cacheAfter {
		t.Errorf("304の場合、キャッシュは変更されないべき: before=%+v after=%+v", cacheBefore, cacheAfter)
	}
}

func TestPipeline_PartialFailureUsesHealthyURL(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Healthy</title>
  <id>urn:uuid:feed-2</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>E</title>
    <id>urn:uuid:e</id>
    <updated>2024-01-01T00:00:00Z</updated>
  </entry>
</feed>`)
	}))
	defer healthy.Close()

	cacheRepo := repository.NewMemoryCacheRepo()
	p, outDir := newTestPipeline(t, cacheRepo)

	groups := []model.FeedGroup{{
		Name: "a", Slug: "a", URLs: []string{failing.URL, healthy.URL},
	}}

	err := p.Run(context.Background(), RunOptions{
		Groups: groups, Folder: "run_1", Caching: true, FullDoc: true,
	})
	if err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(outDir, "run_1", "a_feed.xml"))
	if err != nil {
		t.Fatalf("出力ファイルが読めない: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "<title>E</title>") {
		t.Error("健全なURLのエントリが出力されるべき")
	}
	// メタデータは成功したURLのもの
	if !strings.Contains(text, "<id>urn:uuid:feed-2</id>") {
		t.Errorf("メタデータは成功したURLのものであるべき:\n%s", text)
	}

	// キャッシュは成功したURLのみ更新される
	if entry, _ := cacheRepo.Fetch(context.Background(), model.CacheKey("a", failing.URL)); entry != nil {
		t.Errorf("失敗したURLのキャッシュは作られないべき: %+v", entry)
	}
	if entry, _ := cacheRepo.Fetch(context.Background(), model.CacheKey("a", healthy.URL)); entry == nil {
		t.Error("成功したURLのキャッシュは更新されるべき")
	}
}

func TestPipeline_EntriesOnlyDefaultMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<rss version="2.0"><channel><title>S</title>
<item><title>A</title><link>https://example.com/a</link><guid>g1</guid></item>
</channel></rss>`)
	}))
	defer server.Close()

	cacheRepo := repository.NewMemoryCacheRepo()
	p, outDir := newTestPipeline(t, cacheRepo)

	groups := []model.FeedGroup{{Name: "a", Slug: "a", URLs: []string{server.URL}}}
	if err := p.Run(context.Background(), RunOptions{
		Groups: groups, Folder: "run_1", Caching: false, FullDoc: false,
	}); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	content, _ := os.ReadFile(filepath.Join(outDir, "run_1", "a_feed.xml"))
	text := string(content)
	if !strings.Contains(text, "<item>") {
		t.Errorf("RSSソースのエントリのみ出力はitemラッパーを使うべき:\n%s", text)
	}
	if strings.Contains(text, "<feed") {
		t.Error("エントリのみモードではfeed要素を出力しない")
	}
}
