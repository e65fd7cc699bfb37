package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchSuccess()
	c.RecordFetchSuccess()
	c.RecordFetchNotModified()
	c.RecordFetchFailure()
	c.RecordParseFailure()
	c.RecordEntriesKept(5)
	c.RecordFeedsWritten(2)

	tests := []struct {
		counter prometheus.Counter
		want    float64
	}{
		{c.fetchSuccess, 2},
		{c.fetchNotModified, 1},
		{c.fetchFail, 1},
		{c.parseFail, 1},
		{c.entriesKept, 5},
		{c.feedsWritten, 2},
	}
	for i, tt := range tests {
		if got := testutil.ToFloat64(tt.counter); got != tt.want {
			t.Errorf("カウンタ%d = %v, want %v", i, got, tt.want)
		}
	}
}

func TestCollector_HTTPStatusVec(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(304)
	c.RecordHTTPStatus(500)

	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("200")); got != 2 {
		t.Errorf("status_code=200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("304")); got != 1 {
		t.Errorf("status_code=304 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("500")); got != 1 {
		t.Errorf("status_code=500 = %v, want 1", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFetchSuccess()
	c.RecordFetchLatency(150 * time.Millisecond)

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("メトリクスの取得に失敗: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("レスポンスの読み取りに失敗: %v", err)
	}

	text := string(body)
	if !strings.Contains(text, "feedmill_fetch_success_total 1") {
		t.Errorf("fetch_successカウンタが公開されるべき:\n%s", text)
	}
	if !strings.Contains(text, "feedmill_fetch_latency_seconds_count 1") {
		t.Errorf("レイテンシヒストグラムが公開されるべき:\n%s", text)
	}
}

func TestNop_ImplementsInterface(t *testing.T) {
	var c MetricsCollector = Nop{}

	// 何も起きないことだけ確認する
	c.RecordFetchSuccess()
	c.RecordFetchNotModified()
	c.RecordFetchFailure()
	c.RecordHTTPStatus(200)
	c.RecordFetchLatency(time.Second)
	c.RecordParseFailure()
	c.RecordEntriesKept(3)
	c.RecordFeedsWritten(1)
}

func TestCollectorImplementsInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
}
