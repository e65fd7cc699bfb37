package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// RunLogHandler は `<timestamp> - <level> - <message>` 形式の行を出力する
// slog.Handler。構造化属性は `key=value` としてメッセージの後ろに連結する。
type RunLogHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
}

// NewRunLogHandler はRunLogHandlerの新しいインスタンスを生成する。
func NewRunLogHandler(w io.Writer, level slog.Leveler) *RunLogHandler {
	return &RunLogHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

// Enabled は指定レベルのログが有効かを返す。
func (h *RunLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle は1レコードを1行として書き出す。
func (h *RunLogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time.UTC()
	fmt.Fprintf(&b, "%s,%03d - %s - %s",
		ts.Format("2006-01-02 15:04:05"),
		ts.Nanosecond()/int(1e6),
		r.Level.String(),
		r.Message,
	)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs は属性を固定した新しいハンドラーを返す。
func (h *RunLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup はグループ名を属性キーの接頭辞として扱う代わりに無視する。
// 実行ログは行指向のためグループ構造を持たない。
func (h *RunLogHandler) WithGroup(_ string) slog.Handler {
	return h
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value.Any())
}
