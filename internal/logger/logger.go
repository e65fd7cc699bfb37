// Package logger は実行ログのセットアップを提供する。
// ログは1実行につき1ファイル（logs/log_<timestamp>.log）に
// `<timestamp> - <level> - <message>` 形式の行として出力される。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Setup は実行ログ形式のslog.Loggerを生成して返す。
func Setup(w io.Writer) *slog.Logger {
	return slog.New(NewRunLogHandler(w, slog.LevelInfo))
}

// SetupDefault は実行ログ形式の出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// Stamp はログファイル名や出力フォルダ名に使うファイルシステム安全な
// ISOタイムスタンプを返す（UTC、コロンをハイフンに置換）。
func Stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05Z")
}

// OpenRunLog はログディレクトリ配下に当該実行用のログファイルを作成して返す。
// クローズは呼び出し側の責務。
func OpenRunLog(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ログディレクトリの作成に失敗: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("log_%s.log", Stamp(now)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ログファイルの作成に失敗: %w", err)
	}
	return f, nil
}
