// Package database はキャッシュデータベースの接続とマイグレーション管理を提供する。
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open はSQLiteキャッシュデータベースを開く。
// 親ディレクトリが存在しない場合は作成する。WALモードとbusy_timeoutを
// 有効にするため、並列のフェッチ/パースワーカーからの読み書きが
// 互いをブロックしない。
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは単一ライター。書き込みの直列化をドライバ任せにせず
	// コネクション数で保証する。
	db.SetMaxOpenConns(1)

	return db, nil
}

// Remove はキャッシュデータベースのファイルを削除する。
// スケジューラのコールドスタート時のリセットに使用する。
// ファイルが存在しない場合はエラーなしで返る。
func Remove(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache database: %w", err)
		}
	}
	return nil
}
