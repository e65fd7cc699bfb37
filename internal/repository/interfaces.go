// Package repository はキャッシュデータの永続化インターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/feedmill/internal/model"
)

// CacheRepository は条件付きGETキャッシュの永続化インターフェース。
// 並列のフェッチ/パースワーカーから安全に呼び出せること。
// パイプラインにはハンドルとして渡し、テストではインメモリ実装に
// 差し替えられるようグローバルにはしない。
type CacheRepository interface {
	// Fetch は指定キーのキャッシュ行を取得する。見つからない場合はnilを返す。
	Fetch(ctx context.Context, slugURL string) (*model.CacheEntry, error)

	// UpdateValidators はバリデータ列（etag、last_modified）のみをUPSERTする。
	// 行が存在しない場合は作成する。last_seen_idには触れない。
	UpdateValidators(ctx context.Context, slugURL, etag, lastModified string) error

	// UpdateLastSeen はlast_seen_id列のみをUPSERTする。
	// 行が存在しない場合は作成する。バリデータ列には触れない。
	UpdateLastSeen(ctx context.Context, slugURL, lastSeenID string) error

	// Init はスキーマを作成する。冪等。
	Init(ctx context.Context) error

	// Reset はすべてのキャッシュ行を削除する。スケジュール実行の
	// 開始時に新しいベースラインを作るために使用する。
	Reset(ctx context.Context) error
}
