package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/feedmill/internal/database"
	"github.com/hitoshi/feedmill/internal/model"
)

// SQLiteCacheRepo はCacheRepositoryのSQLite実装。
// 書き込みはUPSERT1文で行い、直列化はdatabase.Openの単一コネクション
// 設定とSQLiteのWALモードに委ねる。
type SQLiteCacheRepo struct {
	db *sql.DB
}

// NewSQLiteCacheRepo はSQLiteCacheRepoの新しいインスタンスを生成する。
func NewSQLiteCacheRepo(db *sql.DB) *SQLiteCacheRepo {
	return &SQLiteCacheRepo{db: db}
}

// Init は埋め込みマイグレーションでスキーマを作成する。冪等。
func (r *SQLiteCacheRepo) Init(ctx context.Context) error {
	return database.RunMigrations(r.db)
}

// Reset はすべてのキャッシュ行を削除する。
func (r *SQLiteCacheRepo) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache`); err != nil {
		return fmt.Errorf("failed to reset cache: %w", err)
	}
	return nil
}

// Fetch は指定キーのキャッシュ行を取得する。見つからない場合はnilを返す。
func (r *SQLiteCacheRepo) Fetch(ctx context.Context, slugURL string) (*model.CacheEntry, error) {
	query := `
		SELECT slug_url, COALESCE(last_seen_id, ''), COALESCE(etag, ''), COALESCE(last_modified, '')
		FROM cache
		WHERE slug_url = ?`

	entry := &model.CacheEntry{}
	err := r.db.QueryRowContext(ctx, query, slugURL).Scan(
		&entry.SlugURL,
		&entry.LastSeenID,
		&entry.ETag,
		&entry.LastModified,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cache entry: %w", err)
	}

	return entry, nil
}

// UpdateValidators はバリデータ列のみをUPSERTする。
func (r *SQLiteCacheRepo) UpdateValidators(ctx context.Context, slugURL, etag, lastModified string) error {
	query := `
		INSERT INTO cache (slug_url, etag, last_modified)
		VALUES (?, ?, ?)
		ON CONFLICT (slug_url) DO UPDATE SET
			etag = excluded.etag,
			last_modified = excluded.last_modified`

	if _, err := r.db.ExecContext(ctx, query, slugURL, etag, lastModified); err != nil {
		return fmt.Errorf("failed to update cache validators: %w", err)
	}
	return nil
}

// UpdateLastSeen はlast_seen_id列のみをUPSERTする。
func (r *SQLiteCacheRepo) UpdateLastSeen(ctx context.Context, slugURL, lastSeenID string) error {
	query := `
		INSERT INTO cache (slug_url, last_seen_id)
		VALUES (?, ?)
		ON CONFLICT (slug_url) DO UPDATE SET
			last_seen_id = excluded.last_seen_id`

	if _, err := r.db.ExecContext(ctx, query, slugURL, lastSeenID); err != nil {
		return fmt.Errorf("failed to update last seen id: %w", err)
	}
	return nil
}
