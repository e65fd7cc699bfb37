package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/feedmill/internal/model"
)

// MemoryCacheRepo はCacheRepositoryのインメモリ実装。
// パイプラインのテストでSQLite実装の代わりに使用する。
type MemoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string]*model.CacheEntry
}

// NewMemoryCacheRepo はMemoryCacheRepoの新しいインスタンスを生成する。
func NewMemoryCacheRepo() *MemoryCacheRepo {
	return &MemoryCacheRepo{entries: make(map[string]*model.CacheEntry)}
}

// Init は何もしない。冪等。
func (r *MemoryCacheRepo) Init(_ context.Context) error {
	return nil
}

// Reset はすべてのキャッシュ行を削除する。
func (r *MemoryCacheRepo) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*model.CacheEntry)
	return nil
}

// Fetch は指定キーのキャッシュ行のコピーを返す。見つからない場合はnil。
func (r *MemoryCacheRepo) Fetch(_ context.Context, slugURL string) (*model.CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[slugURL]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

// UpdateValidators はバリデータ列のみを更新する。行がなければ作成する。
func (r *MemoryCacheRepo) UpdateValidators(_ context.Context, slugURL, etag, lastModified string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.ensureLocked(slugURL)
	entry.ETag = etag
	entry.LastModified = lastModified
	return nil
}

// UpdateLastSeen はlast_seen_id列のみを更新する。行がなければ作成する。
func (r *MemoryCacheRepo) UpdateLastSeen(_ context.Context, slugURL, lastSeenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.ensureLocked(slugURL)
	entry.LastSeenID = lastSeenID
	return nil
}

func (r *MemoryCacheRepo) ensureLocked(slugURL string) *model.CacheEntry {
	entry, ok := r.entries[slugURL]
	if !ok {
		entry = &model.CacheEntry{SlugURL: slugURL}
		r.entries[slugURL] = entry
	}
	return entry
}
