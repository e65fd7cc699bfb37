package model

// CacheEntry は条件付きGETキャッシュの1行を表す。
// キーはslugとURLの連結（CacheKey参照）。バリデータ（etag、last_modified）は
// 200レスポンスごとに、last_seen_idはパース成功ごとに更新される。
type CacheEntry struct {
	SlugURL      string
	LastSeenID   string
	ETag         string
	LastModified string
}

// CacheKey はキャッシュテーブルのキーを生成する。
func CacheKey(slug, url string) string {
	return slug + url
}
