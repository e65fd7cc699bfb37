package model

// FetchState はフェッチ結果の分類を表す。
type FetchState int

const (
	// FetchOK は200レスポンス（ボディあり）。
	FetchOK FetchState = iota
	// FetchNotModified は304レスポンス（コンテンツ未変更）。
	FetchNotModified
	// FetchFailed はトランスポートエラーまたは非200/304ステータス。
	FetchFailed
)

// FetchResult は1つの(グループ, URL)ペアのフェッチ結果を表す。
// Cacheはフェッチ時点のキャッシュスナップショット（キャッシュ無効時や
// 未登録時はnil）。パーサーはこのスナップショットのlast_seen_idで
// 反復を打ち切る。
type FetchResult struct {
	State      FetchState
	StatusCode int
	Group      *FeedGroup
	URL        string
	Body       []byte
	Cache      *CacheEntry
}
