package model

import "errors"

// エラー種別。URL境界を越えて伝播しない（各URLは独立した障害ドメイン）。
var (
	// ErrNotModified はサーバーが304を返したことを示す。
	ErrNotModified = errors.New("feed not modified")
	// ErrFetchFailed はトランスポートエラーまたは非2xx/304ステータスを示す。
	ErrFetchFailed = errors.New("fetch failed")
	// ErrParseFailed はフィード本文がパースできなかったことを示す。
	ErrParseFailed = errors.New("parse failed")
	// ErrConfigInvalid は設定ファイルの読み込み・検証失敗を示す。起動時のみ致命的。
	ErrConfigInvalid = errors.New("invalid config")
)
