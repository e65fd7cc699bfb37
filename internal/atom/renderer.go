// Package atom はスラグ集約からのXML出力生成を提供する。
// 完全なAtomドキュメントを生成するDocumentRendererと、
// エントリ要素のみを生成するEntriesRendererの2つの実装を持つ。
package atom

import (
	"log/slog"

	"github.com/hitoshi/feedmill/internal/model"
)

// Renderer はXML出力生成のインターフェース。
type Renderer interface {
	// ProcessAll は集約の全エントリをレンダリングする。
	ProcessAll()

	// MergeExisting は既存の出力ファイルの内容を新しい出力の後ろに取り込む。
	// ProcessAllの後、XMLの前に呼ぶこと。
	MergeExisting(existing []byte)

	// XML は最終的な出力文字列を返す。
	XML() string
}

// NewRenderer は出力モードに応じたRendererを生成する。
// fullDocがtrueの場合は完全なAtomドキュメント、falseの場合は
// エントリ要素のみを生成する。
func NewRenderer(agg *model.GroupAggregate, fullDoc bool, logger *slog.Logger) Renderer {
	if fullDoc {
		return NewDocumentRenderer(agg, logger)
	}
	return NewEntriesRenderer(agg, logger)
}
