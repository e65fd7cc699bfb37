// Package aggregate はURL単位のパース結果をスラグ単位に集約する。
package aggregate

import (
	"github.com/hitoshi/feedmill/internal/model"
)

// Aggregate はパース結果をスラグ単位にまとめる。
// 結果は設定ファイルのグループ順、グループ内のエントリはURL順を保持する。
// メタデータとフィード形式は当該スラグで最初にパースに成功したURLのもの。
// parsedはresultsと同順であること。
func Aggregate(groups []model.FeedGroup, results []model.FetchResult, parsed []model.ParsedFeed) []model.GroupAggregate {
	bySlug := make(map[string]*model.GroupAggregate, len(groups))
	aggregates := make([]model.GroupAggregate, 0, len(groups))

	for i := range groups {
		aggregates = append(aggregates, model.GroupAggregate{Slug: groups[i].Slug})
	}
	for i := range aggregates {
		bySlug[aggregates[i].Slug] = &aggregates[i]
	}

	for i := range parsed {
		if i >= len(results) {
			break
		}
		agg, ok := bySlug[results[i].Group.Slug]
		if !ok {
			continue
		}
		if !parsed[i].OK {
			continue
		}
		if agg.FeedType == "" {
			agg.FeedType = parsed[i].FeedType
			agg.Metadata = parsed[i].Metadata
		}
		agg.Entries = append(agg.Entries, parsed[i].Entries...)
	}

	return aggregates
}
