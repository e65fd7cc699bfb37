package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hitoshi/feedmill/internal/model"
)

// GroupSource はフィードグループ定義の上流レジストリのインターフェース。
// YAML設定ファイルはこのソースから再生成される。レジストリの実体
// （外部サービスか手元のファイルか）はパイプラインからは不可視。
type GroupSource interface {
	// FetchGroups はレジストリからグループ定義を取得する。
	FetchGroups(ctx context.Context) ([]model.FeedGroup, error)
}

// FileSource はJSONファイルを読むGroupSourceの実装。
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource はFileSourceの新しいインスタンスを生成する。
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// FetchGroups はJSONファイルからグループ定義を読み込む。
// リスト値の各要素は前後の空白をトリムする。必須フィールドを欠く
// レコードはエラーログを出して除外する。
func (s *FileSource) FetchGroups(_ context.Context) ([]model.FeedGroup, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: ソースファイルの読み込みに失敗: %s: %v", model.ErrConfigInvalid, s.path, err)
	}

	var groups []model.FeedGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: ソースJSONのパースに失敗: %s: %v", model.ErrConfigInvalid, s.path, err)
	}

	valid := make([]model.FeedGroup, 0, len(groups))
	for _, g := range groups {
		trimAll(g.URLs)
		trimAll(g.Match)
		trimAll(g.Exclude)
		g.Name = strings.TrimSpace(g.Name)
		g.Slug = strings.TrimSpace(g.Slug)

		if missing := g.Validate(); len(missing) > 0 {
			s.logger.Error("必須フィールドを欠くレコードをスキップします",
				slog.String("slug", g.Slug),
				slog.Any("missing", missing),
			)
			continue
		}
		valid = append(valid, g)
	}

	return valid, nil
}

func trimAll(values []string) {
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
}

// Generate はソースからグループ定義を取得し、YAML設定ファイルとして書き出す。
// 取得したグループのリストを返す。
func Generate(ctx context.Context, source GroupSource, path string, logger *slog.Logger) ([]model.FeedGroup, error) {
	groups, err := source.FetchGroups(ctx)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: ソースに有効なグループがありません", model.ErrConfigInvalid)
	}

	if err := WriteGroups(path, groups); err != nil {
		return nil, err
	}

	logger.Info("設定ファイルを生成しました",
		slog.String("path", path),
		slog.Int("group_count", len(groups)),
	)
	return groups, nil
}
