package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/feedmill/internal/model"
)

// LoadGroups はYAML設定ファイルからフィードグループのリストを読み込む。
// ファイルの欠落・読み取り不可・YAML不正は致命的エラーとして返す。
// 必須フィールド（name、slug、urls）を欠くレコードはエラーログを出して
// 除外し、残りのグループで処理を継続する。
func LoadGroups(path string, logger *slog.Logger) ([]model.FeedGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 設定ファイルの読み込みに失敗: %s: %v", model.ErrConfigInvalid, path, err)
	}

	var groups []model.FeedGroup
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: YAMLのパースに失敗: %s: %v", model.ErrConfigInvalid, path, err)
	}

	valid := make([]model.FeedGroup, 0, len(groups))
	for _, g := range groups {
		if missing := g.Validate(); len(missing) > 0 {
			logger.Error("必須フィールドを欠くグループをスキップします",
				slog.String("slug", g.Slug),
				slog.String("name", g.Name),
				slog.Any("missing", missing),
			)
			continue
		}
		valid = append(valid, g)
	}

	return valid, nil
}

// WriteGroups はフィードグループのリストをYAMLファイルとして書き出す。
// 親ディレクトリが存在しない場合は作成する。
func WriteGroups(path string, groups []model.FeedGroup) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("設定ディレクトリの作成に失敗: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの作成に失敗: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(4)
	if err := enc.Encode(groups); err != nil {
		return fmt.Errorf("YAMLのエンコードに失敗: %w", err)
	}
	return enc.Close()
}
