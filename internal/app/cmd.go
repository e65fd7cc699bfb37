package app

import (
	"fmt"
	"strconv"
	"time"
)

// Options はコマンドラインフラグの解析結果を保持する。
type Options struct {
	// Caching は条件付きGETキャッシュとlast_seen_idフィルタを有効にする。
	Caching bool
	// FullDoc は完全なAtomドキュメント（宣言＋feed要素）を出力する。
	FullDoc bool
	// YAMLPath が空でない場合、設定の再生成をスキップしてこのファイルを読む。
	YAMLPath string
	// NoRun は設定ファイルの書き出しのみ行い、パイプラインを実行しない。
	NoRun bool
	// Schedule はスケジュールモードで起動する。
	Schedule bool
	// Total はスケジュール全体の実行時間。
	Total time.Duration
	// Interval はスケジュール内の実行間隔。
	Interval time.Duration
}

// ParseArgs はコマンドライン引数を解析する。
// 不明なフラグ、引数の不足、不正な秒数はエラーを返す。
// argsにはos.Args[1:]を渡す。
func ParseArgs(args []string) (*Options, error) {
	opts := &Options{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--caching":
			opts.Caching = true
		case "-v", "--valid_rss":
			opts.FullDoc = true
		case "-np", "--no_parsing":
			opts.NoRun = true
		case "-y", "--yaml":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s には設定ファイルのパスが必要です", args[i])
			}
			i++
			opts.YAMLPath = args[i]
		case "-s", "--scheduler":
			if i+2 >= len(args) {
				return nil, fmt.Errorf("%s には合計秒数と間隔秒数の2つの引数が必要です", args[i])
			}
			total, err := parseSeconds(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("合計秒数が不正です: %w", err)
			}
			interval, err := parseSeconds(args[i+2])
			if err != nil {
				return nil, fmt.Errorf("間隔秒数が不正です: %w", err)
			}
			i += 2
			opts.Schedule = true
			opts.Total = total
			opts.Interval = interval
		default:
			return nil, fmt.Errorf("不明なフラグです: %s", args[i])
		}
	}

	return opts, nil
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("秒数をパースできません: %q", s)
	}
	if f <= 0 {
		return 0, fmt.Errorf("秒数は正の値が必要です: %q", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}
