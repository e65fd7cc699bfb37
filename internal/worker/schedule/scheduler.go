// Package schedule はパイプラインの定期実行を提供する。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/feedmill/internal/logger"
	"github.com/hitoshi/feedmill/internal/model"
	"github.com/hitoshi/feedmill/internal/pipeline"
)

// Runner はパイプライン1実行のインターフェース。
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) error
}

// Scheduler は壁時計のデッドラインまで一定間隔でパイプラインを実行する。
// スケジュール中はキャッシュを強制的に有効化し、開始時にキャッシュを
// リセットして新しいベースラインから始める。
type Scheduler struct {
	runner     Runner
	resetCache func(ctx context.Context) error
	logger     *slog.Logger

	// now/sleepはテストで差し替える
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// resetCacheはスケジュール開始時に1回だけ呼ばれる。
func NewScheduler(runner Runner, resetCache func(ctx context.Context) error, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		resetCache: resetCache,
		logger:     log,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Run はデッドラインに達するまで一定間隔で実行を繰り返す。
// 全実行は同一のschedule_<timestamp>フォルダに書き込む。
// 各実行の後にintervalだけ待ち、その時点でデッドラインを過ぎていれば
// 終了する。
func (s *Scheduler) Run(ctx context.Context, groups []model.FeedGroup, total, interval time.Duration, fullDoc bool) error {
	start := s.now()
	folder := "schedule_" + logger.Stamp(start)
	deadline := start.Add(total)

	s.logger.Info("スケジュール実行を開始します",
		slog.String("folder", folder),
		slog.Float64("total_seconds", total.Seconds()),
		slog.Float64("interval_seconds", interval.Seconds()),
	)

	if s.resetCache != nil {
		if err := s.resetCache(ctx); err != nil {
			return fmt.Errorf("キャッシュのリセットに失敗: %w", err)
		}
	}

	runs := 0
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("スケジュール実行が中断されました",
				slog.Int("runs", runs),
			)
			return err
		}

		// スケジュールモードはキャッシュ強制有効
		if err := s.runner.Run(ctx, pipeline.RunOptions{
			Groups:  groups,
			Folder:  folder,
			Caching: true,
			FullDoc: fullDoc,
		}); err != nil {
			s.logger.Error("スケジュール内の実行が失敗しました",
				slog.Int("run", runs+1),
				slog.String("error", err.Error()),
			)
		}
		runs++

		s.sleep(ctx, interval)

		if !s.now().Before(deadline) {
			break
		}
	}

	s.logger.Info("スケジュール実行が完了しました",
		slog.Int("runs", runs),
		slog.String("folder", folder),
	)
	return nil
}

// sleepContext はコンテキストのキャンセルを尊重して待機する。
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
