// Package app はコマンドライン解析と依存のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedmill/internal/config"
	"github.com/hitoshi/feedmill/internal/database"
	"github.com/hitoshi/feedmill/internal/handler"
	"github.com/hitoshi/feedmill/internal/logger"
	"github.com/hitoshi/feedmill/internal/metrics"
	"github.com/hitoshi/feedmill/internal/model"
	"github.com/hitoshi/feedmill/internal/pipeline"
	"github.com/hitoshi/feedmill/internal/repository"
	"github.com/hitoshi/feedmill/internal/security"
	"github.com/hitoshi/feedmill/internal/worker/schedule"
)

// Run はアプリケーションのメインエントリーポイント。
// フラグを解析し、実行ログを開き、設定を読み込んで
// 単発実行またはスケジュール実行を行う。argsにはos.Args[1:]を渡す。
func Run(args []string) error {
	opts, err := ParseArgs(args)
	if err != nil {
		return err
	}

	now := time.Now()
	cfg := config.Load()

	logFile, err := logger.OpenRunLog(cfg.LogDir, now)
	if err != nil {
		return err
	}
	defer logFile.Close()

	log := logger.Setup(io.MultiWriter(os.Stdout, logFile))
	slog.SetDefault(log)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("シグナルを受信しました。シャットダウンします")
		cancel()
	}()

	return run(ctx, cfg, opts, log, now)
}

func run(ctx context.Context, cfg *config.Config, opts *Options, log *slog.Logger, now time.Time) error {
	// 1. フィードグループの読み込み（デフォルトはレジストリからYAMLを再生成）
	groups, err := loadGroups(ctx, cfg, opts, log)
	if err != nil {
		return err
	}

	if opts.NoRun {
		log.Info("設定ファイルの書き出しのみ行いました",
			slog.Int("group_count", len(groups)),
		)
		return nil
	}

	// 2. キャッシュリポジトリの初期化
	// スケジュールモードはキャッシュ強制有効。前回実行のキャッシュ
	// ファイルごと破棄して新しいベースラインから始める。
	caching := opts.Caching || opts.Schedule

	var cacheRepo repository.CacheRepository = repository.NewMemoryCacheRepo()
	if caching {
		if opts.Schedule {
			if err := database.Remove(cfg.CacheDBPath); err != nil {
				return err
			}
		}
		db, err := database.Open(cfg.CacheDBPath)
		if err != nil {
			return fmt.Errorf("キャッシュデータベースを開けません: %w", err)
		}
		defer db.Close()

		repo := repository.NewSQLiteCacheRepo(db)
		if err := repo.Init(ctx); err != nil {
			return fmt.Errorf("キャッシュスキーマの初期化に失敗: %w", err)
		}
		cacheRepo = repo
	}

	// 3. メトリクスとopsサーバー（スケジュールモードでOPS_ADDR設定時のみ）
	var collector metrics.MetricsCollector = metrics.Nop{}
	if opts.Schedule && cfg.OpsAddr != "" {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollector(registry)

		opsServer := &http.Server{
			Addr:         cfg.OpsAddr,
			Handler:      handler.NewOpsRouter(registry),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("opsサーバーを起動します", slog.String("addr", cfg.OpsAddr))
			if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("opsサーバーが停止しました", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = opsServer.Shutdown(shutdownCtx)
		}()
	}

	// 4. パイプラインの構築
	p := pipeline.New(
		cfg, cacheRepo,
		security.NewSSRFGuard(), security.NewContentSanitizer(),
		collector, log,
	)

	// 5. 実行
	if opts.Schedule {
		scheduler := schedule.NewScheduler(p, cacheRepo.Reset, log)
		return scheduler.Run(ctx, groups, opts.Total, opts.Interval, opts.FullDoc)
	}

	folder := "run_" + logger.Stamp(now)
	return p.Run(ctx, pipeline.RunOptions{
		Groups:  groups,
		Folder:  folder,
		Caching: opts.Caching,
		FullDoc: opts.FullDoc,
	})
}

// loadGroups はフィードグループ定義を取得する。
// -y指定時は既存のYAMLを読み、それ以外はレジストリからYAMLを再生成する。
func loadGroups(ctx context.Context, cfg *config.Config, opts *Options, log *slog.Logger) ([]model.FeedGroup, error) {
	if opts.YAMLPath != "" {
		return config.LoadGroups(opts.YAMLPath, log)
	}

	source := config.NewFileSource(cfg.SourcePath, log)
	return config.Generate(ctx, source, cfg.ConfigPath, log)
}
