// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// セッションストアはGet時にも遅延削除を行うが、参照されないまま放置された
// 期限切れセッションはこのジョブが定期的に回収する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/chatrelay/internal/metrics"
)

// SweepStore は期限切れセッションの掃除に必要なインターフェース。
// session.Storeの部分集合として定義する。
type SweepStore interface {
	// Sweep は期限切れセッションを削除し、削除件数を返す。
	Sweep() int
	// Len は現在保持しているセッション数を返す。
	Len() int
}

// Job は期限切れセッションの定期削除ジョブ。
// 冪等: 削除対象がない場合でも正常に完了する。
type Job struct {
	store    SweepStore
	logger   *slog.Logger
	metrics  metrics.Recorder
	Interval time.Duration // スイープ実行間隔（デフォルト: 10分）
}

// NewJob は新しいJobを生成する。
func NewJob(store SweepStore, logger *slog.Logger, recorder metrics.Recorder, interval time.Duration) *Job {
	return &Job{
		store:    store,
		logger:   logger,
		metrics:  recorder,
		Interval: interval,
	}
}

// Run は期限切れセッションを1回スイープする。
func (j *Job) Run(ctx context.Context) {
	start := time.Now()

	removed := j.store.Sweep()
	remaining := j.store.Len()

	j.metrics.RecordSessionsSwept(removed)
	j.metrics.SetActiveSessions(remaining)

	j.logger.Info("セッションスイープが完了しました",
		slog.Int("removed_count", removed),
		slog.Int("active_sessions", remaining),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// Start はIntervalごとにスイープを実行するループを開始する。
// コンテキストのキャンセルで停止する。バックグラウンドゴルーチンでの実行を想定している。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.logger.Info("session sweeper started",
		slog.String("interval", j.Interval.String()),
	)

	for {
		select {
		case <-ticker.C:
			j.Run(ctx)
		case <-ctx.Done():
			j.logger.Info("session sweeper stopped")
			return
		}
	}
}
