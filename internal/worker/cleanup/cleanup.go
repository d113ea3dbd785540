// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションは検索時に有効期限で除外されるが、行自体は残るためバッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はSessionSweeperの既定の実行間隔。
const DefaultInterval = time.Hour

// ExpiredSessionDeleter は期限切れセッションの削除を抽象化するインターフェース。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionSweeper は有効期限を過ぎたセッションを削除するジョブ。
// 冪等な削除処理で、削除対象がなくてもエラーにならない。
type SessionSweeper struct {
	sessions ExpiredSessionDeleter
	logger   *slog.Logger
	now      func() time.Time
	// Grace は有効期限からさらに保持する猶予期間（デフォルト: 0）。
	Grace time.Duration
}

// NewSessionSweeper は新しいSessionSweeperを生成する。
func NewSessionSweeper(sessions ExpiredSessionDeleter, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は現在時刻から Grace を引いた時刻より前に期限切れになったセッションを削除する。
func (j *SessionSweeper) Run(ctx context.Context) error {
	start := j.now()

	grace := j.Grace
	if grace < 0 {
		grace = 0
	}

	deletedCount, err := j.sessions.DeleteExpired(ctx, start.Add(-grace))
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	j.logger.Info("期限切れセッションを削除しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("grace", grace),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SessionSweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッション削除ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// エラーはRun内でログ済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッション削除ジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
