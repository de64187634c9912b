// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの実行間隔のデフォルト値。
const DefaultInterval = time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StatePruner はメモリ上に保持した期限切れセッションの記録を削除する。
// auth.Serviceが実装する。
type StatePruner interface {
	PruneExpired(now time.Time) int
}

// SessionCleanupJob はexpires_atを過ぎたセッション行を削除するジョブ。
// 有効期限の判定自体は読み取り側でも行うため、削除はテーブル肥大化の抑止が目的。
// メモリ上の記録もあわせて削除する。
type SessionCleanupJob struct {
	db      Executor
	logger  *slog.Logger
	pruners []StatePruner
	now     func() time.Time
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger, pruners ...StatePruner) *SessionCleanupJob {
	return &SessionCleanupJob{
		db:      db,
		logger:  logger,
		pruners: pruners,
		now:     time.Now,
	}
}

// Run は期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SessionCleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	// DB側の削除に失敗してもメモリ上の記録は削除する
	pruned := 0
	for _, p := range j.pruners {
		pruned += p.PruneExpired(j.now())
	}

	result, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		j.logger.Error("session cleanup failed", slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("pruned_states", pruned),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SessionCleanupJob) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// エラーはRun内でログ済み
	_, _ = j.Run(ctx)
}
