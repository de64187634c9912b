package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/uniswipe/internal/model"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// AddVisited は大学IDをお気に入りに追加する。
// 既に含まれている場合は何もしないため、同時に実行されても重複しない。
func (r *PostgresFavoriteRepo) AddVisited(ctx context.Context, userID, universityID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO visited_universities (user_id, university_id, added_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id, university_id) DO NOTHING`,
		userID, universityID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの追加に失敗しました: %w", err)
	}
	return nil
}

// ListVisited はお気に入りの大学IDを追加順で取得する。
func (r *PostgresFavoriteRepo) ListVisited(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT university_id FROM visited_universities WHERE user_id = $1 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// PostgresSwipeRepo はPostgreSQLを使用したスワイプイベントリポジトリ。
type PostgresSwipeRepo struct {
	db *sql.DB
}

// NewPostgresSwipeRepo はPostgresSwipeRepoを生成する。
func NewPostgresSwipeRepo(db *sql.DB) *PostgresSwipeRepo {
	return &PostgresSwipeRepo{db: db}
}

// Create はスワイプイベントを追記する。IDと作成日時が空の場合は補完する。
func (r *PostgresSwipeRepo) Create(ctx context.Context, event *model.SwipeEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO swipes (id, user_id, university_id, direction, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.UserID, event.UniversityID, string(event.Direction), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("スワイプイベントの記録に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
	_ SwipeRepository    = (*PostgresSwipeRepo)(nil)
)
