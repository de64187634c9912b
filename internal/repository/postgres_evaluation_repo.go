package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/uniswipe/internal/model"
)

// PostgresEvaluationRepo はPostgreSQLを使用した評価・メモリポジトリ。
type PostgresEvaluationRepo struct {
	db *sql.DB
}

// NewPostgresEvaluationRepo はPostgresEvaluationRepoを生成する。
func NewPostgresEvaluationRepo(db *sql.DB) *PostgresEvaluationRepo {
	return &PostgresEvaluationRepo{db: db}
}

// FindRatings は指定大学の評価を取得する。未評価の大学は結果に含まれない。
func (r *PostgresEvaluationRepo) FindRatings(ctx context.Context, userID string, universityIDs []string) (map[string]model.Rating, error) {
	result := make(map[string]model.Rating, len(universityIDs))
	if len(universityIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT university_id, vibe, academics, location, gut_feeling
		 FROM university_ratings
		 WHERE user_id = $1 AND university_id = ANY($2::uuid[])`,
		userID, pq.Array(universityIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("評価の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var rating model.Rating
		if err := rows.Scan(&id, &rating.Vibe, &rating.Academics, &rating.Location, &rating.GutFeeling); err != nil {
			return nil, fmt.Errorf("評価行の読み取りに失敗しました: %w", err)
		}
		result[id] = rating
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("評価の走査に失敗しました: %w", err)
	}
	return result, nil
}

// FindNotes は指定大学のメモを取得する。メモのない大学は結果に含まれない。
func (r *PostgresEvaluationRepo) FindNotes(ctx context.Context, userID string, universityIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(universityIDs))
	if len(universityIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT university_id, body
		 FROM university_notes
		 WHERE user_id = $1 AND university_id = ANY($2::uuid[])`,
		userID, pq.Array(universityIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("メモの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("メモ行の読み取りに失敗しました: %w", err)
		}
		result[id] = body
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メモの走査に失敗しました: %w", err)
	}
	return result, nil
}

// Merge は評価とメモを大学ごとに同一トランザクションでUPSERTする。
// 引数に含まれない大学の評価・メモは変更しない。
func (r *PostgresEvaluationRepo) Merge(ctx context.Context, userID string, ratings map[string]model.Rating, notes map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for universityID, rating := range ratings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO university_ratings (user_id, university_id, vibe, academics, location, gut_feeling, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, now())
			 ON CONFLICT (user_id, university_id) DO UPDATE SET
			   vibe = EXCLUDED.vibe,
			   academics = EXCLUDED.academics,
			   location = EXCLUDED.location,
			   gut_feeling = EXCLUDED.gut_feeling,
			   updated_at = EXCLUDED.updated_at`,
			userID, universityID, rating.Vibe, rating.Academics, rating.Location, rating.GutFeeling,
		)
		if err != nil {
			return fmt.Errorf("評価の保存に失敗しました: %w", err)
		}
	}

	for universityID, body := range notes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO university_notes (user_id, university_id, body, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (user_id, university_id) DO UPDATE SET
			   body = EXCLUDED.body,
			   updated_at = EXCLUDED.updated_at`,
			userID, universityID, body,
		)
		if err != nil {
			return fmt.Errorf("メモの保存に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EvaluationRepository = (*PostgresEvaluationRepo)(nil)
