package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/uniswipe/internal/model"
)

const universityColumns = `id, name, tags, photo_url, city, state, country, created_at, updated_at`

// PostgresUniversityRepo はPostgreSQLを使用した大学カタログリポジトリ。
type PostgresUniversityRepo struct {
	db *sql.DB
}

// NewPostgresUniversityRepo はPostgresUniversityRepoを生成する。
func NewPostgresUniversityRepo(db *sql.DB) *PostgresUniversityRepo {
	return &PostgresUniversityRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUniversity(s rowScanner) (*model.University, error) {
	u := &model.University{}
	var tags pq.StringArray
	if err := s.Scan(&u.ID, &u.Name, &tags, &u.PhotoURL, &u.City, &u.State, &u.Country, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Tags = []string(tags)
	if u.Tags == nil {
		u.Tags = []string{}
	}
	return u, nil
}

// ListAll は全大学を登録順で取得する。
func (r *PostgresUniversityRepo) ListAll(ctx context.Context) ([]*model.University, error) {
	return r.query(ctx,
		`SELECT `+universityColumns+` FROM universities ORDER BY seq ASC`,
	)
}

// FindByID は指定IDの大学を取得する。見つからない場合はnilを返す。
func (r *PostgresUniversityRepo) FindByID(ctx context.Context, id string) (*model.University, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	u, err := scanUniversity(r.db.QueryRowContext(ctx,
		`SELECT `+universityColumns+` FROM universities WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("大学の取得に失敗しました: %w", err)
	}
	return u, nil
}

// FindByIDs は指定IDの大学をまとめて取得する。
// UUID形式でないIDや存在しないIDは結果に含まれない。
func (r *PostgresUniversityRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.University, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	result := make(map[string]*model.University, len(valid))
	if len(valid) == 0 {
		return result, nil
	}

	list, err := r.query(ctx,
		`SELECT `+universityColumns+` FROM universities WHERE id = ANY($1::uuid[])`,
		pq.Array(valid),
	)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		result[u.ID] = u
	}
	return result, nil
}

// Create は大学を作成する。IDが空の場合は新規に採番する。
func (r *PostgresUniversityRepo) Create(ctx context.Context, u *model.University) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Tags == nil {
		u.Tags = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO universities (id, name, tags, photo_url, city, state, country, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Name, pq.Array(u.Tags), u.PhotoURL, u.City, u.State, u.Country, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("大学の作成に失敗しました: %w", err)
	}
	return nil
}

// List は大学を登録順で最大limit件取得する。
func (r *PostgresUniversityRepo) List(ctx context.Context, limit int) ([]*model.University, error) {
	return r.query(ctx,
		`SELECT `+universityColumns+` FROM universities ORDER BY seq ASC LIMIT $1`,
		limit,
	)
}

// ListWithBlankPhoto は写真URLが未設定の大学を登録順で最大limit件取得する。
func (r *PostgresUniversityRepo) ListWithBlankPhoto(ctx context.Context, limit int) ([]*model.University, error) {
	return r.query(ctx,
		`SELECT `+universityColumns+` FROM universities
		 WHERE btrim(photo_url) = ''
		 ORDER BY seq ASC LIMIT $1`,
		limit,
	)
}

// UpdatePhotoURL は大学の写真URLのみを更新する。
func (r *PostgresUniversityRepo) UpdatePhotoURL(ctx context.Context, id, photoURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE universities SET photo_url = $2, updated_at = now() WHERE id = $1`,
		id, photoURL,
	)
	if err != nil {
		return fmt.Errorf("写真URLの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("大学が見つかりません: %s", id)
	}
	return nil
}

func (r *PostgresUniversityRepo) query(ctx context.Context, query string, args ...any) ([]*model.University, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("大学一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	universities := make([]*model.University, 0)
	for rows.Next() {
		u, err := scanUniversity(rows)
		if err != nil {
			return nil, fmt.Errorf("大学行の読み取りに失敗しました: %w", err)
		}
		universities = append(universities, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("大学一覧の走査に失敗しました: %w", err)
	}
	return universities, nil
}

// compile-time interface check
var _ UniversityRepository = (*PostgresUniversityRepo)(nil)
