// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/uniswipe/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// UniversityRepository は大学カタログの永続化インターフェース。
type UniversityRepository interface {
	// ListAll は全大学を登録順で取得する。
	ListAll(ctx context.Context) ([]*model.University, error)

	// FindByID は指定IDの大学を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.University, error)

	// FindByIDs は指定IDの大学をまとめて取得する。
	// 存在しないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.University, error)

	// Create は大学を作成する。IDが空の場合は新規に採番する。
	Create(ctx context.Context, university *model.University) error

	// List は大学を登録順で最大limit件取得する。
	List(ctx context.Context, limit int) ([]*model.University, error)

	// ListWithBlankPhoto は写真URLが未設定の大学を登録順で最大limit件取得する。
	ListWithBlankPhoto(ctx context.Context, limit int) ([]*model.University, error)

	// UpdatePhotoURL は大学の写真URLのみを更新する。
	UpdatePhotoURL(ctx context.Context, id, photoURL string) error
}

// FavoriteRepository はお気に入り（右スワイプした大学の集合）の永続化インターフェース。
type FavoriteRepository interface {
	// AddVisited は大学IDをお気に入りに追加する。
	// 既に含まれている場合は何もしない（集合の和）。
	AddVisited(ctx context.Context, userID, universityID string) error

	// ListVisited はお気に入りの大学IDを追加順で取得する。
	ListVisited(ctx context.Context, userID string) ([]string, error)
}

// SwipeRepository はスワイプイベントの永続化インターフェース。
type SwipeRepository interface {
	// Create はスワイプイベントを追記する。
	Create(ctx context.Context, event *model.SwipeEvent) error
}

// EvaluationRepository は大学ごとの評価とメモの永続化インターフェース。
type EvaluationRepository interface {
	// FindRatings は指定大学の評価を取得する。未評価の大学は結果に含まれない。
	FindRatings(ctx context.Context, userID string, universityIDs []string) (map[string]model.Rating, error)

	// FindNotes は指定大学のメモを取得する。メモのない大学は結果に含まれない。
	FindNotes(ctx context.Context, userID string, universityIDs []string) (map[string]string, error)

	// Merge は評価とメモを大学ごとに同一トランザクションでUPSERTする。
	// 引数に含まれない大学のデータは変更しない。
	Merge(ctx context.Context, userID string, ratings map[string]model.Rating, notes map[string]string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
