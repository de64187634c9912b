// Package decision はスワイプによる判定の記録を提供する。
package decision

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/uniswipe/internal/model"
	"github.com/hitoshi/uniswipe/internal/session"
)

// SwipeCreator はスワイプイベントの追記に必要なインターフェース。
type SwipeCreator interface {
	Create(ctx context.Context, event *model.SwipeEvent) error
}

// VisitedAdder はお気に入りへの追加（集合の和）に必要なインターフェース。
type VisitedAdder interface {
	AddVisited(ctx context.Context, userID, universityID string) error
}

// UniversityFinder は大学の検索に必要なインターフェース。
type UniversityFinder interface {
	FindByID(ctx context.Context, id string) (*model.University, error)
}

// SessionStore はセッション状態の参照と更新に必要なインターフェース。
// session.Managerが実装する。
type SessionStore interface {
	Get(sessionID string) *session.State
	MirrorFavorite(sessionID, universityID string)
	Favorites(sessionID string) []string
}

// MetricsRecorder はスワイプに関するメトリクスの記録に必要なインターフェース。
type MetricsRecorder interface {
	RecordSwipe(direction string)
	RecordSwipePersistFailure(kind string)
}

// 永続化失敗の種別
const (
	FailureKindEvent    = "event"
	FailureKindFavorite = "favorite"
	FailureKindLookup   = "lookup"
)

// Outcome はスワイプ1回分の処理結果。
type Outcome struct {
	UniversityID string
	Direction    model.Direction
	Advanced     bool     // 次のカードへ進んだかどうか。検証を通過すれば常にtrue
	Favorited    bool     // お気に入りへの追加がバックエンドに保存されたかどうか
	Favorites    []string // 処理後のセッションのお気に入り（追加順）
}

// Recorder はスワイプを記録する。
// 監査イベントの追記と、右スワイプ時のお気に入り追加を行う。
// 永続化の失敗はログとメトリクスに記録し、呼び出し側には返さない。
type Recorder struct {
	swipes     SwipeCreator
	visited    VisitedAdder
	university UniversityFinder
	store      SessionStore
	metrics    MetricsRecorder
	now        func() time.Time
}

// NewRecorder はRecorderを生成する。metricsはnilでもよい。
func NewRecorder(
	swipes SwipeCreator,
	visited VisitedAdder,
	university UniversityFinder,
	store SessionStore,
	metrics MetricsRecorder,
) *Recorder {
	return &Recorder{
		swipes:     swipes,
		visited:    visited,
		university: university,
		store:      store,
		metrics:    metrics,
		now:        time.Now,
	}
}

// RecordSwipe はユーザーの大学に対する判定を記録する。
// 方向が不正な場合はINVALID_DIRECTION、大学IDが空の場合はMISSING_PARAMETERS、
// 大学が存在しないことが確定した場合はUNIVERSITY_NOT_FOUNDを返す。
// 存在確認がバックエンドの障害で失敗した場合は記録だけして処理を続ける。
// 左スワイプは以前の右スワイプによるお気に入りを取り消さない。
func (r *Recorder) RecordSwipe(ctx context.Context, sessionID, userID, universityID, direction string) (*Outcome, error) {
	dir, ok := model.ParseDirection(direction)
	if !ok {
		return nil, model.NewInvalidDirectionError(direction)
	}
	universityID = strings.TrimSpace(universityID)
	if universityID == "" {
		return nil, model.NewMissingParametersError("university_id")
	}
	if err := r.resolve(ctx, sessionID, userID, universityID); err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RecordSwipe(string(dir))
	}

	r.appendEvent(ctx, userID, universityID, dir)

	favorited := false
	if dir.IsPositive() {
		favorited = r.addFavorite(ctx, sessionID, userID, universityID)
	}

	favorites := r.store.Favorites(sessionID)
	if favorites == nil {
		favorites = []string{}
	}

	return &Outcome{
		UniversityID: universityID,
		Direction:    dir,
		Advanced:     true,
		Favorited:    favorited,
		Favorites:    favorites,
	}, nil
}

// resolve は大学が存在することを確認する。
// セッションにカタログのスナップショットがあればそれを使い、なければバックエンドを参照する。
// バックエンドの参照に失敗した場合はnilを返す。
func (r *Recorder) resolve(ctx context.Context, sessionID, userID, universityID string) error {
	if st := r.store.Get(sessionID); st != nil && st.CatalogLoaded() {
		if _, ok := st.LookupUniversity(universityID); !ok {
			return model.NewUniversityNotFoundError(universityID)
		}
		return nil
	}

	u, err := r.university.FindByID(ctx, universityID)
	if err != nil {
		slog.Warn("failed to look up swiped university",
			slog.String("user_id", userID),
			slog.String("university_id", universityID),
			slog.String("error", err.Error()),
		)
		r.recordFailure(FailureKindLookup)
		return nil
	}
	if u == nil {
		return model.NewUniversityNotFoundError(universityID)
	}
	return nil
}

// appendEvent は監査イベントを追記する。失敗しても処理は継続する。
func (r *Recorder) appendEvent(ctx context.Context, userID, universityID string, dir model.Direction) {
	event := &model.SwipeEvent{
		ID:           uuid.New().String(),
		UserID:       userID,
		UniversityID: universityID,
		Direction:    dir,
		CreatedAt:    r.now(),
	}
	if err := r.swipes.Create(ctx, event); err != nil {
		slog.Error("failed to record swipe event",
			slog.String("user_id", userID),
			slog.String("university_id", universityID),
			slog.String("direction", string(dir)),
			slog.String("error", err.Error()),
		)
		r.recordFailure(FailureKindEvent)
	}
}

// addFavorite はお気に入りに追加し、保存に成功した場合のみセッションへ反映する。
func (r *Recorder) addFavorite(ctx context.Context, sessionID, userID, universityID string) bool {
	if err := r.visited.AddVisited(ctx, userID, universityID); err != nil {
		slog.Error("failed to add favorite",
			slog.String("user_id", userID),
			slog.String("university_id", universityID),
			slog.String("error", err.Error()),
		)
		r.recordFailure(FailureKindFavorite)
		return false
	}
	r.store.MirrorFavorite(sessionID, universityID)
	return true
}

func (r *Recorder) recordFailure(kind string) {
	if r.metrics != nil {
		r.metrics.RecordSwipePersistFailure(kind)
	}
}
