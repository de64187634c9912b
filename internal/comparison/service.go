// Package comparison はお気に入りの大学2校を並べて評価・メモを記録する機能を提供する。
package comparison

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/uniswipe/internal/model"
	"github.com/hitoshi/uniswipe/internal/security"
	"github.com/hitoshi/uniswipe/internal/validation"
)

// UniversityFinder は大学のまとめて取得に必要なインターフェース。
type UniversityFinder interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.University, error)
}

// EvaluationStore は評価とメモの読み書きに必要なインターフェース。
// repository.EvaluationRepositoryと同じ形。
type EvaluationStore interface {
	FindRatings(ctx context.Context, userID string, universityIDs []string) (map[string]model.Rating, error)
	FindNotes(ctx context.Context, userID string, universityIDs []string) (map[string]string, error)
	Merge(ctx context.Context, userID string, ratings map[string]model.Rating, notes map[string]string) error
}

// MetricsRecorder は保存結果の記録に必要なインターフェース。
type MetricsRecorder interface {
	RecordComparisonSave(result string)
}

// Side は比較画面の片側の表示内容。
type Side struct {
	University *model.University
	Rating     model.Rating
	Note       string
}

// Comparison は比較画面の表示内容。
type Comparison struct {
	Left   Side
	Right  Side
	Status Phase
}

// RatingInput は1校分の評価の入力。
type RatingInput struct {
	Vibe       int `json:"vibe" validate:"min=1,max=5"`
	Academics  int `json:"academics" validate:"min=1,max=5"`
	Location   int `json:"location" validate:"min=1,max=5"`
	GutFeeling int `json:"gut_feeling" validate:"min=1,max=5"`
}

// SaveInput は評価・メモ保存の入力。キーは大学ID。
type SaveInput struct {
	Ratings map[string]RatingInput
	Notes   map[string]string
}

// SaveResult は保存の結果。保存した値は検証・整形後のもの。
type SaveResult struct {
	Status  Phase
	Ratings map[string]model.Rating
	Notes   map[string]string
}

// Service は比較画面のビジネスロジックを提供する。
type Service struct {
	universities UniversityFinder
	evaluations  EvaluationStore
	sanitizer    security.NoteSanitizer
	validator    *validation.Validator
	metrics      MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	universities UniversityFinder,
	evaluations EvaluationStore,
	sanitizer security.NoteSanitizer,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		universities: universities,
		evaluations:  evaluations,
		sanitizer:    sanitizer,
		validator:    validation.New(),
		metrics:      metrics,
	}
}

// Load は2校の大学情報と、ユーザーの評価・メモを取得する。
// どちらかのIDが空の場合はMISSING_PARAMETERS、
// どちらかが見つからない場合はUNIVERSITY_NOT_FOUNDを返し、部分的なデータは返さない。
// 未評価の軸は3、メモがない場合は空文字とする。
func (s *Service) Load(ctx context.Context, userID, leftID, rightID string) (*Comparison, error) {
	leftID = strings.TrimSpace(leftID)
	rightID = strings.TrimSpace(rightID)

	var missing []string
	if leftID == "" {
		missing = append(missing, "left")
	}
	if rightID == "" {
		missing = append(missing, "right")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingParametersError(missing...)
	}

	phase := PhaseLoading
	ids := []string{leftID, rightID}

	found, err := s.universities.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find universities: %w: %w", model.NewCatalogUnavailableError(), err)
	}
	var notFound []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			notFound = append(notFound, id)
		}
	}
	if len(notFound) > 0 {
		return nil, model.NewUniversityNotFoundError(notFound...)
	}

	var ratings map[string]model.Rating
	var notes map[string]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ratings, err = s.evaluations.FindRatings(gctx, userID, ids)
		if err != nil {
			return fmt.Errorf("failed to find ratings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		notes, err = s.evaluations.FindNotes(gctx, userID, ids)
		if err != nil {
			return fmt.Errorf("failed to find notes: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.NewCatalogUnavailableError(), err)
	}

	phase, err = Advance(phase, PhaseReady)
	if err != nil {
		return nil, err
	}

	return &Comparison{
		Left:   buildSide(found[leftID], ratings, notes),
		Right:  buildSide(found[rightID], ratings, notes),
		Status: phase,
	}, nil
}

func buildSide(u *model.University, ratings map[string]model.Rating, notes map[string]string) Side {
	rating, ok := ratings[u.ID]
	if !ok {
		rating = model.DefaultRating()
	}
	return Side{
		University: u,
		Rating:     rating.WithDefaults(),
		Note:       notes[u.ID],
	}
}

// Save は評価とメモを大学ごとにマージして保存する。
// リクエストに含まれない大学の評価・メモは変更しない。
// 範囲外の評価はINVALID_RATING、存在しない大学IDはUNIVERSITY_NOT_FOUND、
// 保存失敗はSAVE_FAILED（再試行可能）を返す。
func (s *Service) Save(ctx context.Context, userID string, in SaveInput) (*SaveResult, error) {
	ratings := make(map[string]model.Rating, len(in.Ratings))
	for _, id := range sortedKeys(in.Ratings) {
		if strings.TrimSpace(id) == "" {
			return nil, model.NewInvalidRequestError("大学IDが空の評価は保存できません")
		}
		r := in.Ratings[id]
		if err := s.validator.Struct(r); err != nil {
			return nil, model.NewInvalidRatingError(id)
		}
		ratings[id] = model.Rating{
			Vibe:       r.Vibe,
			Academics:  r.Academics,
			Location:   r.Location,
			GutFeeling: r.GutFeeling,
		}
	}

	notes := make(map[string]string, len(in.Notes))
	for id, raw := range in.Notes {
		if strings.TrimSpace(id) == "" {
			return nil, model.NewInvalidRequestError("大学IDが空のメモは保存できません")
		}
		notes[id] = s.sanitizer.Sanitize(raw)
	}

	phase, err := Advance(PhaseIdle, PhaseSaving)
	if err != nil {
		return nil, err
	}

	notFound, err := s.unknownKeys(ctx, ratings, notes)
	if err != nil {
		slog.Error("failed to resolve comparison keys",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		phase, _ = Advance(phase, PhaseSaveError)
		s.recordSave(phase)
		return nil, fmt.Errorf("failed to resolve universities: %w: %w", model.NewSaveFailedError(), err)
	}
	if len(notFound) > 0 {
		return nil, model.NewUniversityNotFoundError(notFound...)
	}

	if err := s.evaluations.Merge(ctx, userID, ratings, notes); err != nil {
		slog.Error("failed to save comparison",
			slog.String("user_id", userID),
			slog.Int("ratings", len(ratings)),
			slog.Int("notes", len(notes)),
			slog.String("error", err.Error()),
		)
		phase, _ = Advance(phase, PhaseSaveError)
		s.recordSave(phase)
		return nil, fmt.Errorf("failed to merge evaluations: %w: %w", model.NewSaveFailedError(), err)
	}

	phase, _ = Advance(phase, PhaseSaved)
	s.recordSave(phase)

	return &SaveResult{
		Status:  phase,
		Ratings: ratings,
		Notes:   notes,
	}, nil
}

// unknownKeys は評価・メモのキーのうち既存の大学IDでないものを返す。
// UUIDとして不正なIDも見つからないものとして扱う。
func (s *Service) unknownKeys(ctx context.Context, ratings map[string]model.Rating, notes map[string]string) ([]string, error) {
	set := make(map[string]struct{}, len(ratings)+len(notes))
	for id := range ratings {
		set[id] = struct{}{}
	}
	for id := range notes {
		set[id] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	found, err := s.universities.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var notFound []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			notFound = append(notFound, id)
		}
	}
	return notFound, nil
}

func (s *Service) recordSave(phase Phase) {
	if s.metrics != nil {
		s.metrics.RecordComparisonSave(string(phase))
	}
}

func sortedKeys(m map[string]RatingInput) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
