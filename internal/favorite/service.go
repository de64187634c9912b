// Package favorite はお気に入り一覧の取得を提供する。
package favorite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/uniswipe/internal/model"
)

// VisitedLister はお気に入りIDの取得に必要なインターフェース。
type VisitedLister interface {
	ListVisited(ctx context.Context, userID string) ([]string, error)
}

// UniversityFinder は大学のまとめて取得に必要なインターフェース。
type UniversityFinder interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.University, error)
}

// Service はお気に入り一覧のビジネスロジックを提供する。
type Service struct {
	visited      VisitedLister
	universities UniversityFinder
}

// NewService はServiceを生成する。
func NewService(visited VisitedLister, universities UniversityFinder) *Service {
	return &Service{visited: visited, universities: universities}
}

// List はお気に入りの大学を追加順で返す。
// カタログに存在しないIDは黙って読み飛ばす。
func (s *Service) List(ctx context.Context, userID string) ([]*model.University, error) {
	ids, err := s.visited.ListVisited(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visited universities: %w: %w", model.NewCatalogUnavailableError(), err)
	}
	if len(ids) == 0 {
		return []*model.University{}, nil
	}

	found, err := s.universities.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find universities: %w: %w", model.NewCatalogUnavailableError(), err)
	}

	out := make([]*model.University, 0, len(ids))
	for _, id := range ids {
		u, ok := found[id]
		if !ok {
			slog.Debug("skipping dangling favorite",
				slog.String("user_id", userID),
				slog.String("university_id", id),
			)
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
