package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/uniswipe/internal/middleware"
	"github.com/hitoshi/uniswipe/internal/model"
)

// FavoriteLister はお気に入り一覧の取得に必要なインターフェース。
type FavoriteLister interface {
	List(ctx context.Context, userID string) ([]*model.University, error)
}

// FavoriteHandler はお気に入り一覧のHTTPハンドラー。
type FavoriteHandler struct {
	service FavoriteLister
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteLister) *FavoriteHandler {
	return &FavoriteHandler{service: service}
}

// List はお気に入りの大学を追加順で返す。
// GET /api/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	universities, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toUniversityList(universities))
}
