package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/uniswipe/internal/middleware"
	"github.com/hitoshi/uniswipe/internal/model"
)

// CatalogLoader はカタログ全件の読み込みに必要なインターフェース。
type CatalogLoader interface {
	Load(ctx context.Context) ([]*model.University, error)
}

// CatalogHandler は大学カタログのHTTPハンドラー。
type CatalogHandler struct {
	loader CatalogLoader
	store  SessionStateStore
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(loader CatalogLoader, store SessionStateStore) *CatalogHandler {
	return &CatalogHandler{loader: loader, store: store}
}

// List はカタログ全件を登録順で返し、呼び出し元セッションのスナップショットを更新する。
// GET /api/universities
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	_, sessionID, ok := requestIdentity(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	universities, err := h.loader.Load(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 取得結果を返す前にクライアントが離脱していれば結果を捨てる
	if r.Context().Err() != nil {
		return
	}

	h.store.SetCatalog(sessionID, universities)
	middleware.WriteJSON(w, http.StatusOK, toUniversityList(universities))
}
