package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/uniswipe/internal/comparison"
	"github.com/hitoshi/uniswipe/internal/middleware"
	"github.com/hitoshi/uniswipe/internal/model"
)

// ComparisonService は比較画面に必要なサービスインターフェース。
type ComparisonService interface {
	Load(ctx context.Context, userID, leftID, rightID string) (*comparison.Comparison, error)
	Save(ctx context.Context, userID string, in comparison.SaveInput) (*comparison.SaveResult, error)
}

// CompareHandler は比較画面のHTTPハンドラー。
type CompareHandler struct {
	service ComparisonService
}

// NewCompareHandler はCompareHandlerを生成する。
func NewCompareHandler(service ComparisonService) *CompareHandler {
	return &CompareHandler{service: service}
}

type compareSideResponse struct {
	University universityResponse `json:"university"`
	Rating     ratingResponse     `json:"rating"`
	Note       string             `json:"note"`
}

type compareResponse struct {
	Status string              `json:"status"`
	Left   compareSideResponse `json:"left"`
	Right  compareSideResponse `json:"right"`
}

type compareSaveRequest struct {
	Ratings map[string]comparison.RatingInput `json:"ratings"`
	Notes   map[string]string                 `json:"notes"`
}

type compareSaveResponse struct {
	Status  string                    `json:"status"`
	Ratings map[string]ratingResponse `json:"ratings"`
	Notes   map[string]string         `json:"notes"`
}

// Get は2校の大学情報と評価・メモを返す。
// GET /api/compare?left={id}&right={id}
func (h *CompareHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	q := r.URL.Query()
	cmp, err := h.service.Load(r.Context(), userID, q.Get("left"), q.Get("right"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, compareResponse{
		Status: string(cmp.Status),
		Left:   toCompareSide(cmp.Left),
		Right:  toCompareSide(cmp.Right),
	})
}

// Put は評価とメモを大学ごとに保存する。
// リクエストに含まれない大学の値は変更しない。
// PUT /api/compare
func (h *CompareHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req compareSaveRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if len(req.Ratings) == 0 && len(req.Notes) == 0 {
		handleServiceError(w, model.NewInvalidRequestError("保存する評価またはメモを指定してください"))
		return
	}

	result, err := h.service.Save(r.Context(), userID, comparison.SaveInput{
		Ratings: req.Ratings,
		Notes:   req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ratings := make(map[string]ratingResponse, len(result.Ratings))
	for id, rating := range result.Ratings {
		ratings[id] = toRatingResponse(rating)
	}
	notes := result.Notes
	if notes == nil {
		notes = map[string]string{}
	}
	middleware.WriteJSON(w, http.StatusOK, compareSaveResponse{
		Status:  string(result.Status),
		Ratings: ratings,
		Notes:   notes,
	})
}

func toCompareSide(s comparison.Side) compareSideResponse {
	return compareSideResponse{
		University: toUniversityResponse(s.University),
		Rating:     toRatingResponse(s.Rating),
		Note:       s.Note,
	}
}
