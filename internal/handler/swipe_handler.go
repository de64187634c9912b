package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/uniswipe/internal/decision"
	"github.com/hitoshi/uniswipe/internal/middleware"
)

// SwipeRecorder はスワイプの記録に必要なインターフェース。
type SwipeRecorder interface {
	RecordSwipe(ctx context.Context, sessionID, userID, universityID, direction string) (*decision.Outcome, error)
}

// SwipeHandler はスワイプのHTTPハンドラー。
type SwipeHandler struct {
	recorder SwipeRecorder
}

// NewSwipeHandler はSwipeHandlerを生成する。
func NewSwipeHandler(recorder SwipeRecorder) *SwipeHandler {
	return &SwipeHandler{recorder: recorder}
}

type swipeRequest struct {
	UniversityID string `json:"university_id"`
	Direction    string `json:"direction"`
}

type swipeResponse struct {
	UniversityID string   `json:"university_id"`
	Direction    string   `json:"direction"`
	Advanced     bool     `json:"advanced"`
	Favorited    bool     `json:"favorited"`
	Favorites    []string `json:"favorites"`
}

// Record はスワイプを記録する。
// 永続化は失敗しても次のカードへ進むため、検証を通過すれば202を返す。
// POST /api/swipes
func (h *SwipeHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requestIdentity(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req swipeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	outcome, err := h.recorder.RecordSwipe(r.Context(), sessionID, userID, req.UniversityID, req.Direction)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	favorites := outcome.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	middleware.WriteJSON(w, http.StatusAccepted, swipeResponse{
		UniversityID: outcome.UniversityID,
		Direction:    string(outcome.Direction),
		Advanced:     outcome.Advanced,
		Favorited:    outcome.Favorited,
		Favorites:    favorites,
	})
}
