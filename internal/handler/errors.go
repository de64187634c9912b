package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/uniswipe/internal/middleware"
	"github.com/hitoshi/uniswipe/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
// メモ2件（各2000文字）と評価を十分に収められる大きさ。
const maxRequestBodyBytes = 64 << 10

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 原因付きでラップされたAPIErrorも取り出す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Error("service error", slog.String("code", apiErr.Code), slog.String("error", err.Error()))
		}
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthFailed, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeEmailRegistered:
		return http.StatusConflict
	case model.ErrCodeUserNotFound, model.ErrCodeUniversityNotFound:
		return http.StatusNotFound
	case model.ErrCodeCatalogUnavailable, model.ErrCodeSaveFailed:
		return http.StatusServiceUnavailable
	case model.ErrCodeMissingParameters,
		model.ErrCodeInvalidDirection,
		model.ErrCodeInvalidRating,
		model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeCSRFInvalid:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSONBody はリクエストボディをvにデコードする。
// 不正なJSONや上限超過はINVALID_REQUESTを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return model.NewInvalidRequestError("リクエストボディが大きすぎます")
		case errors.Is(err, io.EOF):
			return model.NewInvalidRequestError("リクエストボディが空です")
		default:
			return model.NewInvalidRequestError(fmt.Sprintf("リクエストボディの形式が不正です: %v", err))
		}
	}
	return nil
}

// requestIdentity はセッションミドルウェアが注入したユーザーIDとセッションIDを取り出す。
func requestIdentity(r *http.Request) (userID, sessionID string, ok bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return "", "", false
	}
	sessionID, err = middleware.SessionIDFromContext(r.Context())
	if err != nil {
		return "", "", false
	}
	return userID, sessionID, true
}

func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}
