package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/uniswipe/internal/model"
	"github.com/hitoshi/uniswipe/internal/session"
)

// SessionStateStore はメモリ上のセッション状態へのアクセスに必要なインターフェース。
// session.Managerが実装する。
type SessionStateStore interface {
	Ensure(ctx context.Context, sessionID, userID string) (*session.State, error)
	SetCatalog(sessionID string, universities []*model.University)
}

// newSessionStateMiddleware はセッション状態を用意するミドルウェアを返す。
// プロセス再起動後など、認証イベントを経ずに届いたリクエストでも状態を復元する。
// サインアウト済みのセッションは401、ユーザーが存在しない場合は404を返し、
// それ以外の復元失敗は状態なしで続行する。
func newSessionStateMiddleware(store SessionStateStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, sessionID, ok := requestIdentity(r)
			if !ok {
				writeUnauthorized(w)
				return
			}

			if _, err := store.Ensure(r.Context(), sessionID, userID); err != nil {
				if errors.Is(err, session.ErrTornDown) {
					writeUnauthorized(w)
					return
				}
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					handleServiceError(w, err)
					return
				}
				slog.Warn("session state unavailable",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}

			next.ServeHTTP(w, r)
		})
	}
}
