// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed         = "AUTH_FAILED"
	ErrCodeEmailRegistered    = "EMAIL_ALREADY_REGISTERED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUniversityNotFound = "UNIVERSITY_NOT_FOUND"
	ErrCodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	ErrCodeMissingParameters  = "MISSING_PARAMETERS"
	ErrCodeInvalidDirection   = "INVALID_DIRECTION"
	ErrCodeInvalidRating      = "INVALID_RATING"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeSaveFailed         = "SAVE_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeCSRFInvalid        = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewAuthFailedError は認証失敗エラーを生成する。
// メールアドレスの不在とパスワード不一致を区別しない。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してもう一度ログインしてください。",
	}
}

// NewEmailRegisteredError は登録済みメールアドレスでの新規登録エラーを生成する。
func NewEmailRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailRegistered,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログイン画面からログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUniversityNotFoundError は大学が見つからない場合のエラーを生成する。
func NewUniversityNotFoundError(ids ...string) *APIError {
	return &APIError{
		Code:     ErrCodeUniversityNotFound,
		Message:  fmt.Sprintf("指定された大学が見つかりません: %s", strings.Join(ids, ", ")),
		Category: "catalog",
		Action:   "大学一覧を再読み込みしてから選び直してください。",
	}
}

// NewCatalogUnavailableError はカタログ取得失敗エラーを生成する。
func NewCatalogUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeCatalogUnavailable,
		Message:  "大学一覧を取得できませんでした。",
		Category: "catalog",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMissingParametersError は必須パラメータ不足エラーを生成する。
func NewMissingParametersError(names ...string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameters,
		Message:  fmt.Sprintf("必須パラメータが指定されていません: %s", strings.Join(names, ", ")),
		Category: "validation",
		Action:   "比較する2つの大学を選んでから開いてください。",
	}
}

// NewInvalidDirectionError は無効なスワイプ方向エラーを生成する。
func NewInvalidDirectionError(direction string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDirection,
		Message:  fmt.Sprintf("無効なスワイプ方向です: %s", direction),
		Category: "validation",
		Action:   "方向には left または right を指定してください。",
	}
}

// NewInvalidRatingError は範囲外の評価値エラーを生成する。
func NewInvalidRatingError(universityID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("評価値が範囲外です: %s", universityID),
		Category: "validation",
		Action:   "各評価は1から5の整数で指定してください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewSaveFailedError は評価・メモの保存失敗エラーを生成する。
// 再試行可能。
func NewSaveFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSaveFailed,
		Message:  "評価とメモを保存できませんでした。",
		Category: "system",
		Action:   "もう一度保存してください。",
	}
}

// NewUnauthorizedError は未認証アクセスのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
