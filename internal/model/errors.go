// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// Statusはレスポンスボディのcodeフィールドにもそのまま使われる。
type APIError struct {
	Status  int    // HTTPステータスコード（401, 404, 409, 429 等）
	Message string // クライアント向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

// NewUnauthorizedError はトークン未指定時の認証要求エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Message: "認証が必要です。トークンを指定してください。",
	}
}

// NewUnregisteredDomainError はクライアントシークレットに一致するドメインがない場合のエラーを生成する。
func NewUnregisteredDomainError() *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Message: "登録されていないドメインです。先にドメインを登録してください。",
	}
}

// NewTokenExpiredError は有効期限切れトークンのエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Message: "トークンの有効期限が切れています。",
	}
}

// NewInvalidTokenError は署名不正などの無効トークンエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Message: "無効なトークンです。",
	}
}

// NewHashtagNotFoundError はハッシュタグが存在しない場合のエラーを生成する。
func NewHashtagNotFoundError(title string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("検索結果がありません: %s", title),
	}
}

// NewRateLimitedError はリクエスト数上限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Status:  http.StatusTooManyRequests,
		Message: "リクエスト数の上限を超えました。しばらく待ってから再度お試しください。",
	}
}

// NewDuplicateEmailError はメールアドレスの一意制約違反エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Message: "このメールアドレスは既に使用されています。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("入力値が不正です: %s", reason),
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Message: "サーバーエラーが発生しました。",
	}
}

// NewLoginRequiredError はファーストパーティ画面でログインが必要な場合のエラーを生成する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Message: "ログインが必要です。",
	}
}

// NewCSRFError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Message: "CSRFトークンの検証に失敗しました。",
	}
}
