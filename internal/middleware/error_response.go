package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/nodebird/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// codeにはHTTPステータスコードと同じ値が入る。
type ErrorResponseBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorWriter はミドルウェアが拒否したリクエストにエラーレスポンスを書き込む。
// 画面系のルートではHTMLのエラーページを描画する関数を渡す。
type ErrorWriter func(w http.ResponseWriter, r *http.Request, apiErr *model.APIError)

// write はErrorWriterがnilの場合、統一フォーマットのJSONで書き込む。
func (f ErrorWriter) write(w http.ResponseWriter, r *http.Request, apiErr *model.APIError) {
	if f == nil {
		WriteErrorResponse(w, apiErr)
		return
	}
	f(w, r, apiErr)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはapiErr.Statusを使用する。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:    apiErr.Status,
		Message: apiErr.Message,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}
