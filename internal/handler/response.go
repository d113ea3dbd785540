// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nodebird/internal/middleware"
	"github.com/hitoshi/nodebird/internal/model"
)

// payloadResponse は成功時の統一レスポンス。
type payloadResponse struct {
	Code    int `json:"code"`
	Payload any `json:"payload"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Img       *string   `json:"img"`
	UserID    int64     `json:"UserId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// guestbookResponse は芳名録エントリのAPIレスポンス。
type guestbookResponse struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Email     *string   `json:"email"`
	Nick      string    `json:"nick"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toPostResponses(posts []*model.Post) []postResponse {
	results := make([]postResponse, len(posts))
	for i, p := range posts {
		results[i] = postResponse{
			ID:        p.ID,
			Content:   p.Content,
			UserID:    p.UserID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
		if p.Img != "" {
			img := p.Img
			results[i].Img = &img
		}
	}
	return results
}

func toGuestbookResponse(g *model.Guestbook) guestbookResponse {
	return guestbookResponse{
		ID:        g.ID,
		Content:   g.Content,
		Email:     g.Email,
		Nick:      g.Nick,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func toGuestbookResponses(entries []*model.Guestbook) []guestbookResponse {
	results := make([]guestbookResponse, len(entries))
	for i, g := range entries {
		results[i] = toGuestbookResponse(g)
	}
	return results
}

// writeJSON は任意の値をJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writePayload は {code:200, payload} 形式で書き込む。
func writePayload(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, payloadResponse{Code: http.StatusOK, Payload: payload})
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// APIError以外はログに記録し、汎用的な500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// pathID はURLパラメータのIDを数値として取り出す。
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("IDは正の整数で指定してください")
	}
	return id, nil
}
