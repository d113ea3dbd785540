package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nodebird/internal/middleware"
	"github.com/hitoshi/nodebird/internal/model"
)

// TokenIssuerInterface はクライアントシークレットをトークンに交換する。
type TokenIssuerInterface interface {
	Issue(ctx context.Context, clientSecret string, ttl time.Duration) (string, error)
}

// PostServiceInterface は投稿APIが必要とする読み取りサービス。
type PostServiceInterface interface {
	ListMine(ctx context.Context, userID int64) ([]*model.Post, error)
	ListByHashtag(ctx context.Context, title string) ([]*model.Post, error)
}

// TokenIssuedRecorder はトークン発行を記録する。
type TokenIssuedRecorder interface {
	RecordTokenIssued(version string)
}

// APIHandlerConfig はバージョンごとのAPI設定。
type APIHandlerConfig struct {
	Version  string        // "v1" または "v2"
	TokenTTL time.Duration // 発行するトークンの有効期間
}

// APIHandler はトークン発行と投稿参照のHTTPハンドラー。
// v1とv2でトークンの有効期間だけが異なる。
type APIHandler struct {
	issuer   TokenIssuerInterface
	posts    PostServiceInterface
	recorder TokenIssuedRecorder
	config   APIHandlerConfig
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(issuer TokenIssuerInterface, posts PostServiceInterface, recorder TokenIssuedRecorder, config APIHandlerConfig) *APIHandler {
	return &APIHandler{
		issuer:   issuer,
		posts:    posts,
		recorder: recorder,
		config:   config,
	}
}

// tokenRequest はトークン発行リクエストのボディ。
type tokenRequest struct {
	ClientSecret string `json:"clientSecret"`
}

// tokenResponse はトークン発行のレスポンス。
type tokenResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// CreateToken はクライアントシークレットを検証してトークンを発行する。
// POST /v{1,2}/token
func (h *APIHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	secret, err := readClientSecret(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	signed, err := h.issuer.Issue(r.Context(), secret, h.config.TokenTTL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordTokenIssued(h.config.Version)
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Code:    http.StatusOK,
		Message: "トークンが発行されました。",
		Token:   signed,
	})
}

// Test は検証済みトークンのクレームをそのまま返す。
// GET /v{1,2}/test
func (h *APIHandler) Test(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// MyPosts はトークンのユーザー自身の投稿一覧を返す。
// GET /v{1,2}/posts/my
func (h *APIHandler) MyPosts(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	posts, err := h.posts.ListMine(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writePayload(w, toPostResponses(posts))
}

// PostsByHashtag はハッシュタグに紐づく投稿一覧を返す。
// GET /v{1,2}/posts/hashtag/{title}
func (h *APIHandler) PostsByHashtag(w http.ResponseWriter, r *http.Request) {
	title, err := hashtagParam(r)
	if err != nil {
		handleServiceError(w, model.NewValidationError("ハッシュタグの形式が正しくありません"))
		return
	}
	if title == "" {
		handleServiceError(w, model.NewHashtagNotFoundError(title))
		return
	}

	posts, err := h.posts.ListByHashtag(r.Context(), title)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writePayload(w, toPostResponses(posts))
}

// hashtagParam はパスのハッシュタグ名を取り出す。
// RawPathが設定されているとchiはエスケープされたままの値を返すため、ここでデコードする。
func hashtagParam(r *http.Request) (string, error) {
	title := chi.URLParam(r, "title")
	if r.URL.RawPath == "" {
		return title, nil
	}
	return url.PathUnescape(title)
}

// readClientSecret はJSONまたはフォームのボディからclientSecretを取り出す。
// ボディが空の場合は空文字列を返し、未登録として扱わせる。
func readClientSecret(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		return r.PostFormValue("clientSecret"), nil
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", model.NewValidationError("リクエストボディのJSONが不正です")
	}
	return req.ClientSecret, nil
}
