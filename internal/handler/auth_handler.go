package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/nodebird/internal/auth"
	"github.com/hitoshi/nodebird/internal/middleware"
	"github.com/hitoshi/nodebird/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Join(ctx context.Context, email, nick, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetUser(ctx context.Context, userID int64) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はローカル認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	renderer *PageRenderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, renderer *PageRenderer) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		renderer: renderer,
	}
}

// Join はフォーム入力からユーザーを登録し、トップページへ戻す。
// 入力不正や重複はトップページのメッセージとして表示する。
// POST /auth/join
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Join(r.Context(),
		r.PostFormValue("email"),
		r.PostFormValue("nick"),
		r.PostFormValue("password"),
	)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			h.redirectHome(w, r, "joinError", apiErr.Message)
			return
		}
		h.renderer.renderServiceError(w, err)
		return
	}

	h.redirectHome(w, r, "", "")
}

// Login はメールアドレスとパスワードを検証し、セッションCookieを設定する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.redirectHome(w, r, "loginError", "メールアドレスまたはパスワードが一致しません。")
		return
	}
	if err != nil {
		h.renderer.renderServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.redirectHome(w, r, "", "")
}

// Logout はセッションを破棄する。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.redirectHome(w, r, "", "")
}

// redirectHome はトップページへリダイレクトする。
// keyが空でなければメッセージをクエリに載せる。
func (h *AuthHandler) redirectHome(w http.ResponseWriter, r *http.Request, key, message string) {
	target := strings.TrimRight(h.config.BaseURL, "/") + "/"
	if key != "" {
		target += "?" + url.Values{key: []string{message}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
