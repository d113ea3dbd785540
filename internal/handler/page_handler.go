package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/nodebird/internal/auth"
	"github.com/hitoshi/nodebird/internal/middleware"
	"github.com/hitoshi/nodebird/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// DomainServiceInterface はドメイン登録画面が必要とするサービスインターフェース。
type DomainServiceInterface interface {
	Register(ctx context.Context, userID int64, host string, domainType model.DomainType) (*model.Domain, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Domain, error)
}

// PageRenderer は埋め込みテンプレートからHTMLページを描画する。
type PageRenderer struct {
	templates  *template.Template
	production bool
}

// NewPageRenderer はPageRendererを生成する。
// productionがtrueの場合、エラーページに詳細を表示しない。
func NewPageRenderer(production bool) *PageRenderer {
	return &PageRenderer{
		templates:  template.Must(template.ParseFS(templateFS, "templates/*.html")),
		production: production,
	}
}

// errorPageData はエラーページのテンプレートデータ。
type errorPageData struct {
	Status  int
	Message string
	Detail  string
}

// render はテンプレートをバッファに描画してから書き込む。
// 描画に失敗した場合は途中までのHTMLを送らない。
func (p *PageRenderer) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError はエラーページを描画する。
func (p *PageRenderer) renderError(w http.ResponseWriter, status int, message string, cause error) {
	data := errorPageData{Status: status, Message: message}
	if cause != nil && !p.production {
		data.Detail = cause.Error()
	}
	p.render(w, status, "error.html", data)
}

// writeAPIError はミドルウェアが拒否したリクエストにエラーページを描画する。
func (p *PageRenderer) writeAPIError(w http.ResponseWriter, _ *http.Request, apiErr *model.APIError) {
	p.renderError(w, apiErr.Status, apiErr.Message, nil)
}

// renderServiceError はサービス層のエラーをエラーページとして描画する。
func (p *PageRenderer) renderServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		p.renderError(w, apiErr.Status, apiErr.Message, nil)
		return
	}

	slog.Error("page handler failed", slog.String("error", err.Error()))
	p.renderError(w, http.StatusInternalServerError, model.NewInternalError().Message, err)
}

// PageHandler はファーストパーティ画面のHTTPハンドラー。
type PageHandler struct {
	auth     AuthServiceInterface
	domains  DomainServiceInterface
	renderer *PageRenderer
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(authService AuthServiceInterface, domains DomainServiceInterface, renderer *PageRenderer) *PageHandler {
	return &PageHandler{
		auth:     authService,
		domains:  domains,
		renderer: renderer,
	}
}

// indexPageData はトップページのテンプレートデータ。
type indexPageData struct {
	User       *model.User
	Domains    []*model.Domain
	CSRFField  string
	CSRFToken  string
	LoginError string
	JoinError  string
}

// Index はログインフォーム、またはログインユーザーと登録ドメインを表示する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	data := indexPageData{
		CSRFField:  middleware.CSRFFormField,
		CSRFToken:  middleware.CSRFTokenFromContext(r.Context()),
		LoginError: r.URL.Query().Get("loginError"),
		JoinError:  r.URL.Query().Get("joinError"),
	}

	user, err := h.currentUser(r)
	if err != nil {
		h.renderer.renderServiceError(w, err)
		return
	}

	if user != nil {
		domains, err := h.domains.ListByUser(r.Context(), user.ID)
		if err != nil {
			h.renderer.renderServiceError(w, err)
			return
		}
		data.User = user
		data.Domains = domains
	}

	h.renderer.render(w, http.StatusOK, "index.html", data)
}

// RegisterDomain はログインユーザーのドメインを登録する。
// POST /domain
func (h *PageHandler) RegisterDomain(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.renderer.renderServiceError(w, model.NewLoginRequiredError())
		return
	}

	host := r.PostFormValue("host")
	domainType := model.DomainType(r.PostFormValue("type"))

	if _, err := h.domains.Register(r.Context(), userID, host, domainType); err != nil {
		h.renderer.renderServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// NotFound は未定義ルートに対してエラーページを返す。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderError(w, http.StatusNotFound,
		fmt.Sprintf("%s %s route not found", r.Method, r.URL.RequestURI()), nil)
}

// currentUser はOptionalSessionミドルウェアが注入したユーザーIDからログインユーザーを取得する。
// 未ログインの場合はnilを返す。
func (h *PageHandler) currentUser(r *http.Request) (*model.User, error) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil, nil
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
