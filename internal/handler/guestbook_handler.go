package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/nodebird/internal/model"
)

// maxGuestbookBodyBytes は芳名録リクエストボディの上限。
const maxGuestbookBodyBytes = 16 << 10

// GuestbookServiceInterface は芳名録ハンドラーが必要とするサービスインターフェース。
type GuestbookServiceInterface interface {
	List(ctx context.Context) ([]*model.Guestbook, error)
	Get(ctx context.Context, id int64) (*model.Guestbook, error)
	Create(ctx context.Context, input model.GuestbookInput) (*model.Guestbook, error)
	Update(ctx context.Context, id int64, input model.GuestbookInput) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// GuestbookHandler は芳名録のHTTPハンドラー。
// エントリに所有者はなく、有効なトークンを持つ誰でも操作できる。
type GuestbookHandler struct {
	service GuestbookServiceInterface
}

// NewGuestbookHandler はGuestbookHandlerを生成する。
func NewGuestbookHandler(service GuestbookServiceInterface) *GuestbookHandler {
	return &GuestbookHandler{service: service}
}

// guestbookRequest は作成・更新リクエストのボディ。
// 入力は data オブジェクトの中に入れて送られる。
type guestbookRequest struct {
	Data struct {
		ID      flexibleID `json:"id"`
		Name    string     `json:"name"`
		Email   string     `json:"email"`
		Content string     `json:"content"`
	} `json:"data"`
}

func (req *guestbookRequest) input() model.GuestbookInput {
	return model.GuestbookInput{
		Nick:    req.Data.Name,
		Email:   req.Data.Email,
		Content: req.Data.Content,
	}
}

// flexibleID は数値と数字文字列の両方を受け付けるID。
type flexibleID int64

// UnmarshalJSON は 3 と "3" を同じIDとして読み取る。
func (id *flexibleID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	if s == "" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*id = flexibleID(n)
	return nil
}

// ListAll は全エントリを返す。
// GET /v2/guestbook/my
func (h *GuestbookHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writePayload(w, toGuestbookResponses(entries))
}

// Get は指定IDのエントリを返す。存在しない場合はpayloadがnullになる。
// GET /v2/guestbooks/update/{id}
func (h *GuestbookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if entry == nil {
		writePayload(w, nil)
		return
	}
	writePayload(w, toGuestbookResponse(entry))
}

// Delete は指定IDのエントリを削除し、削除件数を返す。
// GET /v2/guestbooks/delete/{id}
func (h *GuestbookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writePayload(w, deleted)
}

// Create はエントリを作成し、作成したエントリを返す。
// POST /v2/guestbooks/create
func (h *GuestbookHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGuestbookRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writePayload(w, toGuestbookResponse(entry))
}

// Update はボディのIDで指定したエントリを更新し、更新件数を返す。
// 一致する行がない場合も成功として0を返す。
// POST /v2/guestbooks/update
func (h *GuestbookHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGuestbookRequest(w, r)
	if !ok {
		return
	}
	if req.Data.ID <= 0 {
		handleServiceError(w, model.NewValidationError("IDは正の整数で指定してください"))
		return
	}

	updated, err := h.service.Update(r.Context(), int64(req.Data.ID), req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writePayload(w, updated)
}

func decodeGuestbookRequest(w http.ResponseWriter, r *http.Request) (*guestbookRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxGuestbookBodyBytes)

	var req guestbookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewValidationError("リクエストボディのJSONが不正です"))
		return nil, false
	}
	return &req, true
}
