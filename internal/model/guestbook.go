package model

import "time"

// 芳名録の各フィールドの最大長（文字数）。
const (
	GuestbookContentMaxLen = 140
	GuestbookEmailMaxLen   = 40
	GuestbookNickMaxLen    = 15
)

// Guestbook は芳名録のエントリを表す。
// 作成者との紐付けはなく、有効なトークンを持つ誰でも編集・削除できる。
type Guestbook struct {
	ID        int64
	Content   string
	Email     *string // 未指定の場合はnil（NULLとして保存）
	Nick      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GuestbookInput は芳名録の作成・更新時の入力値を表す。
type GuestbookInput struct {
	Nick    string
	Email   string
	Content string
}
