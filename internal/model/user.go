// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ドメインと投稿の所有者になる。
type User struct {
	ID           int64
	Email        string
	Nick         string
	PasswordHash string
	Provider     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はファーストパーティ画面のログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Identity はトークンに埋め込まれる呼び出し元の身元を表す。
// トークン検証後にリクエストコンテキストへ格納される。
type Identity struct {
	UserID int64
	Nick   string
}
