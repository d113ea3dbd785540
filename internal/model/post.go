package model

import "time"

// Post はユーザーの投稿を表す。
// この API からは読み取り専用。
type Post struct {
	ID        int64
	Content   string
	Img       string
	UserID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Hashtag は投稿に付けられたハッシュタグを表す。
// 投稿とは post_hashtags テーブルを介した多対多の関係。
type Hashtag struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
