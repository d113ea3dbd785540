package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/nodebird/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿・ハッシュタグの読み取りリポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// ListByUserID はユーザーの投稿一覧をID昇順で返す。
func (r *PostgresPostRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, content, img, user_id, created_at, updated_at
		 FROM posts
		 WHERE user_id = $1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by user: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// FindHashtagByTitle はタイトルが完全一致するハッシュタグを取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindHashtagByTitle(ctx context.Context, title string) (*model.Hashtag, error) {
	h := &model.Hashtag{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM hashtags WHERE title = $1`,
		title,
	).Scan(&h.ID, &h.Title, &h.CreatedAt, &h.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find hashtag: %w", err)
	}

	return h, nil
}

// ListByHashtagID はハッシュタグに紐づく投稿一覧を返す。
func (r *PostgresPostRepo) ListByHashtagID(ctx context.Context, hashtagID int64) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.content, p.img, p.user_id, p.created_at, p.updated_at
		 FROM posts p
		 JOIN post_hashtags ph ON ph.post_id = p.id
		 WHERE ph.hashtag_id = $1
		 ORDER BY p.id`,
		hashtagID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by hashtag: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// scanPosts は投稿の行セットをスライスに変換する。行がない場合は空スライスを返す。
func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	posts := make([]*model.Post, 0)
	for rows.Next() {
		p := &model.Post{}
		var img sql.NullString
		if err := rows.Scan(&p.ID, &p.Content, &img, &p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.Img = img.String
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
