package handler

import (
	"context"
	"fmt"

	"github.com/hitoshi/nodebird/internal/model"
	"github.com/hitoshi/nodebird/internal/repository"
)

// PostServiceAdapterFromRepo は repository.PostRepository を PostServiceInterface に適合させるアダプタ。
type PostServiceAdapterFromRepo struct {
	repo repository.PostRepository
}

// NewPostServiceAdapter は repository.PostRepository から PostServiceInterface を生成する。
func NewPostServiceAdapter(repo repository.PostRepository) PostServiceInterface {
	return &PostServiceAdapterFromRepo{repo: repo}
}

// ListMine はユーザー自身の投稿一覧を返す。
func (a *PostServiceAdapterFromRepo) ListMine(ctx context.Context, userID int64) ([]*model.Post, error) {
	posts, err := a.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// ListByHashtag はハッシュタグに紐づく投稿一覧を返す。
// ハッシュタグが存在しない場合はNotFoundのAPIErrorを返す。
func (a *PostServiceAdapterFromRepo) ListByHashtag(ctx context.Context, title string) ([]*model.Post, error) {
	hashtag, err := a.repo.FindHashtagByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("failed to find hashtag: %w", err)
	}
	if hashtag == nil {
		return nil, model.NewHashtagNotFoundError(title)
	}

	posts, err := a.repo.ListByHashtagID(ctx, hashtag.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by hashtag: %w", err)
	}
	return posts, nil
}

// --- compile-time interface checks ---

var _ PostServiceInterface = (*PostServiceAdapterFromRepo)(nil)
