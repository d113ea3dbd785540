// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/nodebird/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// 呼び出し側はerrors.Isで判定し、汎用的な障害と区別する。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は before より前に期限切れになったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// DomainRepository は登録ドメインの永続化インターフェース。
type DomainRepository interface {
	// Create はドメインを作成し、採番されたIDをdomain.IDに設定する。
	Create(ctx context.Context, domain *model.Domain) error

	// ListByUserID はユーザーが登録したドメインをID昇順で返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Domain, error)

	// FindByHost はホストが一致するドメインを取得する。見つからない場合はnilを返す。
	// hostに一意制約はないため、複数一致した場合はIDが最小のものを返す。
	FindByHost(ctx context.Context, host string) (*model.Domain, error)

	// FindOwnerByClientSecret はクライアントシークレットが一致するドメインを
	// 所有ユーザーと結合して取得する。見つからない場合はnilを返す。
	FindOwnerByClientSecret(ctx context.Context, clientSecret uuid.UUID) (*model.DomainOwner, error)
}

// PostRepository は投稿とハッシュタグの読み取りインターフェース。
type PostRepository interface {
	// ListByUserID はユーザーの投稿一覧を返す。投稿がない場合は空スライスを返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Post, error)

	// FindHashtagByTitle はタイトルが完全一致するハッシュタグを取得する。
	// 見つからない場合はnilを返す。
	FindHashtagByTitle(ctx context.Context, title string) (*model.Hashtag, error)

	// ListByHashtagID はハッシュタグに紐づく投稿一覧を返す。
	ListByHashtagID(ctx context.Context, hashtagID int64) ([]*model.Post, error)
}

// GuestbookRepository は芳名録の永続化インターフェース。
// 各操作は単一のステートメントで自動コミットされる。
type GuestbookRepository interface {
	// List は全エントリをID昇順で返す。
	List(ctx context.Context) ([]*model.Guestbook, error)

	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Guestbook, error)

	// Create はエントリを作成し、採番されたIDとタイムスタンプを設定する。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, entry *model.Guestbook) error

	// Update は指定IDのエントリを上書きし、影響を受けた行数を返す。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Update(ctx context.Context, entry *model.Guestbook) (int64, error)

	// Delete は指定IDのエントリを削除し、影響を受けた行数を返す。
	Delete(ctx context.Context, id int64) (int64, error)
}
