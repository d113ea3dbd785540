package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/nodebird/internal/model"
)

// OwnerFinder はクライアントシークレットからドメインと所有ユーザーを引く。
type OwnerFinder interface {
	FindOwnerByClientSecret(ctx context.Context, clientSecret uuid.UUID) (*model.DomainOwner, error)
}

// Issuer はクライアントシークレットとトークンを交換する。
// 発行履歴は保存しない。
type Issuer struct {
	owners OwnerFinder
	signer *Signer
}

// NewIssuer はIssuerを生成する。
func NewIssuer(owners OwnerFinder, signer *Signer) *Issuer {
	return &Issuer{owners: owners, signer: signer}
}

// Issue はシークレットに一致するドメインの所有ユーザーとしてトークンを発行する。
// シークレットはUUIDとして解釈し、解釈できないものは照会せずに未登録扱いとする。
// 一致するドメインがない場合は未登録ドメインエラー（*model.APIError）を返す。
func (i *Issuer) Issue(ctx context.Context, clientSecret string, ttl time.Duration) (string, error) {
	secret, err := uuid.Parse(clientSecret)
	if err != nil {
		return "", model.NewUnregisteredDomainError()
	}

	owner, err := i.owners.FindOwnerByClientSecret(ctx, secret)
	if err != nil {
		return "", fmt.Errorf("failed to find domain by client secret: %w", err)
	}
	if owner == nil {
		return "", model.NewUnregisteredDomainError()
	}

	return i.signer.Sign(model.Identity{
		UserID: owner.Owner.ID,
		Nick:   owner.Owner.Nick,
	}, ttl)
}
