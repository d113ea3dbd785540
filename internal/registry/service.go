// Package registry はAPI呼び出し元ドメインの登録と、
// オリジンが登録済みかどうかの判定を提供する。
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/nodebird/internal/model"
	"github.com/hitoshi/nodebird/internal/repository"
)

// hostMaxLen はホスト名の最大長（文字数）。
const hostMaxLen = 80

// Service はドメイン登録のビジネスロジック。
type Service struct {
	domains repository.DomainRepository
}

// NewService はServiceを生成する。
func NewService(domains repository.DomainRepository) *Service {
	return &Service{domains: domains}
}

// Register はユーザーのドメインを登録する。
// クライアントシークレットはUUID v4で新規に発行する。
func (s *Service) Register(ctx context.Context, userID int64, host string, domainType model.DomainType) (*model.Domain, error) {
	normalized, err := NormalizeHost(host)
	if err != nil {
		return nil, err
	}
	if !domainType.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("不明なドメイン区分です: %q", domainType))
	}

	domain := &model.Domain{
		UserID:       userID,
		Host:         normalized,
		Type:         domainType,
		ClientSecret: uuid.NewString(),
	}
	if err := s.domains.Create(ctx, domain); err != nil {
		return nil, fmt.Errorf("failed to register domain: %w", err)
	}
	return domain, nil
}

// ListByUser はユーザーが登録したドメイン一覧を返す。
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*model.Domain, error) {
	domains, err := s.domains.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

// AllowedOrigin はOriginヘッダーの値が登録済みドメインのものかを判定する。
// 空や解析できないオリジンはfalseを返す。結果はキャッシュしない。
func (s *Service) AllowedOrigin(ctx context.Context, origin string) (bool, error) {
	host := originHost(origin)
	if host == "" {
		return false, nil
	}

	domain, err := s.domains.FindByHost(ctx, host)
	if err != nil {
		return false, fmt.Errorf("failed to find domain by host: %w", err)
	}
	return domain != nil, nil
}

// NormalizeHost は入力されたホストからスキーム・パス・クエリを取り除く。
// "http://a.com/x" は "a.com" になる。ポート番号は保持する。
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", model.NewValidationError("ホストを入力してください")
	}

	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	host = strings.ToLower(host)

	if host == "" {
		return "", model.NewValidationError("ホストを入力してください")
	}
	if len([]rune(host)) > hostMaxLen {
		return "", model.NewValidationError(fmt.Sprintf("ホストは%d文字以内で入力してください", hostMaxLen))
	}
	if strings.ContainsAny(host, " \t") {
		return "", model.NewValidationError("ホストに空白は使用できません")
	}
	return host, nil
}

// originHost はOriginヘッダーからhost[:port]部分を取り出す。
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "null" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}
