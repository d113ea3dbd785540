package model

import "time"

// DomainType はドメインの利用区分を表す。
type DomainType string

const (
	// DomainTypeFree は無料区分。
	DomainTypeFree DomainType = "free"
	// DomainTypePremium は有料区分。
	DomainTypePremium DomainType = "premium"
)

// Valid は定義済みの区分かどうかを返す。
func (t DomainType) Valid() bool {
	return t == DomainTypeFree || t == DomainTypePremium
}

// Domain はAPIを呼び出すオリジンとして登録されたホストを表す。
// ClientSecretは1つのドメインとその所有ユーザーを一意に特定する。
// Hostには一意制約がない。
type Domain struct {
	ID           int64
	UserID       int64
	Host         string
	Type         DomainType
	ClientSecret string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DomainOwner はドメインと所有ユーザーを結合した結果を表す。
// トークン発行時のclientSecret検索で使用する。
type DomainOwner struct {
	Domain Domain
	Owner  User
}
