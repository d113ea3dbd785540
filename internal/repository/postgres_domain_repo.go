package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/nodebird/internal/model"
)

// PostgresDomainRepo はPostgreSQLを使用したドメインリポジトリ。
type PostgresDomainRepo struct {
	db *sql.DB
}

// NewPostgresDomainRepo はPostgresDomainRepoを生成する。
func NewPostgresDomainRepo(db *sql.DB) *PostgresDomainRepo {
	return &PostgresDomainRepo{db: db}
}

// Create はドメインを作成し、採番されたIDをdomain.IDに設定する。
func (r *PostgresDomainRepo) Create(ctx context.Context, domain *model.Domain) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO domains (user_id, host, type, client_secret, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 RETURNING id, created_at, updated_at`,
		domain.UserID, domain.Host, string(domain.Type), domain.ClientSecret,
	).Scan(&domain.ID, &domain.CreatedAt, &domain.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert domain: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert domain: %w", err)
	}
	return nil
}

// ListByUserID はユーザーが登録したドメインをID昇順で返す。
func (r *PostgresDomainRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Domain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, host, type, client_secret, created_at, updated_at
		 FROM domains
		 WHERE user_id = $1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	domains := make([]*model.Domain, 0)
	for rows.Next() {
		d := &model.Domain{}
		var domainType string
		if err := rows.Scan(&d.ID, &d.UserID, &d.Host, &domainType, &d.ClientSecret, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		d.Type = model.DomainType(domainType)
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate domains: %w", err)
	}

	return domains, nil
}

// FindByHost はホストが一致するドメインを取得する。見つからない場合はnilを返す。
func (r *PostgresDomainRepo) FindByHost(ctx context.Context, host string) (*model.Domain, error) {
	d := &model.Domain{}
	var domainType string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, host, type, client_secret, created_at, updated_at
		 FROM domains
		 WHERE host = $1
		 ORDER BY id
		 LIMIT 1`,
		host,
	).Scan(&d.ID, &d.UserID, &d.Host, &domainType, &d.ClientSecret, &d.CreatedAt, &d.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find domain by host: %w", err)
	}

	d.Type = model.DomainType(domainType)
	return d, nil
}

// FindOwnerByClientSecret はクライアントシークレットが一致するドメインを所有ユーザーと結合して取得する。
// client_secretはUUID型のため、UUIDとして解釈できない値は文字列比較で一致なしとして扱う。
func (r *PostgresDomainRepo) FindOwnerByClientSecret(ctx context.Context, clientSecret uuid.UUID) (*model.DomainOwner, error) {
	owner := &model.DomainOwner{}
	var domainType string
	var email sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT d.id, d.user_id, d.host, d.type, d.client_secret, d.created_at, d.updated_at,
		        u.id, u.email, u.nick, u.provider, u.created_at, u.updated_at
		 FROM domains d
		 JOIN users u ON u.id = d.user_id
		 WHERE d.client_secret = $1::uuid`,
		clientSecret,
	).Scan(
		&owner.Domain.ID, &owner.Domain.UserID, &owner.Domain.Host, &domainType,
		&owner.Domain.ClientSecret, &owner.Domain.CreatedAt, &owner.Domain.UpdatedAt,
		&owner.Owner.ID, &email, &owner.Owner.Nick, &owner.Owner.Provider,
		&owner.Owner.CreatedAt, &owner.Owner.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find domain by client secret: %w", err)
	}

	owner.Domain.Type = model.DomainType(domainType)
	owner.Owner.Email = email.String
	return owner, nil
}

// compile-time interface check
var _ DomainRepository = (*PostgresDomainRepo)(nil)
