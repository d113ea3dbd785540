package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/nodebird/internal/model"
)

// PostgresGuestbookRepo はPostgreSQLを使用した芳名録リポジトリ。
type PostgresGuestbookRepo struct {
	db *sql.DB
}

// NewPostgresGuestbookRepo はPostgresGuestbookRepoを生成する。
func NewPostgresGuestbookRepo(db *sql.DB) *PostgresGuestbookRepo {
	return &PostgresGuestbookRepo{db: db}
}

const guestbookColumns = `id, content, email, nick, created_at, updated_at`

// List は全エントリをID昇順で返す。
func (r *PostgresGuestbookRepo) List(ctx context.Context) ([]*model.Guestbook, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+guestbookColumns+` FROM guestbooks ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list guestbooks: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.Guestbook, 0)
	for rows.Next() {
		g, err := scanGuestbook(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guestbooks: %w", err)
	}
	return entries, nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresGuestbookRepo) FindByID(ctx context.Context, id int64) (*model.Guestbook, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+guestbookColumns+` FROM guestbooks WHERE id = $1`,
		id,
	)
	g, err := scanGuestbook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Create はエントリを作成し、採番されたIDとタイムスタンプを設定する。
func (r *PostgresGuestbookRepo) Create(ctx context.Context, entry *model.Guestbook) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO guestbooks (content, email, nick, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING id, created_at, updated_at`,
		entry.Content, entry.Email, entry.Nick,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert guestbook: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert guestbook: %w", err)
	}
	return nil
}

// Update は指定IDのエントリを上書きし、影響を受けた行数を返す。
// 該当IDが存在しない場合は0を返し、エラーにはしない。
func (r *PostgresGuestbookRepo) Update(ctx context.Context, entry *model.Guestbook) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE guestbooks
		 SET content = $1, email = $2, nick = $3, updated_at = now()
		 WHERE id = $4`,
		entry.Content, entry.Email, entry.Nick, entry.ID,
	)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("failed to update guestbook: %w", ErrDuplicate)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update guestbook: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Delete は指定IDのエントリを削除し、影響を受けた行数を返す。
// 該当IDが存在しない場合は0を返し、エラーにはしない。
func (r *PostgresGuestbookRepo) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM guestbooks WHERE id = $1`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guestbook: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanGuestbook は1行を芳名録エントリに変換する。
// sql.ErrNoRowsはラップせずにそのまま返す。
func scanGuestbook(s rowScanner) (*model.Guestbook, error) {
	g := &model.Guestbook{}
	var email sql.NullString
	err := s.Scan(&g.ID, &g.Content, &email, &g.Nick, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan guestbook: %w", err)
	}
	if email.Valid {
		e := email.String
		g.Email = &e
	}
	return g, nil
}

// compile-time interface check
var _ GuestbookRepository = (*PostgresGuestbookRepo)(nil)
