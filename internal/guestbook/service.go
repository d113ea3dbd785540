// Package guestbook は芳名録の読み書きを提供する。
// エントリは作成者と紐付かず、有効なトークンを持つ誰でも更新・削除できる。
package guestbook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/nodebird/internal/model"
	"github.com/hitoshi/nodebird/internal/repository"
)

// MarkupChecker は入力テキストにHTMLマークアップが含まれるかを判定する。
type MarkupChecker interface {
	ContainsMarkup(raw string) bool
}

// Service は芳名録のビジネスロジック。
type Service struct {
	repo   repository.GuestbookRepository
	markup MarkupChecker
}

// NewService はServiceを生成する。markupがnilの場合はマークアップを検査しない。
func NewService(repo repository.GuestbookRepository, markup MarkupChecker) *Service {
	return &Service{repo: repo, markup: markup}
}

// List は全エントリを返す。呼び出し元による絞り込みは行わない。
func (s *Service) List(ctx context.Context) ([]*model.Guestbook, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guestbook: %w", err)
	}
	return entries, nil
}

// Get は指定IDのエントリを返す。存在しない場合はnilを返し、エラーにはしない。
func (s *Service) Get(ctx context.Context, id int64) (*model.Guestbook, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get guestbook entry: %w", err)
	}
	return entry, nil
}

// Create はエントリを作成して返す。
// メールアドレスが重複する場合は409のAPIErrorを返す。
func (s *Service) Create(ctx context.Context, input model.GuestbookInput) (*model.Guestbook, error) {
	entry, err := s.build(input)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create guestbook entry: %w", err)
	}
	return entry, nil
}

// Update は指定IDのエントリを上書きし、影響を受けた行数を返す。
// 該当IDがない場合も0件として成功扱いにする。
func (s *Service) Update(ctx context.Context, id int64, input model.GuestbookInput) (int64, error) {
	entry, err := s.build(input)
	if err != nil {
		return 0, err
	}
	entry.ID = id

	n, err := s.repo.Update(ctx, entry)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return 0, model.NewDuplicateEmailError()
		}
		return 0, fmt.Errorf("failed to update guestbook entry: %w", err)
	}
	return n, nil
}

// Delete は指定IDのエントリを削除し、影響を受けた行数を返す。
// 該当IDがない場合も0件として成功扱いにする。
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guestbook entry: %w", err)
	}
	return n, nil
}

// build は入力値を検証してエントリを組み立てる。
// 前後の空白を除く以外に値を書き換えないため、作成した値はそのまま読み出せる。
func (s *Service) build(input model.GuestbookInput) (*model.Guestbook, error) {
	nick := strings.TrimSpace(input.Nick)
	content := strings.TrimSpace(input.Content)
	email := strings.TrimSpace(input.Email)

	if err := checkLength("nick", nick, 1, model.GuestbookNickMaxLen); err != nil {
		return nil, err
	}
	if err := checkLength("content", content, 1, model.GuestbookContentMaxLen); err != nil {
		return nil, err
	}
	if err := s.checkPlainText("nick", nick); err != nil {
		return nil, err
	}
	if err := s.checkPlainText("content", content); err != nil {
		return nil, err
	}

	entry := &model.Guestbook{Nick: nick, Content: content}
	if email != "" {
		if err := checkLength("email", email, 1, model.GuestbookEmailMaxLen); err != nil {
			return nil, err
		}
		if !strings.Contains(email, "@") {
			return nil, model.NewValidationError("email の形式が正しくありません")
		}
		entry.Email = &email
	}
	return entry, nil
}

func (s *Service) checkPlainText(field, v string) error {
	if s.markup != nil && s.markup.ContainsMarkup(v) {
		return model.NewValidationError(fmt.Sprintf("%s にHTMLタグは使用できません", field))
	}
	return nil
}

func checkLength(field, v string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(v)
	if n < minLen {
		return model.NewValidationError(fmt.Sprintf("%s は必須です", field))
	}
	if n > maxLen {
		return model.NewValidationError(fmt.Sprintf("%s は%d文字以内で入力してください", field, maxLen))
	}
	return nil
}
