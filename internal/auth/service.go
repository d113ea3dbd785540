// Package auth はファーストパーティ画面のローカル認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/nodebird/internal/model"
	"github.com/hitoshi/nodebird/internal/repository"
)

// bcryptCost はパスワードハッシュのコスト。
const bcryptCost = 12

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードの不一致を表す。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound はセッションが指すユーザーが存在しないことを表す。
	ErrUserNotFound = errors.New("user not found")
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// プロセス起動時に一度だけ生成し、必要なハンドラーへ渡す。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	cost        int
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		cost:        bcryptCost,
		now:         time.Now,
	}
}

// Join はローカルユーザーを登録する。
// メールアドレスが既に使われている場合は409のAPIErrorを返す。
func (s *Service) Join(ctx context.Context, email, nick, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	nick = strings.TrimSpace(nick)

	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	case len([]rune(email)) > 40:
		return nil, model.NewValidationError("メールアドレスは40文字以内で入力してください")
	case nick == "" || len([]rune(nick)) > 15:
		return nil, model.NewValidationError("ニックネームは1〜15文字で入力してください")
	case password == "":
		return nil, model.NewValidationError("パスワードを入力してください")
	case len(password) > 72:
		return nil, model.NewValidationError("パスワードは72バイト以内で入力してください")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Nick:         nick,
		PasswordHash: string(hash),
		Provider:     "local",
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user joined",
		slog.Int64("user_id", user.ID),
	)
	return user, nil
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// 不一致の場合はErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetUser はセッションミドルウェアが解決したユーザーIDからユーザーを取得する。
// ユーザーが削除されている場合はErrUserNotFoundを返す。
func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID int64) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
