// Package token はAPIトークン（JWT）の署名・検証と、
// クライアントシークレットとの交換による発行を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/nodebird/internal/model"
)

var (
	// ErrTokenExpired は有効期限切れのトークンを表す。
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid は署名不正・形式不正・発行者不一致のトークンを表す。
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims はトークンに埋め込むクレーム。
type Claims struct {
	UserID int64  `json:"id"`
	Nick   string `json:"nick"`
	jwt.RegisteredClaims
}

// Identity はクレームから呼び出し元の身元を取り出す。
func (c *Claims) Identity() model.Identity {
	return model.Identity{UserID: c.UserID, Nick: c.Nick}
}

// Signer はHS256でトークンの署名と検証を行う。
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSigner はSignerを生成する。
func NewSigner(secret, issuer string) *Signer {
	return &Signer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// WithClock は現在時刻の取得関数を差し替えたSignerを返す。テスト用。
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}

// Sign は身元情報を埋め込んだトークンを発行する。
func (s *Signer) Sign(id model.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive: %s", ttl)
	}

	now := s.now()
	claims := Claims{
		UserID: id.UserID,
		Nick:   id.Nick,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名・発行者・有効期限を検証してクレームを返す。
// 期限切れはErrTokenExpired、それ以外の不正はErrTokenInvalidでラップして返す。
func (s *Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
