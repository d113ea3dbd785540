package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/nodebird/internal/model"
	"github.com/hitoshi/nodebird/internal/token"
)

// identityContextKey はリクエストコンテキストにトークンの身元を格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はトークンを検証してクレームを返す。
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// TokenRejectionRecorder はトークン検証の拒否を記録する。
type TokenRejectionRecorder interface {
	RecordTokenRejected(reason string)
}

// NewTokenAuthMiddleware はAuthorizationヘッダーのトークンを検証するミドルウェアを返す。
// "Bearer <token>" とトークン単体の両方を受け付ける。
// 検証に成功するとクレームと身元をコンテキストに注入する。
// 未指定・期限切れ・不正はいずれも401を返し、メッセージで区別する。
func NewTokenAuthMiddleware(verifier TokenVerifier, recorder TokenRejectionRecorder) Middleware {
	reject := func(w http.ResponseWriter, reason string, apiErr *model.APIError) {
		if recorder != nil {
			recorder.RecordTokenRejected(reason)
		}
		WriteErrorResponse(w, apiErr)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r.Header.Get("Authorization"))
			if raw == "" {
				reject(w, "missing", model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				if errors.Is(err, token.ErrTokenExpired) {
					reject(w, "expired", model.NewTokenExpiredError())
					return
				}
				reject(w, "invalid", model.NewInvalidTokenError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// ClaimsFromContext はトークン検証済みリクエストのクレームを取得する。
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(identityContextKey).(*token.Claims)
	return claims, ok && claims != nil
}

// IdentityFromContext はトークン検証済みリクエストの呼び出し元を取得する。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return model.Identity{}, false
	}
	return claims.Identity(), true
}

// ContextWithClaims はコンテキストにクレームを注入する。
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	if claims != nil {
		noteUserID(ctx, claims.UserID)
	}
	return context.WithValue(ctx, identityContextKey, claims)
}

func extractToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
