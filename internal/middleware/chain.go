// Package middleware はHTTPミドルウェアを提供する。
//
// 各ミドルウェアは処理を継続するか、終端レスポンスを書き込んで打ち切る。
// ルートごとの適用順はChainで明示的に組み立てる。
package middleware

import "net/http"

// Middleware はHTTPハンドラーをラップするインターセプター。
type Middleware = func(next http.Handler) http.Handler

// Chain は複数のミドルウェアを1つに合成する。
// 先頭に指定したものが最も外側（最初に実行される）になる。
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] == nil {
				continue
			}
			h = mws[i](h)
		}
		return h
	}
}
