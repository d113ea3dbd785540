package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func tagMiddleware(tag string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, tag)
			next.ServeHTTP(w, r)
		})
	}
}

// TestChain_RunsInDeclaredOrder は先頭のミドルウェアから順に実行されることを検証する。
func TestChain_RunsInDeclaredOrder(t *testing.T) {
	var order []string

	handler := Chain(
		tagMiddleware("origin", &order),
		tagMiddleware("auth", &order),
		tagMiddleware("limit", &order),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"origin", "auth", "limit", "handler"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

// TestChain_TerminalResponseStopsPipeline は途中で応答したミドルウェア以降が実行されないことを検証する。
func TestChain_TerminalResponseStopsPipeline(t *testing.T) {
	var order []string
	stop := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "stop")
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	called := false
	handler := Chain(tagMiddleware("first", &order), stop, tagMiddleware("never", &order))(okHandler(&called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if called {
		t.Error("handler should not be called")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if !reflect.DeepEqual(order, []string{"first", "stop"}) {
		t.Errorf("order = %v", order)
	}
}

// TestChain_SkipsNil はnilのミドルウェアを無視することを検証する。
func TestChain_SkipsNil(t *testing.T) {
	called := false
	handler := Chain(nil, nil)(okHandler(&called))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("handler should be called")
	}
}
