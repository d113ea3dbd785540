package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/nodebird/internal/model"
)

// mockSessionRepository はテスト用のSessionFinderモック。
type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

// validSessionRepo は指定IDのセッションだけを返すモックを生成する。
func validSessionRepo(sessionID string, userID int64) *mockSessionRepository {
	return &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != sessionID {
				return nil, nil
			}
			return &model.Session{
				ID:        sessionID,
				UserID:    userID,
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}
}

// fakeRecorder はメトリクス記録を保持するテスト用レコーダー。
type fakeRecorder struct {
	mu          sync.Mutex
	cors        []bool
	rejections  []string
	rateLimited []string
	statuses    []int
	durations   int
}

func (f *fakeRecorder) RecordCORSDecision(allowed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cors = append(f.cors, allowed)
}

func (f *fakeRecorder) RecordTokenRejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejections = append(f.rejections, reason)
}

func (f *fakeRecorder) RecordRateLimited(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimited = append(f.rateLimited, route)
}

func (f *fakeRecorder) RecordHTTPStatus(statusCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusCode)
}

func (f *fakeRecorder) RecordRequestDuration(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations++
}

// okHandler は200を返し、呼ばれたことを記録するハンドラーを返す。
func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

// decodeError はエラーレスポンスボディをデコードする。
func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v (raw: %q)", err, w.Body.String())
	}
	return body
}
