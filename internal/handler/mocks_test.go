package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/nodebird/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	joinFn           func(ctx context.Context, email, nick, password string) (*model.User, error)
	loginFn          func(ctx context.Context, email, password string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getUserFn        func(ctx context.Context, userID int64) (*model.User, error)
}

func (m *mockAuthService) Join(ctx context.Context, email, nick, password string) (*model.User, error) {
	if m.joinFn != nil {
		return m.joinFn(ctx, email, nick, password)
	}
	return &model.User{ID: 1, Email: email, Nick: nick}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, userID)
	}
	return nil, nil
}

type mockDomainService struct {
	registerFn   func(ctx context.Context, userID int64, host string, domainType model.DomainType) (*model.Domain, error)
	listByUserFn func(ctx context.Context, userID int64) ([]*model.Domain, error)
}

func (m *mockDomainService) Register(ctx context.Context, userID int64, host string, domainType model.DomainType) (*model.Domain, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, userID, host, domainType)
	}
	return &model.Domain{ID: 1, UserID: userID, Host: host, Type: domainType}, nil
}

func (m *mockDomainService) ListByUser(ctx context.Context, userID int64) ([]*model.Domain, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return []*model.Domain{}, nil
}

type mockTokenIssuer struct {
	issueFn func(ctx context.Context, clientSecret string, ttl time.Duration) (string, error)
}

func (m *mockTokenIssuer) Issue(ctx context.Context, clientSecret string, ttl time.Duration) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, clientSecret, ttl)
	}
	return "signed-token", nil
}

type mockPostService struct {
	listMineFn      func(ctx context.Context, userID int64) ([]*model.Post, error)
	listByHashtagFn func(ctx context.Context, title string) ([]*model.Post, error)
}

func (m *mockPostService) ListMine(ctx context.Context, userID int64) ([]*model.Post, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, userID)
	}
	return []*model.Post{}, nil
}

func (m *mockPostService) ListByHashtag(ctx context.Context, title string) ([]*model.Post, error) {
	if m.listByHashtagFn != nil {
		return m.listByHashtagFn(ctx, title)
	}
	return []*model.Post{}, nil
}

type mockGuestbookService struct {
	listFn   func(ctx context.Context) ([]*model.Guestbook, error)
	getFn    func(ctx context.Context, id int64) (*model.Guestbook, error)
	createFn func(ctx context.Context, input model.GuestbookInput) (*model.Guestbook, error)
	updateFn func(ctx context.Context, id int64, input model.GuestbookInput) (int64, error)
	deleteFn func(ctx context.Context, id int64) (int64, error)
}

func (m *mockGuestbookService) List(ctx context.Context) ([]*model.Guestbook, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Guestbook{}, nil
}

func (m *mockGuestbookService) Get(ctx context.Context, id int64) (*model.Guestbook, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockGuestbookService) Create(ctx context.Context, input model.GuestbookInput) (*model.Guestbook, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return &model.Guestbook{ID: 1, Nick: input.Nick, Content: input.Content}, nil
}

func (m *mockGuestbookService) Update(ctx context.Context, id int64, input model.GuestbookInput) (int64, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, input)
	}
	return 1, nil
}

func (m *mockGuestbookService) Delete(ctx context.Context, id int64) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return 1, nil
}

type mockOriginChecker struct {
	allowed map[string]bool
	err     error
}

func (m *mockOriginChecker) AllowedOrigin(_ context.Context, origin string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.allowed[origin], nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

type mockSessionFinder struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	lookups  int
}

func (m *mockSessionFinder) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	return m.sessions[id], nil
}

func (m *mockSessionFinder) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// fakeMetrics はメトリクスの呼び出しを記録する。
type fakeMetrics struct {
	mu            sync.Mutex
	tokensIssued  map[string]int
	rejections    map[string]int
	rateLimited   map[string]int
	corsDecisions map[bool]int
	statuses      map[int]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		tokensIssued:  make(map[string]int),
		rejections:    make(map[string]int),
		rateLimited:   make(map[string]int),
		corsDecisions: make(map[bool]int),
		statuses:      make(map[int]int),
	}
}

func (f *fakeMetrics) RecordTokenIssued(version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensIssued[version]++
}

func (f *fakeMetrics) RecordTokenRejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejections[reason]++
}

func (f *fakeMetrics) RecordRateLimited(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimited[route]++
}

func (f *fakeMetrics) RecordCORSDecision(allowed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corsDecisions[allowed]++
}

func (f *fakeMetrics) RecordHTTPStatus(statusCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[statusCode]++
}

func (f *fakeMetrics) RecordRequestDuration(time.Duration) {}

// --- ヘルパー ---

// testBody はJSONレスポンスの汎用的な形。
type testBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	Payload json.RawMessage `json:"payload"`
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) testBody {
	t.Helper()
	var body testBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

func strPtr(s string) *string { return &s }
