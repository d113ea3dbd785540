package registry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/hitoshi/nodebird/internal/model"
)

// mockDomainRepo はテスト用のDomainRepositoryモック。
type mockDomainRepo struct {
	createFn     func(ctx context.Context, domain *model.Domain) error
	listFn       func(ctx context.Context, userID int64) ([]*model.Domain, error)
	findByHostFn func(ctx context.Context, host string) (*model.Domain, error)

	lastHost string
}

func (m *mockDomainRepo) Create(ctx context.Context, domain *model.Domain) error {
	if m.createFn != nil {
		return m.createFn(ctx, domain)
	}
	domain.ID = 1
	return nil
}

func (m *mockDomainRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Domain, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []*model.Domain{}, nil
}

func (m *mockDomainRepo) FindByHost(ctx context.Context, host string) (*model.Domain, error) {
	m.lastHost = host
	if m.findByHostFn != nil {
		return m.findByHostFn(ctx, host)
	}
	return nil, nil
}

func (m *mockDomainRepo) FindOwnerByClientSecret(ctx context.Context, clientSecret uuid.UUID) (*model.DomainOwner, error) {
	return nil, nil
}

func TestService_Register_Success(t *testing.T) {
	var saved *model.Domain
	repo := &mockDomainRepo{
		createFn: func(_ context.Context, d *model.Domain) error {
			saved = d
			d.ID = 10
			return nil
		},
	}
	svc := NewService(repo)

	domain, err := svc.Register(context.Background(), 5, "localhost:4000", model.DomainTypeFree)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if domain.ID != 10 || domain.UserID != 5 {
		t.Errorf("domain = %+v, want id=10 user=5", domain)
	}
	if saved == nil || saved.Host != "localhost:4000" {
		t.Errorf("saved host = %v, want localhost:4000", saved)
	}
	if _, err := uuid.Parse(domain.ClientSecret); err != nil {
		t.Errorf("client secret %q is not a uuid: %v", domain.ClientSecret, err)
	}
}

func TestService_Register_SecretsAreUnique(t *testing.T) {
	svc := NewService(&mockDomainRepo{})

	a, err := svc.Register(context.Background(), 1, "a.com", model.DomainTypeFree)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Register(context.Background(), 1, "a.com", model.DomainTypeFree)
	if err != nil {
		t.Fatal(err)
	}
	if a.ClientSecret == b.ClientSecret {
		t.Error("expected distinct client secrets")
	}
}

func TestService_Register_InvalidType(t *testing.T) {
	svc := NewService(&mockDomainRepo{})

	_, err := svc.Register(context.Background(), 1, "a.com", model.DomainType("gold"))

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("err = %v, want 400 APIError", err)
	}
}

func TestService_Register_RepoError(t *testing.T) {
	dbErr := errors.New("db down")
	svc := NewService(&mockDomainRepo{
		createFn: func(context.Context, *model.Domain) error { return dbErr },
	})

	_, err := svc.Register(context.Background(), 1, "a.com", model.DomainTypePremium)
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped dbErr", err)
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a.com", want: "a.com"},
		{in: "http://a.com/x", want: "a.com"},
		{in: "https://A.com:8443/path?q=1", want: "a.com:8443"},
		{in: "  localhost:4000  ", want: "localhost:4000"},
		{in: "user@b.com", want: "b.com"},
		{in: "", wantErr: true},
		{in: "http://", wantErr: true},
		{in: "a b.com", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeHost(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeHost(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeHost(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeHost_TooLong(t *testing.T) {
	long := make([]byte, hostMaxLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := NormalizeHost(string(long)); err == nil {
		t.Error("expected error for host longer than limit")
	}
}

func TestService_AllowedOrigin(t *testing.T) {
	repo := &mockDomainRepo{
		findByHostFn: func(_ context.Context, host string) (*model.Domain, error) {
			if host == "localhost:4000" {
				return &model.Domain{ID: 1, Host: host}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(repo)

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:4000", true},
		{"http://LOCALHOST:4000", true},
		{"http://localhost:4001", false},
		{"http://evil.example.com", false},
		{"", false},
		{"null", false},
		{"localhost:4000", false},
	}

	for _, tt := range tests {
		got, err := svc.AllowedOrigin(context.Background(), tt.origin)
		if err != nil {
			t.Errorf("AllowedOrigin(%q) returned error: %v", tt.origin, err)
		}
		if got != tt.want {
			t.Errorf("AllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestService_AllowedOrigin_EmptyOriginSkipsLookup(t *testing.T) {
	repo := &mockDomainRepo{
		findByHostFn: func(context.Context, string) (*model.Domain, error) {
			t.Fatal("FindByHost should not be called")
			return nil, nil
		},
	}

	ok, err := NewService(repo).AllowedOrigin(context.Background(), "")
	if err != nil || ok {
		t.Errorf("AllowedOrigin(\"\") = %v, %v; want false, nil", ok, err)
	}
}

func TestService_AllowedOrigin_RepoError(t *testing.T) {
	dbErr := errors.New("db down")
	svc := NewService(&mockDomainRepo{
		findByHostFn: func(context.Context, string) (*model.Domain, error) { return nil, dbErr },
	})

	_, err := svc.AllowedOrigin(context.Background(), "http://a.com")
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped dbErr", err)
	}
}
