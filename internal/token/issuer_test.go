package token

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/nodebird/internal/model"
)

const (
	testClientSecret      = "0b6d2f1e-5c3a-4d8e-9f10-3a2b1c0d9e8f"
	testOtherClientSecret = "7e1a9c4b-2d6f-4a0e-8b3c-5f9d1e2a7c60"
)

type mockOwnerFinder struct {
	findFn func(ctx context.Context, clientSecret uuid.UUID) (*model.DomainOwner, error)
	calls  int
}

func (m *mockOwnerFinder) FindOwnerByClientSecret(ctx context.Context, clientSecret uuid.UUID) (*model.DomainOwner, error) {
	m.calls++
	return m.findFn(ctx, clientSecret)
}

func registeredSecret(secret string, owner model.User) *mockOwnerFinder {
	registered := uuid.MustParse(secret)
	return &mockOwnerFinder{
		findFn: func(_ context.Context, s uuid.UUID) (*model.DomainOwner, error) {
			if s != registered {
				return nil, nil
			}
			return &model.DomainOwner{
				Domain: model.Domain{ID: 1, UserID: owner.ID, Host: "localhost:4000", ClientSecret: secret},
				Owner:  owner,
			}, nil
		},
	}
}

func TestIssuer_Issue_RegisteredSecret(t *testing.T) {
	signer := NewSigner(testSecret, "nodebird")
	issuer := NewIssuer(registeredSecret(testClientSecret, model.User{ID: 3, Nick: "zero"}), signer)

	raw, err := issuer.Issue(context.Background(), testClientSecret, 30*time.Minute)
	require.NoError(t, err)

	claims, err := signer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.UserID)
	assert.Equal(t, "zero", claims.Nick)
}

func TestIssuer_Issue_OtherSecretIsUnauthorized(t *testing.T) {
	issuer := NewIssuer(registeredSecret(testClientSecret, model.User{ID: 3}), NewSigner(testSecret, "nodebird"))

	_, err := issuer.Issue(context.Background(), testOtherClientSecret, time.Minute)

	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "err=%v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestIssuer_Issue_UppercaseSecretMatches(t *testing.T) {
	issuer := NewIssuer(registeredSecret(testClientSecret, model.User{ID: 3}), NewSigner(testSecret, "nodebird"))

	_, err := issuer.Issue(context.Background(), strings.ToUpper(testClientSecret), time.Minute)
	assert.NoError(t, err)
}

func TestIssuer_Issue_MalformedSecretSkipsLookup(t *testing.T) {
	for _, secret := range []string{"", "secret-1", testClientSecret + " ", testClientSecret[:35], "nope"} {
		finder := registeredSecret(testClientSecret, model.User{ID: 3})
		issuer := NewIssuer(finder, NewSigner(testSecret, "nodebird"))

		_, err := issuer.Issue(context.Background(), secret, time.Minute)

		var apiErr *model.APIError
		require.True(t, errors.As(err, &apiErr), "secret=%q err=%v", secret, err)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, 0, finder.calls, "secret=%q", secret)
	}
}

func TestIssuer_Issue_StorageFaultIsNotUnauthorized(t *testing.T) {
	dbErr := errors.New("connection refused")
	finder := &mockOwnerFinder{
		findFn: func(context.Context, uuid.UUID) (*model.DomainOwner, error) { return nil, dbErr },
	}
	issuer := NewIssuer(finder, NewSigner(testSecret, "nodebird"))

	_, err := issuer.Issue(context.Background(), testClientSecret, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)

	var apiErr *model.APIError
	assert.False(t, errors.As(err, &apiErr))
}
