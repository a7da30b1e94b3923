package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raktar-project/raktar/pkg/types"
)

type fakeLookup struct {
	tokens map[string]*types.Token
	err    error
}

func (f *fakeLookup) GetToken(ctx context.Context, raw []byte) (*types.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens[string(raw)], nil
}

func principalEcho(t *testing.T, captured *types.AuthenticatedUser) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := UserFromContext(r.Context()); ok {
			*captured = user
		}
		w.WriteHeader(http.StatusOK)
	})
}

// TestTokenAuthenticator tests credential lookup on the registry surface
func TestTokenAuthenticator(t *testing.T) {
	lookup := &fakeLookup{tokens: map[string]*types.Token{
		"valid-token": {TokenID: "id-1", Name: "ci", UserID: 7},
	}}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   uint32
	}{
		{name: "known token", header: "valid-token", wantStatus: http.StatusOK, wantUser: 7},
		{name: "unknown token", header: "bogus", wantStatus: http.StatusUnauthorized},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured types.AuthenticatedUser
			handler := TokenAuthenticator(lookup)(principalEcho(t, &captured))

			req := httptest.NewRequest(http.MethodGet, "/1/a", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantUser, captured.ID)
			}
		})
	}
}

// TestTokenAuthenticatorLookupFailure tests that a store failure is
// treated as unauthorized rather than leaking a 500
func TestTokenAuthenticatorLookupFailure(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("store down")}
	var captured types.AuthenticatedUser
	handler := TokenAuthenticator(lookup)(principalEcho(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/1/a", nil)
	req.Header.Set("Authorization", "valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func makeJWT(t *testing.T, payload string) string {
	t.Helper()
	enc := base64.RawURLEncoding.EncodeToString
	return enc([]byte(`{"alg":"RS256"}`)) + "." + enc([]byte(payload)) + "." + enc([]byte("sig"))
}

// TestUserIDFromJWT tests claim extraction from compact tokens
func TestUserIDFromJWT(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		wantID uint32
		wantOK bool
	}{
		{name: "valid claim", token: "", wantID: 7, wantOK: true},
		{name: "zero id rejected", token: "", wantOK: false},
		{name: "not a jwt", token: "just-a-string", wantOK: false},
		{name: "bad base64", token: "a.!!!.c", wantOK: false},
		{name: "empty", token: "", wantOK: false},
	}
	tests[0].token = makeJWT(t, `{"autogen_id":7}`)
	tests[1].token = makeJWT(t, `{"autogen_id":0}`)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := userIDFromJWT(tt.token)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}

// TestJWTAuthenticator tests the web surface gate
func TestJWTAuthenticator(t *testing.T) {
	var captured types.AuthenticatedUser
	handler := JWTAuthenticator(false)(principalEcho(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/v1/crates", nil)
	req.Header.Set("Authorization", "Bearer "+makeJWT(t, `{"autogen_id":9}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint32(9), captured.ID)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crates", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestJWTAuthenticatorAnonymous tests the development escape hatch
func TestJWTAuthenticatorAnonymous(t *testing.T) {
	var captured types.AuthenticatedUser
	handler := JWTAuthenticator(true)(principalEcho(t, &captured))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crates", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, captured.ID)
}
