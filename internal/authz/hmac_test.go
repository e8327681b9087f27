package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/domain"
)

var testSecret = []byte("test-signing-key")

func sign(t *testing.T, secret []byte, mutate func(*AccessClaims)) string {
	t.Helper()
	now := time.Now()
	c := AccessClaims{
		SID:   uuid.NewString(),
		Role:  domain.RoleParent,
		Scope: ScopeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "iss",
			Subject:   uuid.NewString(),
			Audience:  jwt.ClaimStrings{"aud"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	if mutate != nil {
		mutate(&c)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	v := NewHMACValidator(testSecret, "iss", "aud")
	var got Principal
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := FromRequest(r)
		require.NoError(t, err)
		got = p
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, testSecret, nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RoleParent, got.Role)
	assert.NotEqual(t, uuid.Nil, got.AccountID)
}

func TestMiddlewareRejects(t *testing.T) {
	v := NewHMACValidator(testSecret, "iss", "aud")
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"wrong secret": "Bearer " + sign(t, []byte("other"), nil),
		"expired": "Bearer " + sign(t, testSecret, func(c *AccessClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		}),
		"wrong audience": "Bearer " + sign(t, testSecret, func(c *AccessClaims) { c.Audience = jwt.ClaimStrings{"x"} }),
		"refresh scope":  "Bearer " + sign(t, testSecret, func(c *AccessClaims) { c.Scope = ScopeRefresh }),
		"bad subject":    "Bearer " + sign(t, testSecret, func(c *AccessClaims) { c.Subject = "nope" }),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(domain.RoleChild)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithPrincipal(req.Context(), Principal{Role: domain.RoleParent})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithPrincipal(req.Context(), Principal{Role: domain.RoleChild})))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
