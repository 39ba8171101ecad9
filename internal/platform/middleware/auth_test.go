package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func serve(h http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	var gotSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = GetSubject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		h := RequireAuth(stubValidator{}, discard)(next)
		w := serve(h, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Missing or invalid Authorization header")
	})

	t.Run("invalid token", func(t *testing.T) {
		h := RequireAuth(stubValidator{err: errors.New("bad")}, discard)(next)
		w := serve(h, "Authorization", "Bearer nope")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token with scope", func(t *testing.T) {
		v := stubValidator{claims: &JWTClaims{Subject: "ops", Scopes: []string{"sync:admin"}}}
		h := RequireAuth(v, discard)(RequireScope("sync:admin", discard)(next))
		w := serve(h, "Authorization", "Bearer ok")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "ops", gotSubject)
	})

	t.Run("valid token without scope", func(t *testing.T) {
		v := stubValidator{claims: &JWTClaims{Subject: "ops"}}
		h := RequireAuth(v, discard)(RequireScope("sync:admin", discard)(next))
		w := serve(h, "Authorization", "Bearer ok")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRequireAdminToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(RequireAdminToken("secret", discard)(next), "X-Admin-Token", "secret").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(RequireAdminToken("secret", discard)(next), "X-Admin-Token", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(RequireAdminToken("", discard)(next), "X-Admin-Token", "").Code)
}
