package authz

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"guardian/internal/domain"
	obsmw "guardian/internal/observability/middleware"
)

type HMACValidator struct {
	secret   []byte
	issuer   string
	audience string
}

func NewHMACValidator(secret []byte, issuer, audience string) *HMACValidator {
	return &HMACValidator{secret: secret, issuer: issuer, audience: audience}
}

// ParseAccess validates an access token and returns its principal.
func (h *HMACValidator) ParseAccess(raw string) (Principal, error) {
	claims := &AccessClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithAudience(h.audience),
		jwt.WithExpirationRequired(),
	)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return h.secret, nil
	}); err != nil {
		return Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Scope != ScopeAccess {
		return Principal{}, fmt.Errorf("%w: wrong token scope %q", domain.ErrUnauthorized, claims.Scope)
	}
	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: bad subject", domain.ErrUnauthorized)
	}
	sid, err := uuid.Parse(claims.SID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: bad session id", domain.ErrUnauthorized)
	}
	return Principal{AccountID: sub, Role: claims.Role, SessionID: sid}, nil
}

func (h *HMACValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := obsmw.RequestIDFromContext(r.Context())
		traceID := obsmw.TraceIDFromContext(r.Context())

		raw := r.Header.Get("Authorization")
		if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
			slog.Warn("auth missing bearer", "request_id", reqID, "trace_id", traceID)
			deny(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		p, err := h.ParseAccess(strings.TrimSpace(raw[7:]))
		if err != nil {
			slog.Warn("auth invalid token", "error", err, "request_id", reqID, "trace_id", traceID)
			deny(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRole lets through only principals holding one of roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if !slices.Contains(roles, p.Role) {
				deny(w, http.StatusForbidden, "forbidden for role "+p.Role.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

var errNoPrincipal = errors.New("no principal in context")

// FromRequest is for handlers mounted behind Middleware.
func FromRequest(r *http.Request) (Principal, error) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		return Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, errNoPrincipal)
	}
	return p, nil
}
