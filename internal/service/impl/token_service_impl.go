package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guardian/internal/authz"
	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/netutil"
	"guardian/internal/observability/metrics"
	"guardian/internal/observability/middleware"
	"guardian/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenConfig struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SigningKey []byte // HS256 secret
}

type TokenServiceImpl struct {
	cfg   TokenConfig
	store *store.Store
	now   func() time.Time
}

func NewTokenServiceHS256(cfg TokenConfig, st *store.Store) *TokenServiceImpl {
	return &TokenServiceImpl{cfg: cfg, store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Issue creates a Session row with a fresh RefreshID and returns access+refresh tokens.
func (t *TokenServiceImpl) Issue(ctx context.Context, acc *domain.Account, ip, ua string) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("issue", result).Inc()
	}()
	now := t.now()

	sess := &domain.Session{
		ID:        uuid.New(),
		AccountID: acc.ID,
		RefreshID: uuid.New(),
		ExpiresAt: now.Add(t.cfg.RefreshTTL),
		CreatedAt: now,
		IP:        normalizeIP(ip),
		UserAgent: netutil.TruncateUserAgent(ua),
	}
	if err := t.store.Sessions().Create(ctx, sess); err != nil {
		result = "failure"
		return nil, err
	}

	out, err := t.sign(acc.ID, acc.Role, sess, now)
	if err != nil {
		result = "failure"
		return nil, err
	}

	slog.Info("issued tokens", append(middleware.LogAttrs(ctx), "session_id", sess.ID, "account_id", acc.ID)...)
	return out, nil
}

// Refresh validates the refresh JWT, rotates the session's refresh id and
// returns a new pair. A refresh token can be used once.
func (t *TokenServiceImpl) Refresh(ctx context.Context, refreshToken string, ip, ua string) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", result).Inc()
	}()
	now := t.now()

	claims, err := t.parseRefresh(refreshToken)
	if err != nil {
		result = "failure"
		return nil, err
	}
	rid, err := uuid.Parse(claims.ID)
	if err != nil {
		result = "failure"
		return nil, fmt.Errorf("%w: bad jti", domain.ErrUnauthorized)
	}

	sess, err := t.store.Sessions().GetByRefreshID(ctx, rid)
	if err != nil {
		result = "failure"
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown session", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !sess.Active(now) {
		result = "failure"
		return nil, fmt.Errorf("%w: session expired or revoked", domain.ErrUnauthorized)
	}
	acc, err := t.store.Accounts().GetByID(ctx, sess.AccountID)
	if err != nil {
		result = "failure"
		return nil, fmt.Errorf("%w: account gone", domain.ErrUnauthorized)
	}
	if !acc.IsActive {
		result = "failure"
		return nil, domain.ErrAccountDisabled
	}

	newRID := uuid.New()
	newExp := now.Add(t.cfg.RefreshTTL)
	ip, ua = normalizeIP(ip), netutil.TruncateUserAgent(ua)
	ok, err := t.store.Sessions().Rotate(ctx, sess.ID, rid, newRID, newExp, ip, ua)
	if err != nil {
		result = "failure"
		return nil, err
	}
	if !ok {
		result = "failure"
		return nil, fmt.Errorf("%w: refresh token already used", domain.ErrUnauthorized)
	}
	sess.RefreshID = newRID
	sess.ExpiresAt = newExp

	out, err := t.sign(acc.ID, acc.Role, sess, now)
	if err != nil {
		result = "failure"
		return nil, err
	}

	slog.Info("refreshed tokens", append(middleware.LogAttrs(ctx), "session_id", sess.ID, "account_id", acc.ID)...)
	return out, nil
}

func (t *TokenServiceImpl) RevokeRefresh(ctx context.Context, accountID domain.AccountID, refreshToken string) error {
	claims, err := t.parseRefresh(refreshToken)
	if err != nil {
		return err
	}
	rid, err := uuid.Parse(claims.ID)
	if err != nil {
		return fmt.Errorf("%w: bad jti", domain.ErrUnauthorized)
	}
	sess, err := t.store.Sessions().GetByRefreshID(ctx, rid)
	if err != nil {
		return notFound(err, "session")
	}
	if sess.AccountID != accountID {
		return fmt.Errorf("%w: session belongs to another account", domain.ErrForbidden)
	}
	return t.RevokeSession(ctx, sess.ID)
}

func (t *TokenServiceImpl) RevokeSession(ctx context.Context, sessionID domain.SessionID) error {
	return t.store.Sessions().Revoke(ctx, sessionID, t.now())
}

func (t *TokenServiceImpl) sign(accountID domain.AccountID, role domain.Role, sess *domain.Session, now time.Time) (*dto.TokenResponse, error) {
	access := authz.AccessClaims{
		SID:   sess.ID.String(),
		Role:  role,
		Scope: authz.ScopeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   accountID.String(),
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	accessJWT, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(t.cfg.SigningKey)
	if err != nil {
		return nil, err
	}

	refresh := authz.RefreshClaims{
		SID:   sess.ID.String(),
		Scope: authz.ScopeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   accountID.String(),
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        sess.RefreshID.String(),
		},
	}
	refreshJWT, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(t.cfg.SigningKey)
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessJWT,
		RefreshToken: refreshJWT,
		ExpiresIn:    int64(t.cfg.AccessTTL.Seconds()),
	}, nil
}

func (t *TokenServiceImpl) parseRefresh(tokenStr string) (*authz.RefreshClaims, error) {
	claims := &authz.RefreshClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithAudience(t.cfg.Audience),
		jwt.WithTimeFunc(t.now),
	)
	if _, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Scope != authz.ScopeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", domain.ErrUnauthorized)
	}
	return claims, nil
}

func normalizeIP(ip string) string {
	if normalized, ok := netutil.NormalizeIP(ip); ok {
		return normalized
	}
	return ""
}
