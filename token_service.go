package iam

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TokenService issues and verifies access/refresh token pairs. It holds no
// per-request state.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	accounts   AccountFinder
	logger     Logger
	activity   ActivitySink
	now        func() time.Time
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithTokenClock injects a clock, used by tests to mint expired tokens.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenActivitySink sets the sink receiving refresh events
func WithTokenActivitySink(sink ActivitySink) TokenServiceOption {
	return func(ts *TokenService) {
		ts.activity = normalizeActivitySink(sink)
	}
}

// NewTokenService creates a TokenService. cfg is copied, later changes to the
// caller's value have no effect.
func NewTokenService(cfg TokenConfig, accounts AccountFinder, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey: []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		accounts:   accounts,
		activity:   noopActivitySink{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	ts.logger = normalizeLogger(ts.logger)

	return ts
}

// IssueTokenPair signs an access and a refresh token for account. The two
// signatures are computed concurrently.
func (ts *TokenService) IssueTokenPair(ctx context.Context, account *Account) (*TokenPair, error) {
	if account == nil {
		return nil, AuthFailure(ReasonAccountNotFound, nil)
	}

	now := ts.now()
	var accessToken, refreshToken string

	var g errgroup.Group
	g.Go(func() error {
		var err error
		accessToken, err = ts.SignClaims(ts.newClaims(account, TokenUseAccess, now))
		return err
	})
	g.Go(func() error {
		var err error
		refreshToken, err = ts.SignClaims(ts.newClaims(account, TokenUseRefresh, now))
		return err
	})

	if err := g.Wait(); err != nil {
		ts.logger.Error("token pair signing failed", "account_id", account.ID, "error", err)
		return nil, AuthFailure(ReasonTokenIssueFailed, err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: TokenHolder{
			ID:    account.ID,
			Name:  account.Name,
			Email: account.Email,
		},
	}, nil
}

func (ts *TokenService) newClaims(account *Account, use TokenUse, now time.Time) *JWTClaims {
	ttl := ts.accessTTL
	if use == TokenUseRefresh {
		ttl = ts.refreshTTL
	}

	var aud jwt.ClaimStrings
	if ts.audience != "" {
		aud = jwt.ClaimStrings{ts.audience}
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   strconv.FormatInt(account.ID, 10),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		AccountID: account.ID,
		UserRole:  account.Role,
		Use:       use,
	}

	if use == TokenUseAccess {
		claims.Email = account.Email
	}

	return claims
}

// SignClaims signs claims with the shared HS256 secret
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Validate verifies signature, issuer, audience, expiry and token use.
func (ts *TokenService) Validate(raw string, use TokenUse) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, ts.parserOptions()...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, AuthFailure(ReasonTokenExpired, err)
		}
		return nil, AuthFailure(ReasonTokenInvalid, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, AuthFailure(ReasonTokenInvalid, nil)
	}

	if claims.Use != use {
		return nil, AuthFailure(ReasonTokenInvalid, fmt.Errorf("token use %q, expected %q", claims.Use, use))
	}

	return claims, nil
}

func (ts *TokenService) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if ts.audience != "" {
		opts = append(opts, jwt.WithAudience(ts.audience))
	}
	return opts
}

// Refresh verifies a refresh token, reloads its account and issues a new pair
// carrying the account's current role and email.
func (ts *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := ts.Validate(refreshToken, TokenUseRefresh)
	if err != nil {
		ts.logger.Info("refresh token rejected", "error", err)
		return nil, err
	}

	sub, err := claims.SubjectID()
	if err != nil {
		ts.logger.Info("refresh token subject is not an account id", "sub", claims.Subject())
		return nil, AuthFailure(ReasonTokenInvalid, err)
	}

	account, err := ts.accounts.FindBySub(ctx, sub)
	if err != nil || account == nil {
		ts.logger.Warn("refresh token subject not resolvable", "sub", sub, "error", err)
		return nil, AuthFailure(ReasonRefreshSubjectUnknown, err)
	}

	if err := EnsureAccountActive(account); err != nil {
		ts.logger.Info("refresh blocked due to account status", "account_id", account.ID, "status", account.Status)
		return nil, err
	}

	pair, err := ts.IssueTokenPair(ctx, account)
	if err != nil {
		return nil, err
	}

	emitActivity(ctx, ts.activity, ts.logger, ActivityEvent{
		EventType: ActivityEventTokenRefresh,
		AccountID: account.ID,
	})

	return pair, nil
}

// EnsureAccountActive rejects banned and inactive accounts with an
// authentication failure. It is the status policy shared by every login path.
func EnsureAccountActive(account *Account) error {
	switch account.Status {
	case StatusBanned:
		return AuthFailure(ReasonAccountBanned, nil)
	case StatusInactive:
		return AuthFailure(ReasonAccountInactive, nil)
	default:
		return nil
	}
}
