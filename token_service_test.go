package iam_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	iam "github.com/goliatone/go-iam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenFixture(t *testing.T) (*iam.TokenService, *memoryStore, *iam.Account) {
	t.Helper()
	store := newMemoryStore()
	account := store.add(iam.AccountDraft{
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Role:     iam.RoleUser,
	})
	return iam.NewTokenService(testTokenConfig(), store, iam.WithTokenLogger(newCaptureLogger())), store, account
}

func requireReason(t *testing.T, err error, want iam.Reason) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, iam.IsAuthFailure(err), "expected authentication failure, got %v", err)
	reason, ok := iam.FailureReason(err)
	require.True(t, ok)
	assert.Equal(t, want, reason)
}

func TestTokenService_IssueTokenPair(t *testing.T) {
	ts, _, account := newTokenFixture(t)

	before := time.Now().Add(-time.Second)
	pair, err := ts.IssueTokenPair(context.Background(), account)
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, iam.TokenHolder{ID: account.ID, Name: "Ada", Email: "ada@example.com"}, pair.User)

	t.Run("access token claims", func(t *testing.T) {
		claims, err := ts.Validate(pair.AccessToken, iam.TokenUseAccess)
		require.NoError(t, err)

		assert.Equal(t, strconv.FormatInt(account.ID, 10), claims.Subject())
		assert.Equal(t, account.ID, claims.AccountID)
		assert.Equal(t, "ada@example.com", claims.Email)
		assert.Equal(t, iam.RoleUser, claims.Role())
		assert.Equal(t, iam.TokenUseAccess, claims.Use)
		assert.Equal(t, "iam-test-issuer", claims.Issuer)
		assert.Equal(t, jwt.ClaimStrings{"iam-tests"}, claims.Audience)
		assert.NotEmpty(t, claims.ID)

		assert.True(t, claims.IssuedAt().After(before))
		assert.WithinDuration(t, claims.IssuedAt().Add(time.Hour), claims.Expires(), time.Second)
	})

	t.Run("refresh token claims", func(t *testing.T) {
		claims, err := ts.Validate(pair.RefreshToken, iam.TokenUseRefresh)
		require.NoError(t, err)

		assert.Equal(t, strconv.FormatInt(account.ID, 10), claims.Subject())
		assert.Equal(t, iam.RoleUser, claims.Role())
		assert.Empty(t, claims.Email, "refresh tokens carry no email")
		assert.WithinDuration(t, claims.IssuedAt().Add(24*time.Hour), claims.Expires(), time.Second)
	})

	t.Run("nil account", func(t *testing.T) {
		_, err := ts.IssueTokenPair(context.Background(), nil)
		requireReason(t, err, iam.ReasonAccountNotFound)
	})
}

func TestTokenService_Validate(t *testing.T) {
	ts, store, account := newTokenFixture(t)

	pair, err := ts.IssueTokenPair(context.Background(), account)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.Secret = "another-secret-of-enough-length"
		other := iam.NewTokenService(cfg, store, iam.WithTokenLogger(newCaptureLogger()))

		_, err := other.Validate(pair.AccessToken, iam.TokenUseAccess)
		requireReason(t, err, iam.ReasonTokenInvalid)
	})

	t.Run("wrong audience", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.Audience = "someone-else"
		other := iam.NewTokenService(cfg, store, iam.WithTokenLogger(newCaptureLogger()))

		_, err := other.Validate(pair.AccessToken, iam.TokenUseAccess)
		requireReason(t, err, iam.ReasonTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.Issuer = "someone-else"
		other := iam.NewTokenService(cfg, store, iam.WithTokenLogger(newCaptureLogger()))

		_, err := other.Validate(pair.AccessToken, iam.TokenUseAccess)
		requireReason(t, err, iam.ReasonTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
		stale := iam.NewTokenService(testTokenConfig(), store,
			iam.WithTokenLogger(newCaptureLogger()),
			iam.WithTokenClock(past),
		)
		old, err := stale.IssueTokenPair(context.Background(), account)
		require.NoError(t, err)

		_, err = ts.Validate(old.AccessToken, iam.TokenUseAccess)
		requireReason(t, err, iam.ReasonTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ts.Validate("not-a-token", iam.TokenUseAccess)
		requireReason(t, err, iam.ReasonTokenInvalid)
	})

	t.Run("wrong use", func(t *testing.T) {
		_, err := ts.Validate(pair.RefreshToken, iam.TokenUseAccess)
		requireReason(t, err, iam.ReasonTokenInvalid)

		_, err = ts.Validate(pair.AccessToken, iam.TokenUseRefresh)
		requireReason(t, err, iam.ReasonTokenInvalid)
	})

	t.Run("other signing method", func(t *testing.T) {
		claims := &iam.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    "iam-test-issuer",
				Audience:  jwt.ClaimStrings{"iam-tests"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Use: iam.TokenUseAccess,
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = ts.Validate(raw, iam.TokenUseAccess)
		requireReason(t, err, iam.ReasonTokenInvalid)
	})
}

func TestTokenService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a new pair with the current role", func(t *testing.T) {
		ts, store, account := newTokenFixture(t)

		pair, err := ts.IssueTokenPair(ctx, account)
		require.NoError(t, err)

		store.set(account.ID, func(a *iam.Account) {
			a.Role = iam.RoleAdmin
			a.Email = "ada@new.example.com"
		})

		refreshed, err := ts.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		claims, err := ts.Validate(refreshed.AccessToken, iam.TokenUseAccess)
		require.NoError(t, err)
		assert.Equal(t, iam.RoleAdmin, claims.Role())
		assert.Equal(t, "ada@new.example.com", claims.Email)
		assert.Equal(t, "ada@new.example.com", refreshed.User.Email)
	})

	t.Run("rejects access tokens", func(t *testing.T) {
		ts, _, account := newTokenFixture(t)

		pair, err := ts.IssueTokenPair(ctx, account)
		require.NoError(t, err)

		refreshed, err := ts.Refresh(ctx, pair.AccessToken)
		requireReason(t, err, iam.ReasonTokenInvalid)
		assert.Nil(t, refreshed)
	})

	t.Run("unknown subject", func(t *testing.T) {
		ts, _, _ := newTokenFixture(t)

		ghost := &iam.Account{ID: 999, Email: "ghost@example.com", Role: iam.RoleUser}
		pair, err := ts.IssueTokenPair(ctx, ghost)
		require.NoError(t, err)

		refreshed, err := ts.Refresh(ctx, pair.RefreshToken)
		requireReason(t, err, iam.ReasonRefreshSubjectUnknown)
		assert.Nil(t, refreshed)
	})

	t.Run("banned account", func(t *testing.T) {
		ts, store, account := newTokenFixture(t)

		pair, err := ts.IssueTokenPair(ctx, account)
		require.NoError(t, err)

		store.set(account.ID, func(a *iam.Account) { a.Status = iam.StatusBanned })

		_, err = ts.Refresh(ctx, pair.RefreshToken)
		requireReason(t, err, iam.ReasonAccountBanned)
	})

	t.Run("records activity", func(t *testing.T) {
		store := newMemoryStore()
		account := store.add(iam.AccountDraft{Name: "Bo", Email: "bo@example.com"})

		var events []iam.ActivityEvent
		ts := iam.NewTokenService(testTokenConfig(), store,
			iam.WithTokenLogger(newCaptureLogger()),
			iam.WithTokenActivitySink(iam.ActivitySinkFunc(func(_ context.Context, e iam.ActivityEvent) error {
				events = append(events, e)
				return nil
			})),
		)

		pair, err := ts.IssueTokenPair(ctx, account)
		require.NoError(t, err)
		_, err = ts.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, iam.ActivityEventTokenRefresh, events[0].EventType)
		assert.Equal(t, account.ID, events[0].AccountID)
	})
}

func TestTokenServiceCopiesConfig(t *testing.T) {
	store := newMemoryStore()
	account := store.add(iam.AccountDraft{Name: "Cy", Email: "cy@example.com"})

	cfg := testTokenConfig()
	ts := iam.NewTokenService(cfg, store, iam.WithTokenLogger(newCaptureLogger()))
	cfg.Secret = "mutated-after-construction"

	pair, err := ts.IssueTokenPair(context.Background(), account)
	require.NoError(t, err)

	_, err = iam.NewTokenService(testTokenConfig(), store).Validate(pair.AccessToken, iam.TokenUseAccess)
	assert.NoError(t, err)
}

func TestTokenServiceAudience(t *testing.T) {
	store := newMemoryStore()
	account := store.add(iam.AccountDraft{Name: "Di", Email: "di@example.com"})

	t.Run("single audience claim", func(t *testing.T) {
		ts := iam.NewTokenService(testTokenConfig(), store, iam.WithTokenLogger(newCaptureLogger()))

		pair, err := ts.IssueTokenPair(context.Background(), account)
		require.NoError(t, err)

		claims, err := ts.Validate(pair.AccessToken, iam.TokenUseAccess)
		require.NoError(t, err)
		assert.Equal(t, jwt.ClaimStrings{"iam-tests"}, claims.RegisteredClaims.Audience)
	})

	t.Run("no audience configured", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.Audience = ""
		ts := iam.NewTokenService(cfg, store, iam.WithTokenLogger(newCaptureLogger()))

		pair, err := ts.IssueTokenPair(context.Background(), account)
		require.NoError(t, err)

		claims, err := ts.Validate(pair.RefreshToken, iam.TokenUseRefresh)
		require.NoError(t, err)
		assert.Empty(t, claims.RegisteredClaims.Audience)
	})
}
