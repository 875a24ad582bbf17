package iam

import (
	"context"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// LoginRequest is the credential login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate only checks presence and shape
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshRequest is the token refresh payload
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// LoginService authenticates email and password credentials.
type LoginService struct {
	accounts AccountStore
	hasher   Hasher
	tokens   *TokenService
	logger   Logger
	activity ActivitySink

	decoyOnce   sync.Once
	decoyDigest string
}

// decoyPassword is hashed once to give unknown emails a digest to compare
// against.
const decoyPassword = "decoy-password-for-unknown-accounts"

// LoginServiceOption configures a LoginService
type LoginServiceOption func(*LoginService)

// WithLoginLogger sets the logger
func WithLoginLogger(logger Logger) LoginServiceOption {
	return func(s *LoginService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoginActivitySink sets the sink receiving login events
func WithLoginActivitySink(sink ActivitySink) LoginServiceOption {
	return func(s *LoginService) {
		s.activity = normalizeActivitySink(sink)
	}
}

// NewLoginService creates a LoginService
func NewLoginService(accounts AccountStore, hasher Hasher, tokens *TokenService, opts ...LoginServiceOption) *LoginService {
	s := &LoginService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		activity: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.logger = normalizeLogger(s.logger)

	return s
}

// Login verifies credentials and issues a token pair. Every failure is the
// same authentication failure to the caller, the reason is kept in the error
// metadata. A non empty clientIP is stored as the account's last login
// address, failing to store it does not fail the login.
func (s *LoginService) Login(ctx context.Context, req LoginRequest, clientIP string) (*TokenPair, error) {
	email := strings.TrimSpace(req.Email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil || account == nil {
		reason := ReasonAccountNotFound
		if err != nil && !IsAccountNotFound(err) {
			reason = ReasonLookupFailed
			s.logger.Error("login lookup failed", "error", err)
		}
		s.compareDecoy(ctx, req.Password)
		return nil, s.fail(ctx, 0, reason, err)
	}

	ok, err := s.hasher.Compare(ctx, req.Password, account.PasswordHash)
	if err != nil {
		s.logger.Error("password compare failed", "account_id", account.ID, "error", err)
		return nil, s.fail(ctx, account.ID, ReasonWrongPassword, err)
	}
	if !ok {
		return nil, s.fail(ctx, account.ID, ReasonWrongPassword, nil)
	}

	if err := EnsureAccountActive(account); err != nil {
		reason, _ := FailureReason(err)
		s.recordFailure(ctx, account.ID, reason)
		return nil, err
	}

	if clientIP != "" {
		s.recordClientIP(ctx, account, clientIP)
	}

	pair, err := s.tokens.IssueTokenPair(ctx, account)
	if err != nil {
		return nil, err
	}

	emitActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AccountID: account.ID,
		Metadata:  map[string]any{"ip": clientIP},
	})

	return pair, nil
}

// compareDecoy spends one hash comparison so a missing account takes as long
// to reject as a wrong password.
func (s *LoginService) compareDecoy(ctx context.Context, password string) {
	s.decoyOnce.Do(func() {
		digest, err := s.hasher.Hash(ctx, decoyPassword)
		if err != nil {
			s.logger.Warn("failed to hash decoy password", "error", err)
			return
		}
		s.decoyDigest = digest
	})

	if s.decoyDigest == "" {
		return
	}
	_, _ = s.hasher.Compare(ctx, password, s.decoyDigest)
}

func (s *LoginService) recordClientIP(ctx context.Context, account *Account, clientIP string) {
	updated, err := s.accounts.UpdateLastLoginIP(ctx, account.ID, clientIP)
	if err != nil {
		s.logger.Warn("failed to record last login ip", "account_id", account.ID, "error", err)
		return
	}

	if updated != nil {
		*account = *updated
	}

	emitActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLastIPUpdated,
		AccountID: account.ID,
		Metadata:  map[string]any{"ip": clientIP},
	})
}

func (s *LoginService) fail(ctx context.Context, accountID int64, reason Reason, cause error) error {
	s.recordFailure(ctx, accountID, reason)
	return AuthFailure(reason, cause)
}

func (s *LoginService) recordFailure(ctx context.Context, accountID int64, reason Reason) {
	s.logger.Info("login failed", "account_id", accountID, "reason", string(reason))
	emitActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		AccountID: accountID,
		Metadata:  map[string]any{"reason": string(reason)},
	})
}
