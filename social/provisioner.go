package social

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	iam "github.com/goliatone/go-iam"
	"github.com/goliatone/go-iam/notify"
)

const (
	generatedPasswordBytes = 16

	NotificationWelcome = "welcome"
)

// TokenIssuer signs token pairs for an account
type TokenIssuer interface {
	IssueTokenPair(ctx context.Context, account *iam.Account) (*iam.TokenPair, error)
}

// Notifier hands a message off for delivery without waiting for it.
type Notifier interface {
	Dispatch(msg notify.Message) bool
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(msg notify.Message) bool

// Dispatch implements Notifier
func (f NotifierFunc) Dispatch(msg notify.Message) bool {
	return f(msg)
}

// PasswordGenerator returns the plaintext password given to provisioned
// accounts.
type PasswordGenerator func() (string, error)

// RandomPassword returns 16 random bytes, hex encoded
func RandomPassword() (string, error) {
	buf := make([]byte, generatedPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Provisioner logs in users asserted by an external provider, creating their
// account on first sight.
type Provisioner struct {
	accounts  iam.AccountStore
	hasher    iam.Hasher
	tokens    TokenIssuer
	notifier  Notifier
	passwords PasswordGenerator
	logger    iam.Logger
	activity  iam.ActivitySink

	requireVerified bool
}

// ProvisionerOption configures a Provisioner
type ProvisionerOption func(*Provisioner)

// WithLogger sets the logger
func WithLogger(logger iam.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithNotifier sets the welcome notification target
func WithNotifier(n Notifier) ProvisionerOption {
	return func(p *Provisioner) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithPasswordGenerator overrides RandomPassword
func WithPasswordGenerator(gen PasswordGenerator) ProvisionerOption {
	return func(p *Provisioner) {
		if gen != nil {
			p.passwords = gen
		}
	}
}

// WithActivitySink sets the sink receiving social login events
func WithActivitySink(sink iam.ActivitySink) ProvisionerOption {
	return func(p *Provisioner) {
		p.activity = sink
	}
}

// WithRequireVerifiedEmail controls whether profiles whose provider did not
// verify the email are rejected. It is on by default, turning it off lets an
// unverified address log into the local account holding that email.
func WithRequireVerifiedEmail(required bool) ProvisionerOption {
	return func(p *Provisioner) {
		p.requireVerified = required
	}
}

// NewProvisioner creates a Provisioner
func NewProvisioner(accounts iam.AccountStore, hasher iam.Hasher, tokens TokenIssuer, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tokens,
		notifier:  NotifierFunc(func(notify.Message) bool { return false }),
		passwords: RandomPassword,

		requireVerified: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.logger == nil {
		p.logger = iam.DefaultLogger()
	}

	return p
}

// HandleSocialLogin issues a token pair for the account matching
// profile.Email, creating the account if there is none. Creation sends a
// welcome notification with the generated password. When two first logins
// race for the same email the loser picks up the account the winner created.
func (p *Provisioner) HandleSocialLogin(ctx context.Context, profile ExternalProfile) (*iam.TokenPair, error) {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		p.logger.Info("social login rejected, provider sent no email", "provider", profile.Provider, "external_id", profile.ExternalID)
		return nil, iam.AuthFailure(iam.ReasonEmailRequired, nil)
	}
	profile.Email = email

	if err := profile.Validate(); err != nil {
		p.logger.Info("social login rejected, invalid profile", "provider", profile.Provider, "external_id", profile.ExternalID, "error", err)
		return nil, iam.AuthFailure(iam.ReasonInvalidProfile, err)
	}

	if p.requireVerified && !profile.EmailVerified {
		p.logger.Info("social login rejected, email not verified by provider", "provider", profile.Provider, "external_id", profile.ExternalID)
		return nil, iam.AuthFailure(iam.ReasonEmailUnverified, nil)
	}

	account, err := p.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil && account != nil:
		return p.login(ctx, account, iam.ActivityEventSocialLogin, profile)
	case err != nil && !iam.IsAccountNotFound(err):
		p.logger.Error("social login lookup failed", "email", email, "error", err)
		return nil, iam.AuthFailure(iam.ReasonLookupFailed, err)
	}

	account, err = p.provision(ctx, profile)
	if err != nil {
		return nil, err
	}

	return p.login(ctx, account, iam.ActivityEventSocialSignup, profile)
}

func (p *Provisioner) provision(ctx context.Context, profile ExternalProfile) (*iam.Account, error) {
	password, err := p.passwords()
	if err != nil {
		p.logger.Error("failed to generate password", "error", err)
		return nil, iam.AuthFailure(iam.ReasonProvisioningFailed, err)
	}

	digest, err := p.hasher.Hash(ctx, password)
	if err != nil {
		p.logger.Error("failed to hash generated password", "error", err)
		return nil, iam.AuthFailure(iam.ReasonProvisioningFailed, err)
	}

	name := profile.DisplayName()
	draft := iam.AccountDraft{
		Name:             name,
		Username:         name,
		Email:            profile.Email,
		PasswordHash:     digest,
		Role:             iam.RoleUser,
		Status:           iam.StatusActive,
		ExternalID:       profile.ExternalID,
		ExternalUsername: profile.Username,
	}

	created := true
	if _, err := p.accounts.Create(ctx, draft); err != nil {
		if !iam.IsAccountExists(err) {
			p.logger.Error("failed to create account", "email", profile.Email, "error", err)
			return nil, iam.AuthFailure(iam.ReasonProvisioningFailed, err)
		}
		p.logger.Info("account created concurrently, using existing record", "email", profile.Email)
		created = false
	}

	// Read back what storage holds, defaults included.
	account, err := p.accounts.FindByEmail(ctx, profile.Email)
	if err != nil || account == nil {
		p.logger.Error("provisioned account not readable", "email", profile.Email, "error", err)
		return nil, iam.AuthFailure(iam.ReasonProvisioningFailed, err)
	}

	if created {
		p.sendWelcome(account, password)
	}

	return account, nil
}

func (p *Provisioner) login(ctx context.Context, account *iam.Account, event iam.ActivityEventType, profile ExternalProfile) (*iam.TokenPair, error) {
	if err := iam.EnsureAccountActive(account); err != nil {
		p.logger.Info("social login blocked due to account status", "account_id", account.ID, "status", account.Status)
		return nil, err
	}

	pair, err := p.tokens.IssueTokenPair(ctx, account)
	if err != nil {
		return nil, err
	}

	iam.EmitActivity(ctx, p.activity, p.logger, iam.ActivityEvent{
		EventType: event,
		AccountID: account.ID,
		Metadata: map[string]any{
			"provider":    profile.Provider,
			"external_id": profile.ExternalID,
		},
	})

	return pair, nil
}

func (p *Provisioner) sendWelcome(account *iam.Account, password string) {
	msg := notify.Message{
		Kind:    NotificationWelcome,
		To:      account.Email,
		Subject: "Welcome",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour account has been created.\nYou can also sign in with your email and this password: %s\n",
			account.Name, password,
		),
		Data: map[string]string{"name": account.Name},
	}

	if !p.notifier.Dispatch(msg) {
		p.logger.Warn("welcome notification not queued", "account_id", account.ID)
	}
}
