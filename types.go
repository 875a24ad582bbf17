package iam

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the structured logger used across the package. Arguments are
// alternating key/value pairs, *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultLogger returns the JSON logger used when callers do not provide one.
func DefaultLogger() Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("module", "iam")
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return DefaultLogger()
	}
	return l
}

// Hasher hashes and compares credentials. Implementations are swappable
// without touching the login or provisioning flows.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Compare(ctx context.Context, plaintext, digest string) (bool, error)
}

// AccountFinder is the read side of the account store used by token refresh
// and identity resolution.
type AccountFinder interface {
	FindBySub(ctx context.Context, sub int64) (*Account, error)
}

// AccountStore is the persistence contract consumed by the core. Lookups that
// do not match return an error for which IsAccountNotFound is true. Create
// returns an error for which IsAccountExists is true when the email is taken.
type AccountStore interface {
	AccountFinder
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, draft AccountDraft) (*Account, error)
	UpdateLastLoginIP(ctx context.Context, id int64, ip string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
}

// AccountManager is the admin write side of the account store. Both methods
// return an error for which IsAccountNotFound is true when id matches
// nothing, and Update reports a taken email through IsAccountExists.
type AccountManager interface {
	Update(ctx context.Context, id int64, patch AccountPatch) (*Account, error)
	Delete(ctx context.Context, id int64) error
}
