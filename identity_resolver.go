package iam

import "context"

// IdentityResolver turns verified claims into the stored account. It never
// fails the request, a failed lookup leaves the caller with claims only.
type IdentityResolver struct {
	accounts AccountFinder
	logger   Logger
}

// NewIdentityResolver creates a resolver backed by accounts
func NewIdentityResolver(accounts AccountFinder, logger Logger) *IdentityResolver {
	return &IdentityResolver{
		accounts: accounts,
		logger:   normalizeLogger(logger),
	}
}

// Resolve performs a single FindBySub read for claims and returns the
// sanitized account. ok is false when the subject cannot be resolved.
func (r *IdentityResolver) Resolve(ctx context.Context, claims *JWTClaims) (*AccountView, bool) {
	if claims == nil {
		return nil, false
	}

	sub, err := claims.SubjectID()
	if err != nil {
		r.logger.Warn("identity resolution skipped, subject is not an account id", "sub", claims.Subject())
		return nil, false
	}

	account, err := r.accounts.FindBySub(ctx, sub)
	if err != nil || account == nil {
		r.logger.Warn("identity resolution failed", "sub", sub, "error", err)
		return nil, false
	}

	return account.View(), true
}
