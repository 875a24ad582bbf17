package iam

import "context"

var claimsCtxKey = &contextKey{"claims"}
var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithClaimsContext stores the verified token claims in ctx
func WithClaimsContext(ctx context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext returns the raw claims layer, if any.
func ClaimsFromContext(ctx context.Context) (*JWTClaims, bool) {
	claims, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return claims, ok && claims != nil
}

// WithAccountContext stores the resolved account in ctx. It is kept apart
// from the claims so handlers can tell a resolved identity from a token that
// merely verified.
func WithAccountContext(ctx context.Context, account *AccountView) context.Context {
	return context.WithValue(ctx, accountCtxKey, account)
}

// AccountFromContext returns the resolved account layer, if any.
func AccountFromContext(ctx context.Context) (*AccountView, bool) {
	account, ok := ctx.Value(accountCtxKey).(*AccountView)
	return account, ok && account != nil
}
