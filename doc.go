// Package iam provides the authentication and authorization core of the
// accounts backend: JWT access/refresh pair issuance, bearer verification,
// request scoped identity resolution, role guards and password login.
//
// Request identity:
//   - Bearer verification attaches the raw JWTClaims to the request under one
//     context key. IdentityResolver then loads the account for the claims
//     subject and attaches a secret-free AccountView under a second key. The
//     two layers are never merged, so "token valid but account missing" stays
//     observable to handlers.
//
// Failures:
//   - Every failure inside the login, refresh and social provisioning paths is
//     reported as ErrAuthenticationFailed (text code AUTHENTICATION_FAILED).
//     The internal cause travels in the error metadata under "reason" and is
//     only ever logged. Use FailureReason to inspect it.
//
// Activity sinks:
//   - ActivitySink receives login, refresh and social login events. Sinks run
//     best-effort (errors are logged) so they never block authentication.
package iam
