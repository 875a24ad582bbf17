package iam

import (
	"maps"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	TextCodeAccountExists        = "ACCOUNT_EXISTS"
	TextCodeInvalidConfig        = "INVALID_CONFIG"
)

// Reason is the internal cause carried inside authentication and
// authorization errors. It is logged, never sent to clients.
type Reason string

const (
	ReasonAccountNotFound       Reason = "account_not_found"
	ReasonWrongPassword         Reason = "wrong_password"
	ReasonAccountBanned         Reason = "account_banned"
	ReasonAccountInactive       Reason = "account_inactive"
	ReasonTokenInvalid          Reason = "token_invalid"
	ReasonTokenExpired          Reason = "token_expired"
	ReasonRefreshSubjectUnknown Reason = "refresh_subject_unknown"
	ReasonEmailRequired         Reason = "email_required"
	ReasonEmailUnverified       Reason = "email_unverified"
	ReasonInvalidProfile        Reason = "invalid_profile"
	ReasonLookupFailed          Reason = "lookup_failed"
	ReasonProvisioningFailed    Reason = "provisioning_failed"
	ReasonTokenIssueFailed      Reason = "token_issue_failed"

	ReasonNoIdentity   Reason = "no_identity"
	ReasonRoleMismatch Reason = "role_mismatch"
)

const metadataReason = "reason"

// ErrAuthenticationFailed is the single outward error for the login, refresh
// and social login paths. Use AuthFailure to build one with a reason.
var ErrAuthenticationFailed = goerrors.New("authentication failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the identity lacks a required role
var ErrForbidden = goerrors.New("forbidden", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrAccountNotFound is returned by account lookups that match nothing
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountExists is returned by AccountStore.Create on a duplicate email
var ErrAccountExists = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(goerrors.CodeConflict)

// AuthFailure builds an authentication failure for reason. cause may be nil.
func AuthFailure(reason Reason, cause error) *goerrors.Error {
	return classified(ErrAuthenticationFailed, cause, map[string]any{metadataReason: reason})
}

// Forbidden builds an authorization failure for reason.
func Forbidden(reason Reason, metadata map[string]any) *goerrors.Error {
	meta := map[string]any{metadataReason: reason}
	maps.Copy(meta, metadata)
	return classified(ErrForbidden, nil, meta)
}

// NewAccountNotFound builds a not found error with lookup metadata
func NewAccountNotFound(cause error, metadata map[string]any) *goerrors.Error {
	return classified(ErrAccountNotFound, cause, metadata)
}

// NewAccountExists builds a duplicate account error with metadata
func NewAccountExists(cause error, metadata map[string]any) *goerrors.Error {
	return classified(ErrAccountExists, cause, metadata)
}

func classified(base *goerrors.Error, cause error, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(base.Message, base.Category).
		WithTextCode(base.TextCode).
		WithCode(base.Code)
	if cause != nil {
		err.Source = cause
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// IsAuthFailure reports whether err is an authentication failure
func IsAuthFailure(err error) bool {
	return hasTextCode(err, TextCodeAuthenticationFailed)
}

// IsForbidden reports whether err is an authorization failure
func IsForbidden(err error) bool {
	return hasTextCode(err, TextCodeForbidden)
}

// IsAccountNotFound reports whether err means the account does not exist
func IsAccountNotFound(err error) bool {
	return hasTextCode(err, TextCodeAccountNotFound)
}

// IsAccountExists reports whether err is a duplicate email on create
func IsAccountExists(err error) bool {
	return hasTextCode(err, TextCodeAccountExists)
}

// FailureReason extracts the internal reason from an auth or authz error.
func FailureReason(err error) (Reason, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return "", false
	}
	reason, ok := richErr.Metadata[metadataReason].(Reason)
	return reason, ok
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
