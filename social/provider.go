package social

import "context"

// Provider is an OAuth2 identity provider that yields an ExternalProfile.
type Provider interface {
	// Name returns the provider identifier, e.g. "discord".
	Name() string

	// AuthCodeURL returns the URL to redirect users to for authorization.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the user's profile.
	Exchange(ctx context.Context, code string) (*ExternalProfile, error)
}
