package social

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const fallbackDisplayName = "user"

// ExternalProfile is the identity asserted by a third party provider.
// EmailVerified reports whether the provider confirmed the address belongs to
// the user.
type ExternalProfile struct {
	Provider      string `json:"provider,omitempty"`
	ExternalID    string `json:"external_id,omitempty"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// Validate requires a well formed email
func (p ExternalProfile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
	)
}

// DisplayName is the provider username, or the local part of the email when
// the provider sent none. It is never empty.
func (p ExternalProfile) DisplayName() string {
	if name := strings.TrimSpace(p.Username); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(p.Email, "@"); strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}
	if id := strings.TrimSpace(p.ExternalID); id != "" && p.Provider != "" {
		return p.Provider + "-" + id
	}
	return fallbackDisplayName
}
