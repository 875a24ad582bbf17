package iam

// Decision is the outcome of a role check
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err returns nil for an allowed decision and a forbidden error otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return Forbidden(d.Reason, nil)
}

// CheckRoles decides whether an identity holding role may reach a route that
// requires any of required. present is false when the request carries no
// identity at all.
func CheckRoles(required []Role, role Role, present bool) Decision {
	if len(required) == 0 {
		return Decision{Allowed: true}
	}

	if !present {
		return Decision{Reason: ReasonNoIdentity}
	}

	for _, r := range required {
		if r == role {
			return Decision{Allowed: true}
		}
	}

	return Decision{Reason: ReasonRoleMismatch}
}

// RequireRole returns an error unless claims hold one of roles.
func RequireRole(claims *JWTClaims, roles ...Role) error {
	if claims == nil {
		return CheckRoles(roles, "", false).Err()
	}
	if d := CheckRoles(roles, claims.Role(), true); !d.Allowed {
		return Forbidden(d.Reason, map[string]any{"role": string(claims.Role())})
	}
	return nil
}
