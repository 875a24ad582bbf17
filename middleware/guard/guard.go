// Package guard holds the fiber middleware that runs after jwtware: identity
// resolution and role checks.
package guard

import (
	"context"

	"github.com/gofiber/fiber/v2"
	iam "github.com/goliatone/go-iam"
	"github.com/goliatone/go-iam/middleware/jwtware"
)

// AccountLocalsKey is the fiber locals key holding the resolved account
const AccountLocalsKey = "account"

// Resolver loads the account behind verified claims
type Resolver interface {
	Resolve(ctx context.Context, claims *iam.JWTClaims) (*iam.AccountView, bool)
}

// ResolveIdentity attaches the stored account for the verified claims. A
// failed lookup does not fail the request, handlers then only see the
// claims.
func ResolveIdentity(resolver Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := jwtware.ClaimsFromLocals(c, jwtware.DefaultContextKey)
		if !ok {
			return c.Next()
		}

		account, ok := resolver.Resolve(c.UserContext(), claims)
		if ok {
			c.Locals(AccountLocalsKey, account)
			c.SetUserContext(iam.WithAccountContext(c.UserContext(), account))
		}

		return c.Next()
	}
}

// RequireRoles rejects requests whose claims hold none of roles. It reads
// the role from the raw claims and never touches storage. An empty roles
// list lets every request through.
func RequireRoles(roles ...iam.Role) fiber.Handler {
	required := append([]iam.Role(nil), roles...)

	return func(c *fiber.Ctx) error {
		var role iam.Role
		claims, present := jwtware.ClaimsFromLocals(c, jwtware.DefaultContextKey)
		if present {
			role = claims.Role()
		}

		if err := iam.CheckRoles(required, role, present).Err(); err != nil {
			return err
		}

		return c.Next()
	}
}

// AccountFromLocals returns the account attached by ResolveIdentity
func AccountFromLocals(c *fiber.Ctx) (*iam.AccountView, bool) {
	account, ok := c.Locals(AccountLocalsKey).(*iam.AccountView)
	return account, ok && account != nil
}
