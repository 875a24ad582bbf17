package api

import (
	"github.com/gofiber/fiber/v2"
	iam "github.com/goliatone/go-iam"
	"github.com/goliatone/go-iam/middleware/guard"
	"github.com/goliatone/go-iam/middleware/jwtware"
)

// AuthType is how a route authenticates its caller
type AuthType int

const (
	// AuthNone routes are public
	AuthNone AuthType = iota
	// AuthBearer routes need a valid access token
	AuthBearer
)

// RouteAuth annotates a route with its authentication and the roles it
// requires. An empty Roles list admits any authenticated caller.
type RouteAuth struct {
	Type  AuthType
	Roles []iam.Role
}

// Route is a single declared endpoint
type Route struct {
	Name    string
	Method  string
	Path    string
	Auth    RouteAuth
	Handler fiber.Handler
}

// Public is the annotation for unauthenticated routes
func Public() RouteAuth {
	return RouteAuth{Type: AuthNone}
}

// Bearer is the annotation for routes that need a token and optionally one
// of roles.
func Bearer(roles ...iam.Role) RouteAuth {
	return RouteAuth{Type: AuthBearer, Roles: roles}
}

// Register mounts routes on router, putting the bearer chain in front of
// every AuthBearer route: token verification, identity resolution, then the
// role check.
func (s *Server) Register(router fiber.Router, routes []Route) {
	bearer := jwtware.New(jwtware.Config{
		TokenValidator: s.tokens,
		Logger:         s.logger,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if iam.IsAuthFailure(err) {
				return err
			}
			return iam.AuthFailure(iam.ReasonTokenInvalid, err)
		},
	})
	resolve := guard.ResolveIdentity(s.resolver)

	for _, route := range routes {
		handlers := make([]fiber.Handler, 0, 4)

		switch route.Auth.Type {
		case AuthBearer:
			handlers = append(handlers, bearer, resolve, guard.RequireRoles(route.Auth.Roles...))
		default:
			if len(route.Auth.Roles) > 0 {
				s.logger.Warn("roles ignored on public route", "route", route.Name, "path", route.Path)
			}
		}

		handlers = append(handlers, route.Handler)
		router.Add(route.Method, route.Path, handlers...)

		s.logger.Debug("route registered", "route", route.Name, "method", route.Method, "path", route.Path)
	}
}

// Routes returns the endpoints of the service. The Discord routes are only
// present when a provider is configured, the user write routes only with an
// account manager.
func (s *Server) Routes() []Route {
	routes := []Route{
		{Name: "auth.login", Method: fiber.MethodPost, Path: "/auth/login", Auth: Public(), Handler: s.Login},
		{Name: "auth.refresh", Method: fiber.MethodPost, Path: "/auth/refresh", Auth: Public(), Handler: s.Refresh},
	}

	if s.provider != nil {
		routes = append(routes,
			Route{Name: "auth.discord", Method: fiber.MethodGet, Path: "/auth/discord", Auth: Public(), Handler: s.SocialBegin},
			Route{Name: "auth.discord.callback", Method: fiber.MethodGet, Path: "/auth/discord/callback", Auth: Public(), Handler: s.SocialCallback},
		)
	}

	// admin/stats must come before :userId
	routes = append(routes,
		Route{Name: "users.me", Method: fiber.MethodGet, Path: "/users/me", Auth: Bearer(), Handler: s.Me},
		Route{Name: "users.stats", Method: fiber.MethodGet, Path: "/users/admin/stats", Auth: Bearer(iam.RoleAdmin), Handler: s.Stats},
		Route{Name: "users.list", Method: fiber.MethodGet, Path: "/users", Auth: Bearer(iam.RoleAdmin), Handler: s.ListUsers},
		Route{Name: "users.get", Method: fiber.MethodGet, Path: "/users/:userId", Auth: Bearer(iam.RoleAdmin), Handler: s.GetUser},
		Route{Name: "users.profile", Method: fiber.MethodGet, Path: "/users/:userId/profile", Auth: Bearer(iam.RoleAdmin), Handler: s.GetUserProfile},
	)

	if s.manager != nil {
		routes = append(routes,
			Route{Name: "users.profile.update", Method: fiber.MethodPut, Path: "/users/:userId/profile", Auth: Bearer(iam.RoleAdmin), Handler: s.UpdateUserProfile},
			Route{Name: "users.update", Method: fiber.MethodPut, Path: "/users/:userId", Auth: Bearer(iam.RoleAdmin), Handler: s.UpdateUser},
			Route{Name: "users.delete", Method: fiber.MethodDelete, Path: "/users/:userId", Auth: Bearer(iam.RoleAdmin), Handler: s.DeleteUser},
		)
	}

	return routes
}
