// Package api exposes the login, token refresh, social login and user
// endpoints over fiber.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	iam "github.com/goliatone/go-iam"
	"github.com/goliatone/go-iam/middleware/guard"
	"github.com/goliatone/go-iam/middleware/jwtware"
	"github.com/goliatone/go-iam/repository"
	"github.com/goliatone/go-iam/social"
)

const stateCookieName = "iam_oauth_state"

// StatsSource reports account totals
type StatsSource interface {
	Stats(ctx context.Context) (*repository.Stats, error)
}

// Services are the collaborators the handlers call into. Provider and
// States may be nil when social login is disabled. Without Manager the user
// update and delete routes are not mounted.
type Services struct {
	Login       *iam.LoginService
	Tokens      *iam.TokenService
	Resolver    *iam.IdentityResolver
	Provisioner *social.Provisioner
	Provider    social.Provider
	States      *social.StateSigner
	Accounts    iam.AccountStore
	Manager     iam.AccountManager
	Stats       StatsSource
	Logger      iam.Logger
}

// Server holds the HTTP handlers
type Server struct {
	login       *iam.LoginService
	tokens      *iam.TokenService
	resolver    *iam.IdentityResolver
	provisioner *social.Provisioner
	provider    social.Provider
	states      *social.StateSigner
	accounts    iam.AccountStore
	manager     iam.AccountManager
	stats       StatsSource
	logger      iam.Logger
}

// NewServer creates a Server
func NewServer(svc Services) *Server {
	logger := svc.Logger
	if logger == nil {
		logger = iam.DefaultLogger()
	}

	s := &Server{
		login:       svc.Login,
		tokens:      svc.Tokens,
		resolver:    svc.Resolver,
		provisioner: svc.Provisioner,
		provider:    svc.Provider,
		states:      svc.States,
		accounts:    svc.Accounts,
		manager:     svc.Manager,
		stats:       svc.Stats,
		logger:      logger,
	}

	if s.provider != nil && (s.states == nil || s.provisioner == nil) {
		logger.Warn("social provider configured without state signer or provisioner, disabling it")
		s.provider = nil
	}

	return s
}

// NewApp returns a fiber app with the error handler and every route mounted.
func (s *Server) NewApp(cfg iam.ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "iam",
		ErrorHandler:          ErrorHandler(s.logger),
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})

	s.Register(app, s.Routes())

	return app
}

// Login handles POST /auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req iam.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body", err)
	}

	if err := req.Validate(); err != nil {
		return badRequest("invalid login payload", err)
	}

	pair, err := s.login.Login(c.UserContext(), req, clientIPFromFiber(c))
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

// Refresh handles POST /auth/refresh
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req iam.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body", err)
	}

	if err := req.Validate(); err != nil {
		return badRequest("invalid refresh payload", err)
	}

	pair, err := s.tokens.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

// SocialBegin handles GET /auth/discord
func (s *Server) SocialBegin(c *fiber.Ctx) error {
	state, issued, err := s.states.Issue(s.provider.Name())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue oauth state")
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Expires:  time.Unix(issued.ExpiresAt, 0),
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Redirect(s.provider.AuthCodeURL(state), fiber.StatusFound)
}

// SocialCallback handles GET /auth/discord/callback
func (s *Server) SocialCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookieName) {
		return social.ErrInvalidState
	}
	c.ClearCookie(stateCookieName)

	if _, err := s.states.Verify(state); err != nil {
		return err
	}

	code := c.Query("code")
	if code == "" {
		return badRequest("missing authorization code", nil)
	}

	profile, err := s.provider.Exchange(c.UserContext(), code)
	if err != nil {
		return err
	}

	pair, err := s.provisioner.HandleSocialLogin(c.UserContext(), *profile)
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

// Me handles GET /users/me
func (s *Server) Me(c *fiber.Ctx) error {
	account, ok := guard.AccountFromLocals(c)
	if !ok {
		return iam.NewAccountNotFound(nil, map[string]any{"route": "users.me"})
	}
	return c.JSON(account)
}

// ListUsers handles GET /users
func (s *Server) ListUsers(c *fiber.Ctx) error {
	accounts, err := s.accounts.List(c.UserContext())
	if err != nil {
		return err
	}

	views := make([]*iam.AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, account.View())
	}

	return c.JSON(views)
}

// GetUser handles GET /users/:userId
func (s *Server) GetUser(c *fiber.Ctx) error {
	account, err := s.accounts.FindByID(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(account.View())
}

// AdminStats is the admin dashboard summary
type AdminStats struct {
	TotalUsers   int    `json:"totalUsers"`
	ActiveUsers  int    `json:"activeUsers"`
	AdminUsers   int    `json:"adminUsers"`
	CurrentAdmin string `json:"currentAdmin"`
}

// Stats handles GET /users/admin/stats
func (s *Server) Stats(c *fiber.Ctx) error {
	if s.stats == nil {
		return fiber.NewError(http.StatusNotImplemented, "stats not available")
	}

	stats, err := s.stats.Stats(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(AdminStats{
		TotalUsers:   stats.Total,
		ActiveUsers:  stats.ByStatus[iam.StatusActive],
		AdminUsers:   stats.ByRole[iam.RoleAdmin],
		CurrentAdmin: callerEmail(c),
	})
}

// UserEnvelope wraps a single user the way the profile endpoint returns it
type UserEnvelope struct {
	User   *iam.AccountView `json:"user"`
	Status int              `json:"status"`
}

// UpdateResponse is returned by the user update endpoints
type UpdateResponse struct {
	Message string           `json:"message"`
	Status  int              `json:"status"`
	User    *iam.AccountView `json:"user"`
}

// ProfileRequest is the body of PUT /users/:userId/profile
type ProfileRequest struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// GetUserProfile handles GET /users/:userId/profile
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	account, err := s.accounts.FindByID(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(UserEnvelope{User: account.View(), Status: http.StatusOK})
}

// UpdateUserProfile handles PUT /users/:userId/profile. Only name, username
// and email can change here.
func (s *Server) UpdateUserProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body", err)
	}

	return s.applyPatch(c, iam.AccountPatch{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
	})
}

// UpdateUser handles PUT /users/:userId, including role and status changes.
// A new role shows up in the user's tokens on their next refresh.
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	var patch iam.AccountPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest("invalid request body", err)
	}
	return s.applyPatch(c, patch)
}

// DeleteUser handles DELETE /users/:userId
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	if err := s.manager.Delete(c.UserContext(), id); err != nil {
		return err
	}

	s.logger.Info("account deleted", "account_id", id, "by", callerEmail(c))
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) applyPatch(c *fiber.Ctx, patch iam.AccountPatch) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	if patch.IsEmpty() {
		return badRequest("nothing to update", nil)
	}
	if err := patch.Validate(); err != nil {
		return badRequest("invalid user payload", err)
	}

	account, err := s.manager.Update(c.UserContext(), id, patch)
	if err != nil {
		return err
	}

	s.logger.Info("account updated", "account_id", id, "by", callerEmail(c))

	return c.JSON(UpdateResponse{
		Message: "User updated successfully",
		Status:  http.StatusOK,
		User:    account.View(),
	})
}

func userIDParam(c *fiber.Ctx) (int64, error) {
	raw := c.Params("userId")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, iam.NewAccountNotFound(err, map[string]any{"id": raw})
	}
	return id, nil
}

// callerEmail prefers the resolved account and falls back to the token
func callerEmail(c *fiber.Ctx) string {
	if account, ok := guard.AccountFromLocals(c); ok {
		return account.Email
	}
	if claims, ok := jwtware.ClaimsFromLocals(c, jwtware.DefaultContextKey); ok {
		return claims.Email
	}
	return ""
}

func badRequest(message string, cause error) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode("BAD_REQUEST").
		WithCode(goerrors.CodeBadRequest)

	if cause == nil {
		return err
	}
	err.Source = cause

	if verrs, ok := cause.(validation.Errors); ok {
		fields := make(map[string]string, len(verrs))
		for field, fieldErr := range verrs {
			fields[field] = fieldErr.Error()
		}
		err = err.WithMetadata(map[string]any{"fields": fields})
	}

	return err
}
