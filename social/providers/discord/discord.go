package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-iam/social"
	"golang.org/x/oauth2"
)

const (
	providerName = "discord"

	defaultAuthURL  = "https://discord.com/api/oauth2/authorize"
	defaultTokenURL = "https://discord.com/api/oauth2/token"
	defaultUserURL  = "https://discord.com/api/users/@me"
)

// Config holds Discord OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	UserURL  string

	HTTPClient *http.Client
}

// DefaultScopes returns the scopes needed to read the user and its email.
func DefaultScopes() []string {
	return []string{"identify", "email"}
}

// Provider implements social.Provider for Discord.
type Provider struct {
	oauth      *oauth2.Config
	userURL    string
	httpClient *http.Client
}

var _ social.Provider = (*Provider)(nil)

// New creates a new Discord provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userURL:    cfg.UserURL,
		httpClient: client,
	}
}

// Name implements social.Provider.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL implements social.Provider.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange implements social.Provider.
func (p *Provider) Exchange(ctx context.Context, code string) (*social.ExternalProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, social.ProviderFailure(social.ErrTokenExchangeFailed, providerName, "exchange", 0, err)
	}

	user, err := p.fetchUser(ctx, token)
	if err != nil {
		return nil, err
	}

	return mapProfile(user), nil
}

func (p *Provider) fetchUser(ctx context.Context, token *oauth2.Token) (*discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, social.ProviderFailure(social.ErrUserInfoFailed, providerName, "user_info", 0, err)
	}
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, social.ProviderFailure(social.ErrUserInfoFailed, providerName, "user_info", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, social.ProviderFailure(social.ErrUserInfoFailed, providerName, "user_info", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, social.ProviderFailure(social.ErrUserInfoFailed, providerName, "user_info", resp.StatusCode,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var user discordUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, social.ProviderFailure(social.ErrUserInfoFailed, providerName, "user_info", resp.StatusCode, err)
	}

	return &user, nil
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
	Email         string `json:"email"`
	Verified      bool   `json:"verified"`
}

// Tag returns username#discriminator for legacy accounts and the bare
// username for accounts migrated to unique usernames.
func (u discordUser) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func mapProfile(u *discordUser) *social.ExternalProfile {
	return &social.ExternalProfile{
		Provider:      providerName,
		ExternalID:    u.ID,
		Username:      u.Tag(),
		Email:         u.Email,
		EmailVerified: u.Verified,
	}
}
