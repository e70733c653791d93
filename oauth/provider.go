package oauth

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

// Config describes the client registration at the authorization server.
// Empty AuthURL and TokenURL select the LinkedIn endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	Prompt       string
}

// Provider renders authorize URLs for one client registration.
type Provider struct {
	config *oauth2.Config
	prompt string
}

// Callback is the query of a redirect back from the authorization server.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// NewProvider validates cfg.
func NewProvider(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oauth client id is required")
	}
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil || redirect.Scheme == "" || redirect.Host == "" {
		return nil, errors.New("oauth redirect url must be absolute")
	}

	endpoint := linkedin.Endpoint
	if cfg.AuthURL != "" || cfg.TokenURL != "" {
		if cfg.AuthURL == "" || cfg.TokenURL == "" {
			return nil, errors.New("oauth auth and token urls must be set together")
		}
		endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       append([]string(nil), cfg.Scopes...),
		},
		prompt: cfg.Prompt,
	}, nil
}

// AuthorizeURL returns the redirect target carrying state.
func (p *Provider) AuthorizeURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if p.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p.prompt))
	}
	return p.config.AuthCodeURL(state, opts...)
}

// OAuth2Config returns a copy of the underlying client configuration.
func (p *Provider) OAuth2Config() oauth2.Config {
	cfg := *p.config
	cfg.Scopes = append([]string(nil), p.config.Scopes...)
	return cfg
}

// ParseCallback extracts the standard callback parameters from query.
func ParseCallback(query url.Values) Callback {
	return Callback{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
}
