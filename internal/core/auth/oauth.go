package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type ProviderUser struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*ProviderUser, error)
}

type OAuth2Provider struct {
	name        string
	cfg         *oauth2.Config
	userInfoURL string
}

type GoogleOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// 测试或私有部署时覆盖
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

func NewGoogleProvider(o GoogleOpts) *OAuth2Provider {
	ep := endpoints.Google
	if o.AuthURL != "" {
		ep.AuthURL = o.AuthURL
	}
	if o.TokenURL != "" {
		ep.TokenURL = o.TokenURL
	}
	ep.AuthStyle = oauth2.AuthStyleInParams
	info := o.UserInfoURL
	if info == "" {
		info = googleUserInfoURL
	}
	return &OAuth2Provider{
		name: ProviderGoogle,
		cfg: &oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			RedirectURL:  o.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: info,
	}
}

func (p *OAuth2Provider) Name() string { return p.name }

func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*ProviderUser, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("fetch userinfo: status %d: %s", res.StatusCode, b)
	}
	var u ProviderUser
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if u.Email == "" {
		return nil, fmt.Errorf("provider %s returned no email", p.name)
	}
	return &u, nil
}
