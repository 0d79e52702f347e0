package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrNoProfileEmail  = errors.New("provider returned no email")
)

// OAuthProfile is the part of a provider's user info we keep
type OAuthProfile struct {
	ProviderAccountID string
	Email             string
	Name              string
	Image             string
}

type OAuthProvider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	// EmailsURL is asked for the primary address when the profile hides it
	EmailsURL string
	Parse     func(body []byte) OAuthProfile
}

type OAuth struct {
	providers map[string]*OAuthProvider
}

// NewOAuth registers every provider that has a client id configured
func NewOAuth() *OAuth {
	o := &OAuth{providers: map[string]*OAuthProvider{}}
	redirect := func(name string) string {
		return fmt.Sprintf("%s/api/auth/oauth/%s/callback", baseURL(), name)
	}

	if id := viper.GetString("oauth.google.client_id"); id != "" {
		o.Register(&OAuthProvider{
			Name: "google",
			Config: &oauth2.Config{
				ClientID:     id,
				ClientSecret: viper.GetString("oauth.google.client_secret"),
				Endpoint:     endpoints.Google,
				RedirectURL:  redirect("google"),
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			Parse:       parseGoogleProfile,
		})
	}

	if id := viper.GetString("oauth.github.client_id"); id != "" {
		o.Register(&OAuthProvider{
			Name: "github",
			Config: &oauth2.Config{
				ClientID:     id,
				ClientSecret: viper.GetString("oauth.github.client_secret"),
				Endpoint:     endpoints.GitHub,
				RedirectURL:  redirect("github"),
				Scopes:       []string{"read:user", "user:email"},
			},
			UserInfoURL: "https://api.github.com/user",
			EmailsURL:   "https://api.github.com/user/emails",
			Parse:       parseGithubProfile,
		})
	}

	return o
}

func (o *OAuth) Register(p *OAuthProvider) {
	o.providers[p.Name] = p
}

func (o *OAuth) Provider(name string) (*OAuthProvider, error) {
	if o == nil {
		return nil, ErrUnknownProvider
	}

	p, ok := o.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}

	return p, nil
}

func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's profile
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code, %w", err)
	}

	client := p.Config.Client(ctx, token)

	body, err := getJSON(ctx, client, p.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile, %w", err)
	}

	profile := p.Parse(body)

	if profile.Email == "" && p.EmailsURL != "" {
		emails, err := getJSON(ctx, client, p.EmailsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch emails, %w", err)
		}

		primary := gjson.GetBytes(emails, "#(primary==true)")
		if primary.Get("verified").Bool() {
			profile.Email = primary.Get("email").String()
		}
	}

	if profile.Email == "" {
		return nil, ErrNoProfileEmail
	}

	if profile.ProviderAccountID == "" {
		return nil, errors.New("provider returned no account id")
	}

	return &profile, nil
}

func getJSON(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json response")
	}

	return body, nil
}

func parseGoogleProfile(body []byte) OAuthProfile {
	r := gjson.ParseBytes(body)

	p := OAuthProfile{
		ProviderAccountID: r.Get("sub").String(),
		Name:              r.Get("name").String(),
		Image:             r.Get("picture").String(),
	}

	// An unverified Google address can't be used to link accounts
	if r.Get("email_verified").Bool() {
		p.Email = r.Get("email").String()
	}

	return p
}

func parseGithubProfile(body []byte) OAuthProfile {
	r := gjson.ParseBytes(body)

	name := r.Get("name").String()
	if name == "" {
		name = r.Get("login").String()
	}

	return OAuthProfile{
		ProviderAccountID: r.Get("id").String(),
		Email:             r.Get("email").String(),
		Name:              name,
		Image:             r.Get("avatar_url").String(),
	}
}
