package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

type GitHubProvider struct {
	config  *oauth2.Config
	timeout time.Duration

	// перекрываются в тестах
	userURL   string
	emailsURL string
}

func NewGitHubProvider(clientID, clientSecret, redirectURL string, timeout time.Duration) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		timeout:   timeout,
		userURL:   githubUserURL,
		emailsURL: githubEmailsURL,
	}
}

func (p *GitHubProvider) Name() string { return "github" }

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(withTimeout(ctx, p.timeout), code)
}

func (p *GitHubProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := p.config.Client(withTimeout(ctx, p.timeout), token)

	var raw struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(client, p.userURL, &raw); err != nil {
		return nil, fmt.Errorf("github user: %w", err)
	}
	if raw.ID == 0 {
		return nil, fmt.Errorf("github user: empty id")
	}

	name := raw.Name
	if name == "" {
		name = raw.Login
	}

	email := raw.Email
	if email == "" {
		// GitHub отдаёт пустой email, если он скрыт в профиле —
		// добираем отдельным запросом списка адресов.
		e, err := p.fetchPrimaryEmail(client)
		if err != nil {
			return nil, err
		}
		email = e
	}

	return &Profile{
		Provider:       p.Name(),
		ProviderUserID: strconv.FormatInt(raw.ID, 10),
		Name:           name,
		Email:          email,
		AvatarURL:      raw.AvatarURL,
	}, nil
}

func (p *GitHubProvider) fetchPrimaryEmail(client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(client, p.emailsURL, &emails); err != nil {
		return "", fmt.Errorf("github emails: %w", err)
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func getJSON(client *http.Client, url string, dst any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
