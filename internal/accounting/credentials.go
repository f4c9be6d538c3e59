package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Credentials is one consistent snapshot of the tokens and identifiers the
// accounting API needs.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	CompanyID    string
}

// CredentialProvider supplies and refreshes credentials. Implementations own
// any token state; the client never caches tokens itself.
type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
	Refresh(ctx context.Context) (Credentials, error)
}

// StaticProvider returns fixed credentials and refreshes to the same values.
// Useful for tests and short-lived batch runs.
type StaticProvider struct {
	Creds Credentials
}

func (p *StaticProvider) Credentials(context.Context) (Credentials, error) {
	return p.Creds, nil
}

func (p *StaticProvider) Refresh(context.Context) (Credentials, error) {
	return p.Creds, nil
}

// OAuthProvider exchanges the refresh token at the provider's token endpoint
// and keeps the rotated pair for subsequent calls.
type OAuthProvider struct {
	TokenURL string
	HTTP     *http.Client

	mu    sync.Mutex
	creds Credentials
}

func NewOAuthProvider(tokenURL string, initial Credentials, httpClient *http.Client) *OAuthProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthProvider{TokenURL: tokenURL, HTTP: httpClient, creds: initial}
}

func (p *OAuthProvider) Credentials(context.Context) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds, nil
}

// Refresh performs the refresh_token grant and rotates both tokens.
func (p *OAuthProvider) Refresh(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	current := p.creds
	p.mu.Unlock()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken},
		"client_id":     {current.ClientID},
		"client_secret": {current.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("token refresh: status %d", resp.StatusCode)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return Credentials{}, fmt.Errorf("token refresh: decode: %w", err)
	}

	p.mu.Lock()
	p.creds.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		p.creds.RefreshToken = tokens.RefreshToken
	}
	refreshed := p.creds
	p.mu.Unlock()
	return refreshed, nil
}
