package rpa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Authenticator hands out access tokens for the Remote Planning API.
type Authenticator interface {
	// Token returns the cached token, fetching one if none is cached.
	Token(ctx context.Context) (string, error)
	// ForceRefresh discards the cached token and fetches a new one. The
	// client never calls it on its own; it is for callers that learn the
	// cached token was revoked.
	ForceRefresh(ctx context.Context) (string, error)
}

type Credentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	PartnerID    string
}

// OAuthAuthenticator runs the OAuth2 client-credentials exchange. A token is
// considered valid for as long as it is cached; expiry is not tracked.
type OAuthAuthenticator struct {
	cfg        clientcredentials.Config
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

func NewOAuthAuthenticator(creds Credentials, httpClient *http.Client) *OAuthAuthenticator {
	params := url.Values{}
	if creds.PartnerID != "" {
		params.Set("partner_id", creds.PartnerID)
	}
	return &OAuthAuthenticator{
		cfg: clientcredentials.Config{
			ClientID:       creds.ClientID,
			ClientSecret:   creds.ClientSecret,
			TokenURL:       creds.TokenURL,
			EndpointParams: params,
			AuthStyle:      oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

func (a *OAuthAuthenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" {
		return a.token, nil
	}
	return a.fetchLocked(ctx)
}

func (a *OAuthAuthenticator) ForceRefresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	return a.fetchLocked(ctx)
}

func (a *OAuthAuthenticator) fetchLocked(ctx context.Context) (string, error) {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	tok, err := a.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("rpa token exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("rpa token exchange: empty access token")
	}
	a.token = tok.AccessToken
	return a.token, nil
}
