// Package auth performs the Discord OAuth2 authorization-code exchange.
//
// The frontend (a Discord embedded app) obtains a short-lived authorization
// code from the Discord client and posts it here. The server trades it for an
// access token using the client secret, which never leaves the server.
//
// OAUTH 2.0 AUTHORIZATION CODE EXCHANGE:
//  1. Frontend asks Discord for a code (client side, not our concern)
//  2. Frontend POSTs the code to /api/token
//  3. We POST client_id, client_secret, grant_type=authorization_code and the
//     code to Discord's token endpoint (server-to-server)
//  4. We hand the access token back to the frontend
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is Discord's OAuth2 token endpoint.
const DefaultTokenURL = "https://discord.com/api/oauth2/token"

// ErrMissingCredentials is returned by NewDiscordProvider when the client id
// or secret is empty.
var ErrMissingCredentials = errors.New("auth: discord client id and secret are required")

// Token is the part of Discord's token response the frontend needs.
type Token struct {
	AccessToken string `json:"access_token"`
}

// DiscordProvider wraps golang.org/x/oauth2 for the Discord code exchange.
type DiscordProvider struct {
	config *oauth2.Config
	client *http.Client
}

// NewDiscordProvider creates a provider posting to tokenURL. Each exchange
// is bounded by timeout.
//
// AuthStyleInParams sends client_id and client_secret as form fields rather
// than as an HTTP Basic header, which is what Discord's embedded-app flow
// expects. No redirect_uri is sent: embedded apps receive their code from the
// Discord client, not from a browser redirect.
func NewDiscordProvider(clientID, clientSecret, tokenURL string, timeout time.Duration) (*DiscordProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &DiscordProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Exchange trades an authorization code for an access token.
func (p *DiscordProvider) Exchange(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, errors.New("auth: authorization code must not be empty")
	}

	// oauth2 picks up the HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging discord code: %w", err)
	}

	if oauthToken.AccessToken == "" {
		return nil, errors.New("auth: discord returned an empty access token")
	}

	return &Token{AccessToken: oauthToken.AccessToken}, nil
}
