// Package googleauth exchanges Google OAuth authorization codes for verified
// user info.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrExchangeFailed is returned when the authorization code cannot be
// exchanged or the user info fetch fails.
var ErrExchangeFailed = errors.New("google code exchange failed")

// UserInfo holds the Google account fields the auth service needs.
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verifier resolves a Google OAuth authorization code to the account's user info.
type Verifier interface {
	Exchange(ctx context.Context, code string) (*UserInfo, error)
}

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// OAuthVerifier implements Verifier against Google's OAuth2 endpoints.
type OAuthVerifier struct {
	config *oauth2.Config
}

// NewOAuthVerifier returns a Verifier for the given OAuth client credentials.
func NewOAuthVerifier(clientID, clientSecret, redirectURL string) *OAuthVerifier {
	return &OAuthVerifier{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
	}
}

// Exchange trades the authorization code for an access token and fetches the
// account's user info.
func (v *OAuthVerifier) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	token, err := v.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	client := v.config.Client(ctx, token)
	resp, err := client.Get(userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%w: userinfo without email", ErrExchangeFailed)
	}
	return &info, nil
}
