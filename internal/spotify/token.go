package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const tokenPath = "/api/token"

// RefreshToken exchanges a stored refresh token for a short-lived access token.
// A single attempt is made.
func (a *API) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.accountsURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, clientSecret)

	body, err := a.do(req, "token")
	if err != nil {
		return "", err
	}
	accessToken := gjson.GetBytes(body, "access_token")
	if accessToken.Type != gjson.String || accessToken.String() == "" {
		return "", errors.New("token response has no access_token")
	}
	return accessToken.String(), nil
}

// ClientCredentials obtains an app access token, enough for catalog endpoints.
func (a *API) ClientCredentials(ctx context.Context, clientID, clientSecret string) (string, error) {
	conf := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     a.accountsURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if client, ok := a.requestDoer.(*http.Client); ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	token, err := conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("client credentials: %w", err)
	}
	return token.AccessToken, nil
}

func setBearer(req *http.Request, accessToken string) {
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
}
