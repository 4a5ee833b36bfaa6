package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Token is the CRM OAuth token response.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Profile is the CRM user profile for an authenticated agent.
type Profile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Phone   string `json:"phone"`
	Role    string `json:"role"`
}

// Authenticate performs the password grant against the CRM. This is the
// agent login flow; bulk enrichment uses the device uuid instead.
func (c *Client) Authenticate(ctx context.Context, phone, password string) (*Token, error) {
	url := fmt.Sprintf("%s/oauth/token", strings.TrimRight(c.config.BaseURL, "/"))
	payload := map[string]string{
		"grant_type": "password",
		"username":   phone,
		"password":   password,
		"deviceUuid": c.config.DeviceUUID,
	}

	resp, err := c.http.PostJSON(ctx, url, payload, nil)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "authentication request failed: %s", err.Error())
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, httperror.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httperror.NewHTTPErrorf(resp.StatusCode, "authentication returned status %d", resp.StatusCode)
	}

	var token Token
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to parse token response: %s", err.Error())
	}
	if token.AccessToken == "" {
		return nil, httperror.NewHTTPError(http.StatusUnauthorized, "token response contained no access token")
	}
	return &token, nil
}

// GetProfile fetches the profile of the agent owning the access token.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	url := fmt.Sprintf("%s/profile/", strings.TrimRight(c.config.BaseURL, "/"))
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}

	resp, err := c.http.Get(ctx, url, headers)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "profile request failed: %s", err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httperror.NewHTTPErrorf(resp.StatusCode, "profile returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to parse profile response: %s", err.Error())
	}
	return &profile, nil
}
