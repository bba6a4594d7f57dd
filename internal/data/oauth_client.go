package data

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"farmlokal/internal/biz"
	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// OAuthClient fetches short-lived credentials from the upstream OAuth
// provider using the client_credentials grant. It implements
// biz.TokenProvider.
type OAuthClient struct {
	cfg    *conf.OAuth
	client *http.Client
	logger *log.Helper
}

// NewOAuthClient creates a new credential provider client.
func NewOAuthClient(c *conf.Upstream, logger log.Logger) *OAuthClient {
	cfg := &conf.OAuth{}
	if c != nil && c.OAuth != nil {
		cfg = c.OAuth
	}

	return &OAuthClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.NewHelper(logger),
	}
}

// tokenResponse is the provider's wire format.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// FetchToken requests a fresh credential from the provider.
// When no token URL is configured (local development), a self-issued opaque
// token with a one hour lifetime is returned instead.
func (c *OAuthClient) FetchToken(ctx context.Context) (*biz.Credential, error) {
	if c.cfg.TokenURL == "" {
		return c.selfIssuedToken(), nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return nil, fmt.Errorf("token endpoint returned an invalid credential")
	}

	c.logger.Infow("fetched fresh access token from provider",
		"token_type", tr.TokenType,
		"expires_in", tr.ExpiresIn)

	return &biz.Credential{
		AccessToken: tr.AccessToken,
		ExpiresIn:   time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

// selfIssuedToken mints a local stand-in credential for environments without
// a real provider.
func (c *OAuthClient) selfIssuedToken() *biz.Credential {
	c.logger.Info("no token URL configured, issuing local development token")

	payload, _ := json.Marshal(map[string]interface{}{
		"iss":       "farmlokal-auth",
		"exp":       time.Now().Add(time.Hour).UnixMilli(),
		"client_id": c.cfg.ClientID,
	})

	return &biz.Credential{
		AccessToken: base64.StdEncoding.EncodeToString(payload),
		ExpiresIn:   time.Hour,
	}
}
