package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	discordAPIBase = "https://discord.com/api"
	discordCDNBase = "https://cdn.discordapp.com"
)

// OAuthClient exchanges Discord authorization codes for user profiles.
// Stateless: nothing from the exchange is kept.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// overridable in tests
	APIBase string
	CDNBase string

	http *http.Client
	log  *zap.Logger
}

func NewOAuthClient(clientID, clientSecret, redirectURI string, log *zap.Logger) *OAuthClient {
	return &OAuthClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		APIBase:      discordAPIBase,
		CDNBase:      discordCDNBase,
		http:         &http.Client{Timeout: 10 * time.Second},
		log:          log,
	}
}

// Exchange trades an authorization code for a normalized user profile:
// token endpoint first, then the user-info endpoint with the bearer
// token. No retry on either call.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*UserProfile, error) {
	token, err := c.exchangeCode(ctx, code)
	if err != nil {
		oauthExchanges.WithLabelValues("failure").Inc()
		return nil, err
	}

	user, err := c.fetchUser(ctx, token)
	if err != nil {
		oauthExchanges.WithLabelValues("failure").Inc()
		return nil, err
	}
	oauthExchanges.WithLabelValues("success").Inc()

	c.log.Info("discord user authenticated",
		zap.String("userId", user.ID),
		zap.String("username", user.Username))

	return &UserProfile{
		ID:            user.ID,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		Avatar:        AvatarURL(c.CDNBase, user.ID, user.Discriminator, user.Avatar),
		Email:         user.Email,
	}, nil
}

func (c *OAuthClient) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIBase+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &UpstreamError{Op: "discord token exchange", Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &UpstreamError{Op: "discord token exchange", Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Op: "discord token exchange", Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Op: "discord token exchange", Detail: upstreamDetail(body)}
	}

	var tok discordTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &UpstreamError{Op: "discord token exchange", Detail: err.Error()}
	}
	return tok.AccessToken, nil
}

func (c *OAuthClient) fetchUser(ctx context.Context, accessToken string) (*discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBase+"/users/@me", nil)
	if err != nil {
		return nil, &UpstreamError{Op: "discord user fetch", Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "discord user fetch", Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: "discord user fetch", Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: "discord user fetch", Detail: upstreamDetail(body)}
	}

	var u discordUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &UpstreamError{Op: "discord user fetch", Detail: err.Error()}
	}
	return &u, nil
}

// upstreamDetail pulls the error description out of a Discord error
// body, falling back to the raw body.
func upstreamDetail(body []byte) string {
	var e struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.ErrorDescription != "":
			return e.ErrorDescription
		case e.Error != "":
			return e.Error
		case e.Message != "":
			return e.Message
		}
	}
	return string(body)
}

// AvatarURL builds the CDN avatar URL for a user. Accounts without a
// custom avatar hash get one of the five default avatars, picked by
// discriminator mod 5. Discriminator "0" and non-numeric values map to
// index 0.
func AvatarURL(cdnBase, userID, discriminator, hash string) string {
	if hash != "" {
		return fmt.Sprintf("%s/avatars/%s/%s.png", cdnBase, userID, hash)
	}
	n, _ := strconv.Atoi(discriminator)
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%s/embed/avatars/%d.png", cdnBase, n%5)
}
