// Package license implements the licensing-backend client: user
// authentication, auth-token caching and the owned-goods lookup that
// gates every paid action.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mpetrovs/scribebot/internal/common"
	"github.com/mpetrovs/scribebot/internal/logging"
)

// TokenStore is the slice of the credential store the client needs:
// token caching and user-record creation.
type TokenStore interface {
	GetToken(ctx context.Context, userID int64) (string, error)
	SetToken(ctx context.Context, userID int64, token string) error
	EnsureUser(ctx context.Context, userID int64, email string) error
}

type Good struct {
	Name string `json:"name"`
}

type GoodsResponse struct {
	Data struct {
		Goods []Good `json:"goods"`
	} `json:"data"`
}

// Client talks to the licensing backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      TokenStore
	log        logging.Logger
}

func NewClient(baseURL string, store TokenStore, log logging.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		log:        log,
	}
}

// OwnedGoods returns the user's owned goods listing, authenticating first
// if no usable cached token exists. Freshly obtained tokens are persisted
// and the user record is created on first contact.
func (c *Client) OwnedGoods(ctx context.Context, userID int64, email, password string) (*GoodsResponse, error) {
	token, err := c.store.GetToken(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if token != "" && tokenExpired(token) {
		c.log.Info(ctx, "cached auth token expired, re-authenticating", "user_id", userID)
		token = ""
	}

	if token == "" {
		token, err = c.authenticate(ctx, email, password)
		if err != nil {
			return nil, err
		}
		if err := c.store.EnsureUser(ctx, userID, email); err != nil {
			return nil, err
		}
		if err := c.store.SetToken(ctx, userID, token); err != nil {
			return nil, err
		}
	}

	return c.ownGoods(ctx, token)
}

type authRequest struct {
	UserName     string `json:"userName"`
	UserPassword string `json:"userPassword"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (c *Client) authenticate(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(authRequest{UserName: email, UserPassword: password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login.json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("license auth: %w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", common.NewStatusError("license auth", resp.StatusCode)
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode license auth: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("license auth rejected: %w", common.ErrService)
	}

	return parsed.Token, nil
}

func (c *Client) ownGoods(ctx context.Context, token string) (*GoodsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/licenseSale/getOwnGoods", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("auth-token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("own goods: %w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.NewStatusError("own goods", resp.StatusCode)
	}

	var parsed GoodsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode own goods: %w", err)
	}

	return &parsed, nil
}

// tokenExpired peeks at a cached token's exp claim without verifying the
// signature. Opaque (non-JWT) tokens never expire from our side, which
// keeps the backend's cache-forever contract for them.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
