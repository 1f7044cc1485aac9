// Package iam exchanges an IBM Cloud API key for short-lived bearer tokens.
package iam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// TokenSource supplies a valid bearer token for watsonx API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenManager caches the IAM access token and refreshes it shortly
// before expiry. Safe for concurrent use.
type TokenManager struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// refreshMargin is how long before expiry a token is considered stale.
const refreshMargin = 60 * time.Second

// NewTokenManager creates a token manager for the given API key.
// endpoint is the IAM token endpoint.
func NewTokenManager(apiKey, endpoint string) *TokenManager {
	return &TokenManager{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a cached token, fetching a new one when missing or stale.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Before(m.expiry.Add(-refreshMargin)) {
		return m.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", m.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create iam request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call iam endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("iam endpoint returned non-200 status: %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode iam response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("iam endpoint returned an empty access token")
	}

	m.token = tr.AccessToken
	m.expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return m.token, nil
}
